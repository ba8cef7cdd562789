// Package registry defines the channel registry capability the proxy
// consumes: a single concurrent-safe read operation, channel id -> Channel.
// The proxy never writes to it; channel management belongs to an external
// collaborator.
package registry

import "context"

// Channel is the read-only shape the proxy consumes. The registry that
// owns writes may carry more fields (created-at, ...); only these are
// relevant to the proxy engine.
type Channel struct {
	ID      string
	Name    string
	Source  string
	Headers map[string]string
}

// Registry is the capability the proxy handlers depend on. Implementations
// must be safe for concurrent callers.
type Registry interface {
	// GetByID returns the channel for id, or (nil, nil) if no such channel
	// exists. A non-nil error indicates the lookup itself failed (backend
	// unreachable, parse error), which callers map to UpstreamServerError.
	GetByID(ctx context.Context, id string) (*Channel, error)
}
