// Package proxy implements the two proxy handlers: the channel entry
// endpoint, which resolves a channel id and serves its rewritten playlist,
// and the resource endpoint, which fetches an encoded upstream URL and
// rewrites or streams the result.
package proxy

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/benjaa-a11/Proxy-Pivo/internal/classify"
	"github.com/benjaa-a11/Proxy-Pivo/internal/fetch"
	"github.com/benjaa-a11/Proxy-Pivo/internal/metrics"
	"github.com/benjaa-a11/Proxy-Pivo/internal/registry"
)

// Handler serves both proxy routes. It holds only a registry reference;
// everything else is per-request.
type Handler struct {
	Registry registry.Registry
}

// New builds a Handler against reg.
func New(reg registry.Registry) *Handler {
	return &Handler{Registry: reg}
}

// requestOrigin returns the proxy's own scheme://host as seen by the
// client: trust TLS state first, then a reverse-proxy's X-Forwarded-Proto,
// defaulting to http.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// isTransportFailure reports whether err is the fetcher's exhausted-retries
// sentinel, as opposed to some other programming error.
func isTransportFailure(err error) bool {
	return errors.Is(err, fetch.ErrUnreachable)
}

// classifyAndCount wraps classify.IsPlaylist with its operational counter.
func classifyAndCount(contentType, url string, body []byte) bool {
	isPlaylist := classify.IsPlaylist(contentType, url, body)
	decision := "media"
	if isPlaylist {
		decision = "playlist"
	}
	metrics.ClassifierDecisionsTotal.WithLabelValues(decision).Inc()
	return isPlaylist
}

func logFetchError(route, target string, err error) {
	log.Error().Str("route", route).Str("url", target).Err(err).Msg("upstream fetch failed")
}
