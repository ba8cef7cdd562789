// Package fetch implements the upstream fetcher: a single GET against an
// absolute URL, honoring redirects, retrying transport-level failures with
// exponential backoff and leaving HTTP-level responses alone. Browser-like
// headers are injected on every request so picky CDNs accept the fetch.
package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/benjaa-a11/Proxy-Pivo/internal/metrics"
)

const (
	defaultAttemptTimeout = 18 * time.Second
	defaultMaxAttempts    = 3
	backoffInitial        = 500 * time.Millisecond
	backoffMax            = 4 * time.Second
)

// attemptTimeout and maxAttempts are package-level so a single Configure
// call at startup (from main.go, sourced from config.Config) tunes every
// call to the package-level Fetch function.
var (
	attemptTimeout = defaultAttemptTimeout
	maxAttempts    = defaultMaxAttempts
)

// Configure overrides the per-attempt timeout and attempt count. Intended
// to be called once at startup; not safe to call concurrently with
// in-flight fetches.
func Configure(timeout time.Duration, attempts int) {
	if timeout > 0 {
		attemptTimeout = timeout
	}
	if attempts > 0 {
		maxAttempts = attempts
	}
}

// hopByHopHeaders are never forwarded from a channel's custom header set,
// extended with the headers net/http manages itself.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
}

// defaultHeaders are the browser-like headers applied to every outbound
// request before any channel-specific override.
func defaultHeaders(target *url.URL) http.Header {
	originAndHost := target.Scheme + "://" + target.Host
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Origin", originAndHost)
	h.Set("Referer", originAndHost+"/")
	h.Set("Connection", "keep-alive")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "cross-site")
	return h
}

// ErrUnreachable is returned when every attempt fails with a transport
// error. Callers map this to the UpstreamUnreachable error taxonomy entry.
var ErrUnreachable = errors.New("fetch: upstream unreachable")

// Fetcher issues outbound HLS-proxy requests.
type Fetcher struct {
	client *http.Client
}

// New builds a Fetcher with a shared, span-wrapped transport. A single
// Fetcher should be reused for the process lifetime so connections pool.
func New() *Fetcher {
	transport := otelhttp.NewTransport(&http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	})
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			// Default redirect policy: follow, net/http's built-in cap of
			// 10 applies since CheckRedirect is left nil.
		},
	}
}

// Result is a successful fetch: the caller owns Body and must close it.
type Result struct {
	Body       io.ReadCloser
	StatusCode int
	Header     http.Header
	// FinalURL is the URL that actually served the body, after following
	// any redirects. Relative URIs in a redirected playlist must resolve
	// against this URL, not the one originally requested.
	FinalURL string
}

// Fetch issues a GET against targetURL, injecting defaultHeaders overridden
// by custom, and retrying transport-level failures. On success the caller
// must close Result.Body.
func Fetch(ctx context.Context, targetURL string, custom map[string]string) (*Result, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			reason := transportErrorReason(lastErr)
			metrics.FetchRetriesTotal.WithLabelValues(reason).Inc()
			wait := backoffDuration(attempt)
			log.Warn().Str("url", targetURL).Int("attempt", attempt+1).
				Str("reason", reason).Dur("backoff", wait).Err(lastErr).
				Msg("retrying upstream fetch")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := attemptFetch(ctx, parsed, targetURL, custom)
		if err == nil {
			return result, nil
		}
		// http.Client.Do only ever fails with a transport-level error
		// (*url.Error wrapping a dial/TLS/timeout/redirect failure); HTTP
		// responses of any status are returned as a *Result, never as err.
		lastErr = err
	}

	reason := transportErrorReason(lastErr)
	log.Error().Str("url", targetURL).Int("attempts", maxAttempts).
		Str("reason", reason).Err(lastErr).
		Msg("upstream unreachable after exhausting retries")
	return nil, ErrUnreachable
}

func attemptFetch(ctx context.Context, parsed *url.URL, targetURL string, custom map[string]string) (*Result, error) {
	// attemptCtx's cancel must not fire until the body is done: per
	// net/http.NewRequestWithContext's doc, the context governs "the entire
	// lifetime of a request and its response... reading the response headers
	// and body". Canceling right after Do returns would invalidate resp.Body
	// for every caller that reads it after Fetch returns. cancel is instead
	// handed to the returned Result's Body and fires on Close (or, on any
	// error path before a Result exists, right here).
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	for key, values := range defaultHeaders(parsed) {
		req.Header[key] = values
	}
	for key, value := range custom {
		if hopByHopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := sharedFetcher.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		cancel()
		metrics.FetchAttemptsTotal.WithLabelValues("transport_error").Inc()
		metrics.FetchDurationSeconds.WithLabelValues("transport_error").Observe(duration.Seconds())
		return nil, err
	}

	metrics.FetchAttemptsTotal.WithLabelValues("ok").Inc()
	metrics.FetchDurationSeconds.WithLabelValues("ok").Observe(duration.Seconds())

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:       &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel},
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   finalURL,
	}, nil
}

// cancelOnCloseBody defers canceling the per-attempt context until the
// response body is closed, so attemptCtx's deadline still bounds the whole
// attempt (including streaming body reads) without invalidating the body
// the instant Do returns.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}

// sharedFetcher backs the package-level Fetch function so every call in the
// process shares one connection-pooled transport.
var sharedFetcher = New()

// backoffDuration computes min(500ms * 2^(attempt-1), 4s). attempt is
// 1-based: the first retry waits 500ms.
func backoffDuration(attempt int) time.Duration {
	factor := time.Duration(1 << uint(attempt-1))
	d := backoffInitial * factor
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// transportErrorReason classifies a transport-level error for metrics and
// log labeling: timeout, DNS failure, or other dial failure.
func transportErrorReason(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return "dns"
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return "dial"
		}
		return "other"
	}
}
