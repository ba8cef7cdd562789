// Package server implements the proxy's HTTP surface: routing under
// /api/proxy, OPTIONS/HEAD handling, permissive CORS, and the ambient
// /metrics and /healthz endpoints.
package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/benjaa-a11/Proxy-Pivo/internal/metrics"
	"github.com/benjaa-a11/Proxy-Pivo/internal/middleware"
	"github.com/benjaa-a11/Proxy-Pivo/internal/proxy"
	"github.com/benjaa-a11/Proxy-Pivo/internal/registry"
)

// proxyPrefix is the single path prefix the two public routes live under.
const proxyPrefix = "/api/proxy"

// New builds the full HTTP handler: CORS + request-id + logging + recovery
// wrapping a mux that routes to the channel entry and resource proxy
// handlers, plus the /healthz and /metrics ops endpoints.
func New(reg registry.Registry) http.Handler {
	h := proxy.New(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/proxy/", func(w http.ResponseWriter, r *http.Request) {
		routeProxy(w, r, h)
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", healthzHandler(reg))

	// otelhttp wraps the innermost handler so spans cover the full request;
	// it shares whatever global TracerProvider internal/telemetry installed
	// at startup.
	traced := otelhttp.NewHandler(mux, "hls-proxy")

	return middleware.Recovery(middleware.Logging(requestID(cors(traced))))
}

// routeProxy dispatches the three route shapes under /api/proxy: the
// channel entry ({id}.m3u8), the encoded resource (s?url=...), and
// everything else (404). OPTIONS and HEAD are handled once here rather
// than duplicated per route.
func routeProxy(w http.ResponseWriter, r *http.Request, h *proxy.Handler) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Unknown proxy route", http.StatusNotFound)
		return
	}

	rw := w
	if r.Method == http.MethodHead {
		rw = &headResponseWriter{ResponseWriter: w}
	}

	path := strings.TrimPrefix(r.URL.Path, proxyPrefix)
	path = strings.TrimPrefix(path, "/")

	var route string
	counted := &statusCountingWriter{ResponseWriter: rw, statusCode: http.StatusOK}

	switch {
	case path == "s":
		route = "resource"
		h.ServeResource(counted, r)
	case strings.HasSuffix(path, ".m3u8") && !strings.Contains(path, "/"):
		route = "channel"
		id := strings.TrimSuffix(path, ".m3u8")
		h.ServeChannel(counted, r, id)
	default:
		route = "unknown"
		http.Error(counted, "Unknown proxy route", http.StatusNotFound)
	}

	metrics.ProxyRequestsTotal.WithLabelValues(route, statusClass(counted.statusCode)).Inc()
}

// statusCountingWriter captures the final status code so routeProxy can
// label hlsproxy_requests_total without every handler reporting it itself.
type statusCountingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusCountingWriter) WriteHeader(code int) {
	s.statusCode = code
	s.ResponseWriter.WriteHeader(code)
}

// statusClass buckets an HTTP status into "2xx"/"4xx"/"5xx"-style labels for
// the requests-total counter.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// headResponseWriter discards the body written by GET-shaped handlers so a
// HEAD request gets status + headers only.
type headResponseWriter struct {
	http.ResponseWriter
}

func (h *headResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

// cors applies the permissive CORS policy to every response from this
// surface, error responses included, so any web player can consume the
// rewritten playlists.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")
		next.ServeHTTP(w, r)
	})
}

// requestID stamps every request with a correlation id and attaches a
// per-request logger via zerolog's context helper so downstream handlers'
// log lines carry it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		reqLogger := log.With().Str("request_id", id).Logger()
		ctx := reqLogger.WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthzHandler reports liveness, checking that the registry backend can
// be reached.
func healthzHandler(reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := reg.GetByID(r.Context(), "__healthz_probe__"); err != nil {
			http.Error(w, "registry unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
