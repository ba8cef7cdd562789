// Package middleware holds the proxy's ambient HTTP middleware: request
// logging and panic recovery, both aware of the proxy's route shapes
// (channel entry vs resource vs ops endpoints).
package middleware

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ResponseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// routeLabel classifies an inbound path into the proxy's own route shapes
// for structured logging, and extracts the channel id when the path names
// one. It duplicates server.routeProxy's three-way switch rather than
// importing internal/server, which already imports this package.
func routeLabel(path string) (route, channelID string) {
	const prefix = "/api/proxy/"
	switch {
	case path == "/metrics":
		return "metrics", ""
	case path == "/healthz":
		return "healthz", ""
	case !strings.HasPrefix(path, prefix):
		return "other", ""
	}

	rest := strings.TrimPrefix(path, prefix)
	switch {
	case rest == "s":
		return "resource", ""
	case strings.HasSuffix(rest, ".m3u8") && !strings.Contains(rest, "/"):
		return "channel", strings.TrimSuffix(rest, ".m3u8")
	default:
		return "unknown", ""
	}
}

// Logging returns a middleware that logs HTTP requests, labeled by which
// proxy route handled them.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route, channelID := routeLabel(r.URL.Path)

		// Build log event
		event := log.Info()
		if wrapped.statusCode >= 400 {
			event = log.Warn()
		}
		if wrapped.statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", wrapped.statusCode).
			Int64("bytes", wrapped.written).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Str("request_id", wrapped.Header().Get("X-Request-ID"))
		if channelID != "" {
			event.Str("channel_id", channelID)
		}
		event.Msg("proxy request")
	})
}

// Recovery returns a middleware that recovers from panics. A panic on the
// channel entry route is reported as an HLS-shaped body rather than a bare
// 500, so the player still gets a parseable playlist; every other route
// falls back to a plain-text 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				route, channelID := routeLabel(r.URL.Path)
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("route", route).
					Str("channel_id", channelID).
					Msg("panic recovered while proxying request")

				if route == "channel" {
					w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
					w.WriteHeader(http.StatusInternalServerError)
					io.WriteString(w, "#EXTM3U\n#EXT-X-ERROR:Internal proxy error")
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
