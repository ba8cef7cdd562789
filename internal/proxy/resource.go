package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/benjaa-a11/Proxy-Pivo/internal/classify"
	"github.com/benjaa-a11/Proxy-Pivo/internal/codec"
	"github.com/benjaa-a11/Proxy-Pivo/internal/fetch"
	"github.com/benjaa-a11/Proxy-Pivo/internal/playlist"
)

// sniffPeekBytes is how much of the body is buffered up front so
// classify.IsPlaylist/MediaMIME can sniff content when the content-type and
// URL suffix both miss.
const sniffPeekBytes = 512

// rawQueryParam returns the still-escaped value of key within rawQuery,
// or "" when absent.
func rawQueryParam(rawQuery, key string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(pair, key+"=") {
			return pair[len(key)+1:]
		}
	}
	return ""
}

func writeTextError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, message)
}

// ServeResource decodes the url/h tokens, enforces the scheme policy,
// fetches, and either rewrites (playlist) or streams through (media).
// GET /api/proxy/s?url=<token>&h=<token>.
func (h *Handler) ServeResource(w http.ResponseWriter, r *http.Request) {
	origin := requestOrigin(r)
	ctx := r.Context()

	token := r.URL.Query().Get("url")
	if token == "" {
		writeTextError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	targetURL, err := codec.DecodeURL(token)
	if err != nil {
		writeTextError(w, http.StatusBadRequest, "Invalid URL encoding")
		return
	}

	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		writeTextError(w, http.StatusBadRequest, "Invalid URL scheme")
		return
	}

	// The "h" token must stay in its on-the-wire percent-encoded form: it
	// is re-emitted verbatim into every rewritten descendant URL, and
	// Query().Get would hand us a pre-unescaped copy. A malformed token
	// degrades to "no custom headers" rather than failing the request.
	headersToken := rawQueryParam(r.URL.RawQuery, "h")
	customHeaders, err := codec.DecodeHeaders(headersToken)
	if err != nil {
		customHeaders = nil
	}

	result, err := fetch.Fetch(ctx, targetURL, customHeaders)
	if err != nil {
		logFetchError("resource", targetURL, err)
		writeTextError(w, http.StatusBadGateway, "Upstream unreachable")
		return
	}
	defer result.Body.Close()

	if result.StatusCode >= 400 && result.StatusCode < 500 {
		io.Copy(io.Discard, result.Body)
		writeTextError(w, result.StatusCode, "Upstream "+strconv.Itoa(result.StatusCode))
		return
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		io.Copy(io.Discard, result.Body)
		writeTextError(w, http.StatusBadGateway, "Upstream "+strconv.Itoa(result.StatusCode))
		return
	}

	contentType := result.Header.Get("Content-Type")

	// Peek the first sniffPeekBytes so classify can fall back to body
	// sniffing when content-type and URL suffix both miss, then stitch the
	// peeked bytes back onto the front of the stream so nothing is lost.
	peekBuf := make([]byte, sniffPeekBytes)
	n, err := io.ReadFull(result.Body, peekBuf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		writeTextError(w, http.StatusBadGateway, "Failed reading upstream body")
		return
	}
	peekBuf = peekBuf[:n]
	body := io.MultiReader(bytes.NewReader(peekBuf), result.Body)

	if classifyAndCount(contentType, result.FinalURL, peekBuf) {
		full, err := io.ReadAll(body)
		if err != nil {
			writeTextError(w, http.StatusBadGateway, "Failed reading upstream body")
			return
		}
		rewritten := playlist.Rewrite(string(full), result.FinalURL, origin, headersToken)
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, rewritten)
		return
	}

	mime := classify.MediaMIME(result.FinalURL, contentType, peekBuf)
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=600, immutable")
	if cl := result.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)

	// Stream through progressively; buffering the whole segment before the
	// first byte reaches the client would stall playback.
	io.Copy(w, body)
}
