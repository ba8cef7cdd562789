package proxy

import (
	"io"
	"net/http"
	"strconv"

	"github.com/benjaa-a11/Proxy-Pivo/internal/codec"
	"github.com/benjaa-a11/Proxy-Pivo/internal/fetch"
	"github.com/benjaa-a11/Proxy-Pivo/internal/playlist"
)

// hlsErrorBody builds an "#EXTM3U\n#EXT-X-ERROR:<reason>" skeleton so media
// players surface a structured error instead of an opaque HTTP status.
func hlsErrorBody(reason string) string {
	return "#EXTM3U\n#EXT-X-ERROR:" + reason
}

func writeHLSError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(status)
	io.WriteString(w, hlsErrorBody(reason))
}

func writePlaylistBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// ServeChannel resolves a channel id to its source, fetches it, and
// responds with a rewritten playlist or a synthesized wrapper.
// GET /api/proxy/{id}.m3u8 with id = segment[:-5].
func (h *Handler) ServeChannel(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	origin := requestOrigin(r)

	channel, err := h.Registry.GetByID(ctx, id)
	if err != nil {
		writeHLSError(w, http.StatusBadGateway, "Registry lookup failed")
		return
	}
	if channel == nil {
		writeHLSError(w, http.StatusNotFound, "Channel not found")
		return
	}

	headersToken, err := codec.EncodeHeaders(channel.Headers)
	if err != nil {
		// A channel's own custom headers failing to serialize is an
		// operator configuration error, not a client error.
		writeHLSError(w, http.StatusBadGateway, "Invalid channel headers")
		return
	}

	result, err := fetch.Fetch(ctx, channel.Source, channel.Headers)
	if err != nil {
		logFetchError("channel", channel.Source, err)
		if isTransportFailure(err) {
			writeHLSError(w, http.StatusBadGateway, "Upstream unreachable")
			return
		}
		writeHLSError(w, http.StatusBadGateway, "Upstream fetch failed")
		return
	}
	defer result.Body.Close()

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		io.Copy(io.Discard, result.Body)
		writeHLSError(w, http.StatusBadGateway, statusReason(result.StatusCode))
		return
	}

	body, err := io.ReadAll(result.Body)
	if err != nil {
		writeHLSError(w, http.StatusBadGateway, "Failed reading upstream body")
		return
	}

	if classifyAndCount(result.Header.Get("Content-Type"), result.FinalURL, body) {
		rewritten := playlist.Rewrite(string(body), result.FinalURL, origin, headersToken)
		writePlaylistBody(w, http.StatusOK, rewritten)
		return
	}

	// Non-HLS source: synthesize a one-variant master playlist pointing at
	// the encoded-resource route, so a player can reach any HTTP resource
	// through a .m3u8 endpoint.
	token := codec.EncodeURL(channel.Source)
	resourceURL := origin + "/api/proxy/s?url=" + token
	if headersToken != "" {
		resourceURL += "&h=" + headersToken
	}
	wrapper := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-STREAM-INF:BANDWIDTH=0\n" + resourceURL
	writePlaylistBody(w, http.StatusOK, wrapper)
}

func statusReason(status int) string {
	return "Upstream " + strconv.Itoa(status)
}
