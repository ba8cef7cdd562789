// Package classify decides whether a fetched response is an HLS playlist,
// and what MIME type a media resource should be served with.
package classify

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mpegURLMarkers cover every content-type variant upstreams use for
// playlists: application/vnd.apple.mpegurl, audio/mpegurl, audio/x-mpegurl,
// application/x-mpegurl.
var mpegURLMarkers = []string{"mpegurl", "m3u"}

// IsPlaylist reports whether a fetched resource is an HLS playlist, by
// content-type, URL suffix, or body sniff. body is optional: pass nil/empty
// when sniffing isn't available (e.g. for a resource we haven't read yet).
func IsPlaylist(contentType, rawURL string, body []byte) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range mpegURLMarkers {
		if strings.Contains(ct, marker) {
			return true
		}
	}

	if p := pathOf(rawURL); strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u") {
		return true
	}

	if len(body) > 0 {
		trimmed := strings.TrimLeft(string(body), " \t\r\n")
		if strings.HasPrefix(trimmed, "#EXTM3U") || strings.Contains(trimmed, "#EXT-X-") {
			return true
		}
	}

	return false
}

// pathOf returns the URL path portion (before any '?'), tolerating
// malformed URLs by simple string slicing rather than a full parse.
func pathOf(rawURL string) string {
	if q := strings.IndexByte(rawURL, '?'); q >= 0 {
		rawURL = rawURL[:q]
	}
	return rawURL
}

// mediaMIMEBySuffix maps URL path suffixes to their canonical MIME types.
var mediaMIMEBySuffix = map[string]string{
	".ts":     "video/mp2t",
	".aac":    "audio/aac",
	".mp4":    "video/mp4",
	".m4s":    "video/mp4",
	".fmp4":   "video/mp4",
	".m4a":    "audio/mp4",
	".mp3":    "audio/mpeg",
	".vtt":    "text/vtt",
	".webvtt": "text/vtt",
	".srt":    "text/plain",
	".key":    "application/octet-stream",
	".json":   "application/json",
	".xml":    "application/xml",
	".jpg":    "image/jpeg",
	".jpeg":   "image/jpeg",
	".png":    "image/png",
	".webp":   "image/webp",
	".gif":    "image/gif",
	".woff":   "font/woff",
	".woff2":  "font/woff2",
}

// MediaMIME picks a MIME type for a media resource. It checks the URL path
// suffix first, then falls back to fallback (normally the upstream
// Content-Type), then to a content-sniffed guess, and finally to
// application/octet-stream.
func MediaMIME(rawURL, fallback string, body []byte) string {
	p := strings.ToLower(pathOf(rawURL))
	for suffix, mime := range mediaMIMEBySuffix {
		if strings.HasSuffix(p, suffix) {
			return mime
		}
	}

	if fallback != "" {
		return fallback
	}

	if len(body) > 0 {
		return mimetype.Detect(body).String()
	}

	return "application/octet-stream"
}
