// Package playlist rewrites HLS playlists line by line so every URI they
// contain routes back through the resource proxy endpoint. The rewriter is
// deliberately tag-unaware: HLS places URIs only on bare URI lines and in
// quoted URI="..." attributes, so nothing else needs parsing.
package playlist

import (
	"regexp"
	"strings"

	"github.com/benjaa-a11/Proxy-Pivo/internal/codec"
	"github.com/benjaa-a11/Proxy-Pivo/internal/resolve"
)

// uriAttrPattern matches tag lines carrying one or more URI="..." attributes
// (case-insensitive), e.g. #EXT-X-KEY:METHOD=AES-128,URI="key.bin".
var uriAttrPattern = regexp.MustCompile(`(?i)URI\s*=\s*"([^"]*)"`)

// Rewrite transforms a playlist body, routing every URI it contains
// through the resource proxy endpoint under proxyOrigin. base is the URL
// the playlist was actually fetched from (used to resolve relative URIs);
// headersToken, if non-empty, is carried verbatim onto every rewritten URL
// so descendant fetches reuse the same augmented header set.
func Rewrite(body, base, proxyOrigin, headersToken string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")

		switch {
		case strings.HasPrefix(trimmed, "#") && uriAttrPattern.MatchString(trimmed):
			out[i] = uriAttrPattern.ReplaceAllStringFunc(trimmed, func(match string) string {
				sub := uriAttrPattern.FindStringSubmatch(match)
				if len(sub) != 2 {
					return match
				}
				proxied := proxiedURL(sub[1], base, proxyOrigin, headersToken)
				return `URI="` + proxied + `"`
			})
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			out[i] = trimmed
		default:
			uri := strings.TrimSpace(trimmed)
			out[i] = proxiedURL(uri, base, proxyOrigin, headersToken)
		}
	}

	return strings.Join(out, "\n")
}

// proxiedURL builds "{proxyOrigin}/api/proxy/s?url=<token>[&h=<headersToken>]"
// for a URI as it appeared in the playlist.
func proxiedURL(uri, base, proxyOrigin, headersToken string) string {
	absolute := resolve.Resolve(uri, base)
	token := codec.EncodeURL(absolute)

	u := proxyOrigin + "/api/proxy/s?url=" + token
	if headersToken != "" {
		u += "&h=" + headersToken
	}
	return u
}
