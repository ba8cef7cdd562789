// Package resolve implements URL resolution for playlist-embedded URIs.
// It intentionally does not use url.URL.ResolveReference: that function
// requires both URLs to parse cleanly, while this resolver must tolerate a
// malformed base URL by falling back to string concatenation rather than
// failing the whole request.
package resolve

import "strings"

// Resolve turns a URI as it appeared in a playlist into an absolute URL,
// using base as the playlist's own URL. Rules are applied in order:
// absolute URIs pass through, protocol-relative URIs get https:,
// path-absolute URIs attach to the base's authority, and everything else
// concatenates onto the base's directory.
func Resolve(uri, base string) string {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	case strings.HasPrefix(uri, "//"):
		return "https:" + uri
	case strings.HasPrefix(uri, "/"):
		return schemeAndAuthority(base) + uri
	default:
		return directoryOf(base) + uri
	}
}

// schemeAndAuthority returns "scheme://host[:port]" of u, falling back to
// an empty prefix if u doesn't look like an absolute URL.
func schemeAndAuthority(u string) string {
	idx := strings.Index(u, "://")
	if idx < 0 {
		return ""
	}
	rest := u[idx+3:]
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		return u
	}
	return u[:idx+3+end]
}

// directoryOf strips u at its last '/' past the scheme's authority,
// keeping the trailing slash, so relative references concatenate onto a
// directory rather than a filename. The query string is stripped first:
// a '/' inside the query must not be mistaken for a path separator.
func directoryOf(u string) string {
	if q := strings.IndexByte(u, '?'); q >= 0 {
		u = u[:q]
	}
	if f := strings.IndexByte(u, '#'); f >= 0 {
		u = u[:f]
	}

	authorityEnd := 0
	if idx := strings.Index(u, "://"); idx >= 0 {
		authorityEnd = idx + 3
		if slash := strings.IndexByte(u[authorityEnd:], '/'); slash >= 0 {
			authorityEnd += slash
		} else {
			// No path at all: base is just scheme://host, directory is
			// that plus a trailing slash.
			return u + "/"
		}
	}

	if last := strings.LastIndexByte(u[authorityEnd:], '/'); last >= 0 {
		return u[:authorityEnd+last+1]
	}
	return u + "/"
}
