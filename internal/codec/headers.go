package codec

import (
	"encoding/json"
	"net/url"
)

// EncodeHeaders serializes a custom-header map to the wire shape carried in
// the "h" query parameter: percent-encoded JSON, so it can be re-emitted
// verbatim into every descendant rewritten URL without re-encoding.
func EncodeHeaders(headers map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(string(raw)), nil
}

// DecodeHeaders reverses EncodeHeaders. An empty token decodes to a nil map
// with no error. Malformed tokens are reported via err; callers that want
// to degrade to "no custom headers" should treat any error that way rather
// than failing the request.
func DecodeHeaders(token string) (map[string]string, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := url.QueryUnescape(token)
	if err != nil {
		return nil, err
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, err
	}
	return headers, nil
}
