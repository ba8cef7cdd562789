package playlist

import (
	"strings"
	"testing"

	"github.com/benjaa-a11/Proxy-Pivo/internal/codec"
)

func TestRewrite_MediaPlaylistSegment(t *testing.T) {
	body := "#EXTM3U\n#EXTINF:6,\nseg1.ts\n"
	base := "https://cdn.example.com/a/b/live.m3u8"
	origin := "http://p"

	got := Rewrite(body, base, origin, "")

	wantToken := codec.EncodeURL("https://cdn.example.com/a/b/seg1.ts")
	want := "#EXTM3U\n#EXTINF:6,\nhttp://p/api/proxy/s?url=" + wantToken + "\n"
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewrite_KeyURIAttribute(t *testing.T) {
	body := `#EXT-X-KEY:METHOD=AES-128,URI="key.bin"`
	base := "https://cdn.example.com/a/b/live.m3u8"
	origin := "http://p"

	got := Rewrite(body, base, origin, "")

	wantToken := codec.EncodeURL("https://cdn.example.com/a/b/key.bin")
	want := `#EXT-X-KEY:METHOD=AES-128,URI="http://p/api/proxy/s?url=` + wantToken + `"`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewrite_HeadersTokenCarriedOntoEveryURL(t *testing.T) {
	body := "#EXTM3U\nseg1.ts\nseg2.ts\n"
	got := Rewrite(body, "https://cdn.example.com/a/live.m3u8", "http://p", "hdrtoken")

	lines := strings.Split(got, "\n")
	for _, l := range []string{lines[1], lines[2]} {
		if !strings.HasSuffix(l, "&h=hdrtoken") {
			t.Errorf("expected line to carry headers token, got %q", l)
		}
	}
}

func TestRewrite_CommentsAndBlankLinesUnchanged(t *testing.T) {
	body := "#EXTM3U\n\n#EXT-X-VERSION:3\n"
	got := Rewrite(body, "https://cdn.example.com/a/live.m3u8", "http://p", "")
	if got != body {
		t.Errorf("Rewrite() = %q, want unchanged %q", got, body)
	}
}

func TestRewrite_MapURIRewrittenByteRangeUntouched(t *testing.T) {
	body := `#EXT-X-MAP:URI="init.mp4",BYTERANGE="100@0"`
	base := "https://cdn.example.com/a/live.m3u8"
	got := Rewrite(body, base, "http://p", "")
	if strings.Contains(got, `URI="init.mp4"`) {
		t.Errorf("expected URI to be rewritten, got %q", got)
	}
	if !strings.Contains(got, `BYTERANGE="100@0"`) {
		t.Errorf("expected BYTERANGE attribute left untouched, got %q", got)
	}
}
