package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benjaa-a11/Proxy-Pivo/internal/registry"
)

func TestOptionsReturnsCORSOnly(t *testing.T) {
	reg := registry.NewMemory()
	h := New(reg)

	req := httptest.NewRequest(http.MethodOptions, "/api/proxy/demo.m3u8", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	reg := registry.NewMemory()
	h := New(reg)

	req := httptest.NewRequest(http.MethodGet, "/api/proxy/nested/path", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Result().StatusCode)
	}
}

func TestHeadHasNoBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write([]byte("segment-bytes"))
	}))
	defer upstream.Close()

	reg := registry.NewMemory(registry.Channel{ID: "demo", Source: upstream.URL + "/seg.ts"})
	h := New(reg)

	req := httptest.NewRequest(http.MethodHead, "/api/proxy/demo.m3u8", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Fatalf("HEAD body = %q, want empty", body)
	}
}

func TestResourceRouteAllCORSHeadersPresent(t *testing.T) {
	reg := registry.NewMemory()
	h := New(reg)

	req := httptest.NewRequest(http.MethodGet, "/api/proxy/s?url=bm90LWEtdXJs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	for _, header := range []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
		"Access-Control-Expose-Headers",
		"Access-Control-Max-Age",
	} {
		if resp.Header.Get(header) == "" {
			t.Fatalf("missing CORS header %q on error response", header)
		}
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Invalid URL scheme") {
		t.Fatalf("body = %q", body)
	}
}
