package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetch_ReturnsHTTPErrorsWithoutRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	result, err := Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch returned error for an HTTP 500: %v", err)
	}
	defer result.Body.Close()

	if result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", result.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("upstream hit %d times, want 1 (status codes never retry)", n)
	}
}

func TestFetch_RetriesTransportFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listening: every dial is refused

	Configure(2*time.Second, 2)
	t.Cleanup(func() { Configure(defaultAttemptTimeout, defaultMaxAttempts) })

	start := time.Now()
	_, err = Fetch(context.Background(), "http://"+addr+"/seg.ts", nil)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
	// One retry means one backoff sleep of 500ms between the attempts.
	if elapsed < 400*time.Millisecond {
		t.Fatalf("elapsed = %v, expected at least one backoff sleep", elapsed)
	}
}

func TestFetch_FinalURLFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/entry.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/moved/live.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/moved/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	result, err := Fetch(context.Background(), srv.URL+"/entry.m3u8", nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer result.Body.Close()

	if !strings.HasSuffix(result.FinalURL, "/moved/live.m3u8") {
		t.Fatalf("FinalURL = %q, want post-redirect URL", result.FinalURL)
	}
}

func TestFetch_HeaderInjectionAndOverride(t *testing.T) {
	var ua, accept, custom, conn string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept-Language")
		custom = r.Header.Get("X-Auth")
		conn = r.Header.Get("Connection")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	result, err := Fetch(context.Background(), srv.URL, map[string]string{
		"User-Agent": "CustomAgent/1.0",
		"X-Auth":     "secret",
		"Connection": "close", // hop-by-hop, must be dropped
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	result.Body.Close()

	if ua != "CustomAgent/1.0" {
		t.Errorf("User-Agent = %q, want the channel override to win", ua)
	}
	if accept != "en-US,en;q=0.9" {
		t.Errorf("Accept-Language = %q, want browser default", accept)
	}
	if custom != "secret" {
		t.Errorf("X-Auth = %q, want custom header forwarded", custom)
	}
	if conn == "close" {
		t.Error("hop-by-hop Connection override reached upstream")
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 4 * time.Second}, // capped
	}

	for _, c := range cases {
		if got := backoffDuration(c.attempt); got != c.want {
			t.Errorf("backoffDuration(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}
