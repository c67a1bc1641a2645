// Copyright DTMBX, 2026. All rights reserved.

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

func newTestCourtListener(t *testing.T, handler http.HandlerFunc) *CourtListener {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewCourtListener(srv.Client(), "tok-123", types.HTTPConfig{UserAgent: "evident-test/0"})
	c.baseURL = srv.URL + "/api/rest/v4/opinions/"
	return c
}

func TestCourtListenerOpinionPrefersRichestBody(t *testing.T) {
	c := newTestCourtListener(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"html_with_citations":"<p>cited</p>","plain_text":"plain"}`))
	})

	body, ct, err := c.Opinion("101")(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<p>cited</p>" {
		t.Errorf("body = %q", body)
	}
	if ct != "text/html" {
		t.Errorf("content type = %q, want text/html", ct)
	}
}

func TestCourtListenerOpinionPlainTextFallback(t *testing.T) {
	c := newTestCourtListener(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plain_text":"just text"}`))
	})

	body, ct, err := c.Opinion("102")(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "just text" || ct != "text/plain" {
		t.Errorf("got (%q, %q)", body, ct)
	}
}

func TestCourtListenerOpinionErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone", http.StatusNotFound)
			},
		},
		{
			name: "empty opinion body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"plain_text":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCourtListener(t, tt.handler)
			if _, _, err := c.Opinion("103")(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exhibit.html")
	if err := os.WriteFile(path, []byte("<p>exhibit</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	body, ct, err := FromFile(path)(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<p>exhibit</p>" {
		t.Errorf("body = %q", body)
	}
	if ct != "text/html" {
		t.Errorf("content type = %q, want text/html", ct)
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, _, err := FromFile(filepath.Join(t.TempDir(), "absent.txt"))(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLimiterSpacesFetches(t *testing.T) {
	limiter := NewLimiter(30 * time.Millisecond)
	f := limiter.Wrap(FromBytes([]byte("x"), "text/plain"))

	start := time.Now()
	for range 3 {
		if _, _, err := f(context.Background()); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	// First call is immediate; the next two wait a full delay each.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three fetches took %v, want at least 60ms", elapsed)
	}
}

func TestLimiterZeroDelayPassthrough(t *testing.T) {
	limiter := NewLimiter(0)
	f := limiter.Wrap(FromBytes([]byte("x"), "text/plain"))

	start := time.Now()
	for range 10 {
		if _, _, err := f(context.Background()); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unlimited fetches took %v", elapsed)
	}
}

func TestLimiterCancelledWhileWaiting(t *testing.T) {
	limiter := NewLimiter(time.Minute)
	f := limiter.Wrap(FromBytes([]byte("x"), "text/plain"))

	if _, _, err := f(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := f(ctx); err == nil {
		t.Fatal("expected context error while waiting for the limiter")
	}
}
