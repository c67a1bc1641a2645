// Copyright DTMBX, 2026. All rights reserved.

// Package fetch supplies raw document content to the ingestor. Each
// source gets its own FetchFunc; the ingestor never knows where bytes
// came from. OCR and speech-to-text producers enter the pipeline the
// same way: their text output is fetched like any other raw content.
// Implements: prd001-ingestion (R4);
//
//	docs/ARCHITECTURE § Fetch Collaborators.
package fetch

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Func returns the raw content bytes and a content-type string for one
// document. Implementations must not have side effects: the ingestor
// writes nothing before a fetch succeeds, so a failed fetch leaves no
// partial state.
type Func func(ctx context.Context) (body []byte, contentType string, err error)

// FromBytes returns a Func serving fixed in-memory content. Used for
// text-producer output handed to the pipeline directly, and in tests.
func FromBytes(body []byte, contentType string) Func {
	return func(context.Context) ([]byte, string, error) {
		return body, contentType, nil
	}
}

// FromFile returns a Func reading a local file (user-uploaded evidence).
// The content type is inferred from the file extension; unknown
// extensions report application/octet-stream.
func FromFile(path string) Func {
	return func(context.Context) ([]byte, string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", path, err)
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = "application/octet-stream"
		}
		// Strip charset parameters; the canonicalizer only needs the type.
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
		return data, ct, nil
	}
}

// Limiter spaces remote fetches a minimum delay apart. Batch ingestion
// shares one limiter across all remote fetches so concurrent workers
// collectively respect the source API's rate expectations.
type Limiter struct {
	mu    sync.Mutex
	next  time.Time
	delay time.Duration
}

// NewLimiter returns a limiter enforcing delay between fetches. A zero
// or negative delay disables limiting.
func NewLimiter(delay time.Duration) *Limiter {
	return &Limiter{delay: delay}
}

// Wrap returns a Func that waits for this limiter's slot before calling f.
func (l *Limiter) Wrap(f Func) Func {
	if l == nil || l.delay <= 0 {
		return f
	}
	return func(ctx context.Context) ([]byte, string, error) {
		l.mu.Lock()
		now := time.Now()
		wait := l.next.Sub(now)
		if wait < 0 {
			wait = 0
		}
		l.next = now.Add(wait + l.delay)
		l.mu.Unlock()

		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(wait):
			}
		}
		return f(ctx)
	}
}
