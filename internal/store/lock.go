// Copyright DTMBX, 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"sync"
)

// keyedLock serializes ingestion per (source, source_key) while letting
// different keys proceed concurrently. Waiters are context-aware: a
// cancelled waiter reports ErrIngestInProgress instead of blocking
// forever behind a slow writer.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]chan struct{})}
}

func (l *keyedLock) acquire(ctx context.Context, key string) error {
	for {
		l.mu.Lock()
		ch, taken := l.held[key]
		if !taken {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrIngestInProgress, ctx.Err())
		case <-ch:
			// Holder released; retry the acquire.
		}
	}
}

func (l *keyedLock) release(key string) {
	l.mu.Lock()
	ch := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}
