// Copyright DTMBX, 2026. All rights reserved.

package store

import (
	"container/list"
	"sync"
)

// BodyCache is a bounded LRU cache of canonical bodies keyed by doc_id.
// It is constructed by the caller and handed to Open so each service (and
// each test) owns its own instance; nothing in this package holds cache
// state at module level.
type BodyCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[int64]*list.Element
}

type cacheEntry struct {
	docID int64
	sha   string
	body  string
}

// NewBodyCache returns a cache bounded to max documents. A max of zero or
// less falls back to 32.
func NewBodyCache(max int) *BodyCache {
	if max <= 0 {
		max = 32
	}
	return &BodyCache{
		max:     max,
		order:   list.New(),
		entries: make(map[int64]*list.Element),
	}
}

// Get returns the cached body for docID along with the canonical content
// hash it was stored under. Callers must compare the hash against the
// current document row before trusting the body; a stale entry is the
// caller's signal to re-read from the database.
func (c *BodyCache) Get(docID int64) (sha, body string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, found := c.entries[docID]
	if !found {
		return "", "", false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	return e.sha, e.body, true
}

// Put stores the body for docID under its canonical content hash, evicting
// the least recently used entry when the cache is full.
func (c *BodyCache) Put(docID int64, sha, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[docID]; ok {
		e := el.Value.(*cacheEntry)
		e.sha = sha
		e.body = body
		c.order.MoveToFront(el)
		return
	}

	c.entries[docID] = c.order.PushFront(&cacheEntry{docID: docID, sha: sha, body: body})
	if c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).docID)
	}
}

// Invalidate drops the entry for docID, if cached. Called after an ingest
// commit replaces the document's canonical text.
func (c *BodyCache) Invalidate(docID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[docID]; ok {
		c.order.Remove(el)
		delete(c.entries, docID)
	}
}

// Len reports the number of cached bodies.
func (c *BodyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
