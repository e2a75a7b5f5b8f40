package fence

import (
	"sync"
	"time"
)

type pendingEntry struct {
	req       *CheckRequest
	createdAt time.Time
}

// pendingTable holds requests waiting on a user prompt, keyed by
// request token. Entries expire after ttl and the table is bounded;
// the oldest entry is evicted when a new one would exceed maxSize.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newPendingTable(ttl time.Duration, maxSize int, now func() time.Time) *pendingTable {
	return &pendingTable{
		entries: make(map[string]pendingEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

func (t *pendingTable) put(token string, req *CheckRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)
	if len(t.entries) >= t.maxSize {
		t.evictOldestLocked()
	}
	t.entries[token] = pendingEntry{req: req, createdAt: now}
}

// take removes and returns the request for token. Each token resolves
// at most once; a second take, an unknown token, or an expired entry
// all report a miss.
func (t *pendingTable) take(token string) (*CheckRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return nil, false
	}
	delete(t.entries, token)
	if t.now().Sub(e.createdAt) >= t.ttl {
		return nil, false
	}
	return e.req, true
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *pendingTable) sweepLocked(now time.Time) {
	for token, e := range t.entries {
		if now.Sub(e.createdAt) >= t.ttl {
			delete(t.entries, token)
		}
	}
}

func (t *pendingTable) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for token, e := range t.entries {
		if oldest == "" || e.createdAt.Before(oldestAt) {
			oldest = token
			oldestAt = e.createdAt
		}
	}
	if oldest != "" {
		delete(t.entries, oldest)
	}
}
