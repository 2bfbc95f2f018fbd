// Package reqtrack correlates outbound request ids with their eventual
// responses, per spec.md §4.4.
package reqtrack

import (
	"sync"
	"time"

	"github.com/riftdb/riftdb-go/ids"
)

type pendingEntry struct {
	start   time.Time
	timeout time.Duration
}

// Tracker maintains the pending/completed maps spec.md §4.4 describes.
// All operations are atomic under one mutex.
type Tracker struct {
	mu        sync.Mutex
	allocator ids.RequestIDAllocator
	pending   map[ids.RequestID]pendingEntry
	completed map[ids.RequestID]interface{}
}

func New() *Tracker {
	return &Tracker{
		pending:   make(map[ids.RequestID]pendingEntry),
		completed: make(map[ids.RequestID]interface{}),
	}
}

// NewID allocates the next request id, skipping ids still pending so
// spec.md §8 invariant 2 ("new_id never repeats an in-flight id") holds
// even across the allocator's wraparound at 2^31.
func (t *Tracker) NewID() ids.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		id := t.allocator.Next()
		if _, busy := t.pending[id]; !busy {
			return id
		}
	}
}

// AddPending records the start time and timeout for a request awaiting a
// response.
func (t *Tracker) AddPending(id ids.RequestID, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = pendingEntry{start: time.Now(), timeout: timeout}
}

// Resolve moves a pending request to completed. It returns false if id
// was not pending — spec.md §8 invariant 3, at-most-once resolution.
func (t *Tracker) Resolve(id ids.RequestID, response interface{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	t.completed[id] = response
	return true
}

// TakeCompleted removes and returns a completed response, if any.
func (t *Tracker) TakeCompleted(id ids.RequestID) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	resp, ok := t.completed[id]
	if ok {
		delete(t.completed, id)
	}
	return resp, ok
}

// TimedOut is one pending request whose elapsed time exceeded its
// configured timeout.
type TimedOut struct {
	ID      ids.RequestID
	Elapsed time.Duration
}

// PollTimeouts returns and drops every pending request whose elapsed time
// exceeds its timeout.
func (t *Tracker) PollTimeouts() []TimedOut {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var expired []TimedOut
	for id, entry := range t.pending {
		elapsed := now.Sub(entry.start)
		if elapsed > entry.timeout {
			expired = append(expired, TimedOut{ID: id, Elapsed: elapsed})
			delete(t.pending, id)
		}
	}
	return expired
}

// CancelAll drops every pending request and returns their ids, used when
// the connection closes (spec.md §8 invariant 9, cancellation
// completeness).
func (t *Tracker) CancelAll() []ids.RequestID {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := make([]ids.RequestID, 0, len(t.pending))
	for id := range t.pending {
		cancelled = append(cancelled, id)
		delete(t.pending, id)
	}
	return cancelled
}

// PendingCount reports how many requests are currently awaiting a
// response. Exposed for tests and diagnostics.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
