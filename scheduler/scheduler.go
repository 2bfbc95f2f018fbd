// Package scheduler runs scheduled reducer calls per spec.md §4.8: each
// entry fires once (At) or repeatedly on an interval (Every), with a
// cap on how many reducer invocations may be in flight at once. The
// concurrency gate mirrors the semaphore-backed worker pool in
// ws/worker_pool.go, generalized from a fixed task queue to a
// time-ordered priority queue.
package scheduler

import (
	"container/heap"
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftdb/riftdb-go/ids"
)

// EntryID identifies one scheduled entry for Cancel/Reschedule.
type EntryID uint64

// entry is one scheduled invocation, ordered by NextRun within the heap.
type entry struct {
	id      EntryID
	spec    ids.ScheduleAt
	nextRun time.Time
	fn      func(context.Context)
	index   int // heap.Interface bookkeeping
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].nextRun.Before(h[j].nextRun) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler runs scheduled entries on their own goroutine, gating
// concurrent invocations by maxConcurrent.
type Scheduler struct {
	mu      sync.Mutex
	heap    entryHeap
	nextID  EntryID
	byID    map[EntryID]*entry
	logger  zerolog.Logger
	sem     chan struct{}
	wake    chan struct{}
	running sync.WaitGroup
}

// New constructs a Scheduler that allows at most maxConcurrent reducer
// invocations to run at once.
func New(maxConcurrent int, logger zerolog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		byID:   make(map[EntryID]*entry),
		logger: logger.With().Str("component", "scheduler").Logger(),
		sem:    make(chan struct{}, maxConcurrent),
		wake:   make(chan struct{}, 1),
	}
}

func scheduleFirstRun(now time.Time, spec ids.ScheduleAt) time.Time {
	switch spec.Kind {
	case ids.ScheduleAtTag:
		return spec.At.Time()
	default:
		return now.Add(spec.Every.Std())
	}
}

// Add registers fn to run per spec, returning its EntryID.
func (s *Scheduler) Add(spec ids.ScheduleAt, fn func(context.Context)) (EntryID, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	e := &entry{id: id, spec: spec, fn: fn, nextRun: scheduleFirstRun(time.Now(), spec)}
	heap.Push(&s.heap, e)
	s.byID[id] = e
	s.poke()
	return id, nil
}

// Cancel removes an entry; a currently-running invocation is not
// interrupted, but it will not be rescheduled.
func (s *Scheduler) Cancel(id EntryID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, e.index)
	delete(s.byID, id)
	return true
}

// Len reports how many entries are currently scheduled.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the tick loop until ctx is cancelled. It is meant to be
// launched as its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.heap[0].nextRun)
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.running.Wait()
			return
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		}

		s.fireDue(ctx)
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].nextRun.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(*entry)
		delete(s.byID, e.id)

		if e.spec.Kind == ids.ScheduleEvery {
			next := &entry{id: e.id, spec: e.spec, fn: e.fn, nextRun: now.Add(e.spec.Every.Std())}
			heap.Push(&s.heap, next)
			s.byID[e.id] = next
		}
		s.mu.Unlock()

		s.dispatch(ctx, e)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry) {
	select {
	case s.sem <- struct{}{}:
	default:
		// At the concurrency cap: wait for a free slot, then run this
		// invocation synchronously rather than drop it, same backpressure
		// trade-off worker_pool.go makes for the broadcast path.
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		s.invoke(ctx, e)
		<-s.sem
		return
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() { <-s.sem }()
		s.invoke(ctx, e)
	}()
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Uint64("entry_id", uint64(e.id)).
				Msg("scheduled entry panicked")
		}
	}()
	e.fn(ctx)
}
