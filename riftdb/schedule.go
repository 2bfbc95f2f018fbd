// The bare scheduler package only knows about opaque func(context.Context)
// callbacks; it has no notion of a reducer call succeeding or failing.
// This file wraps it with the per-entry state machine and metrics
// spec.md §4.8 describes (pending/executing/completed/failed/cancelled,
// execution counts, durations), closing the gap between "a task fires on
// a timer" and "a scheduled reducer invocation."
package riftdb

import (
	"context"
	"sync"
	"time"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/scheduler"
)

// ScheduleState is one scheduled reducer's lifecycle state.
type ScheduleState uint8

const (
	SchedulePending ScheduleState = iota
	ScheduleExecuting
	ScheduleCompleted
	ScheduleFailedState
	ScheduleCancelled
)

func (s ScheduleState) String() string {
	switch s {
	case SchedulePending:
		return "Pending"
	case ScheduleExecuting:
		return "Executing"
	case ScheduleCompleted:
		return "Completed"
	case ScheduleFailedState:
		return "Failed"
	case ScheduleCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ScheduleMetrics accumulates the per-entry counters spec.md §4.8 calls
// for: total executions, total/average duration, success/failure counts.
type ScheduleMetrics struct {
	Executions int
	Successes  int
	Failures   int
	TotalTime  time.Duration
}

// AverageDuration is TotalTime divided across Executions, or zero before
// the first invocation.
func (m ScheduleMetrics) AverageDuration() time.Duration {
	if m.Executions == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Executions)
}

// ScheduledReducer is one entry registered via Client.ScheduleReducer.
type ScheduledReducer struct {
	ID          scheduler.EntryID
	ReducerName string
	Args        []byte
	Schedule    ids.ScheduleAt

	mu            sync.Mutex
	state         ScheduleState
	lastErr       error
	lastExecution time.Time
	nextExecution time.Time
	metrics       ScheduleMetrics
}

// State returns the entry's current lifecycle state.
func (e *ScheduledReducer) State() ScheduleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Metrics returns a snapshot of the entry's accumulated counters.
func (e *ScheduledReducer) Metrics() ScheduleMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// LastError returns the error from the most recent failed invocation, if
// any.
func (e *ScheduledReducer) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// LastExecution and NextExecution report the most recent firing time and
// (for Every schedules) the next one.
func (e *ScheduledReducer) LastExecution() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastExecution
}

func (e *ScheduledReducer) NextExecution() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextExecution
}

// ScheduleReducer registers name/args to run per schedule (a one-shot
// `At` or a recurring `Every`), invoking CallReducerAndAwait on each
// firing and tracking the resulting state and metrics, per spec.md
// §4.8. A failed invocation does not stop an `Every` schedule's future
// firings; it only records the failure on the entry.
func (c *Client) ScheduleReducer(schedule ids.ScheduleAt, reducerName string, args []byte, cost ReducerCost, timeout time.Duration) (*ScheduledReducer, error) {
	se := &ScheduledReducer{
		ReducerName: reducerName,
		Args:        args,
		Schedule:    schedule,
		state:       SchedulePending,
	}

	id, err := c.sched.Add(schedule, func(ctx context.Context) {
		c.runScheduledReducer(ctx, se, cost, timeout)
	})
	if err != nil {
		return nil, err
	}
	se.ID = id

	c.schedMu.Lock()
	c.schedByID[id] = se
	c.schedMu.Unlock()
	return se, nil
}

func (c *Client) runScheduledReducer(ctx context.Context, se *ScheduledReducer, cost ReducerCost, timeout time.Duration) {
	se.mu.Lock()
	se.state = ScheduleExecuting
	se.mu.Unlock()

	start := time.Now()
	_, err := c.CallReducerAndAwait(ctx, se.ReducerName, se.Args, cost, false, timeout)
	elapsed := time.Since(start)

	se.mu.Lock()
	se.lastExecution = start
	se.metrics.Executions++
	se.metrics.TotalTime += elapsed
	if err != nil {
		se.metrics.Failures++
		se.lastErr = err
		se.state = ScheduleFailedState
	} else {
		se.metrics.Successes++
		se.lastErr = nil
		if se.Schedule.Kind == ids.ScheduleEvery {
			se.state = SchedulePending
			se.nextExecution = start.Add(se.Schedule.Every.Std())
		} else {
			se.state = ScheduleCompleted
		}
	}
	se.mu.Unlock()

	if err != nil {
		c.bus.ScheduleFailed.Emit(events.ScheduleFailed{
			EntryID:     uint64(se.ID),
			ReducerName: se.ReducerName,
			Err:         err,
		})
	}
}

// CancelSchedule cancels a previously scheduled reducer by id. A
// currently-executing invocation is not interrupted, but it will not be
// rescheduled. Returns false if id is unknown or already cancelled.
func (c *Client) CancelSchedule(id scheduler.EntryID) bool {
	c.schedMu.Lock()
	se, ok := c.schedByID[id]
	if ok {
		delete(c.schedByID, id)
	}
	c.schedMu.Unlock()
	if !ok {
		return false
	}

	cancelled := c.sched.Cancel(id)
	se.mu.Lock()
	se.state = ScheduleCancelled
	se.mu.Unlock()
	return cancelled
}

// ScheduledReducers returns a snapshot of every currently-registered
// scheduled reducer.
func (c *Client) ScheduledReducers() []*ScheduledReducer {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	out := make([]*ScheduledReducer, 0, len(c.schedByID))
	for _, se := range c.schedByID {
		out = append(out, se)
	}
	return out
}
