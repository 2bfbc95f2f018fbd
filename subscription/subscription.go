// Package subscription implements the client-side subscription engine of
// spec.md §4.5: it tracks one or more SQL query subscriptions, applies
// incoming diffs to a tablecache.Cache, and classifies each row change as
// insert/update/delete by primary key. Grounded on the subscription
// lifecycle ws/internal/shared/broadcast.go's SubscriptionIndex models
// for the server side, adapted here to a client tracking queries instead
// of channels.
package subscription

import (
	"fmt"
	"sync"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/retrypolicy"
	"github.com/riftdb/riftdb-go/tablecache"
)

// State is the subscription lifecycle spec.md §4.5 names.
type State uint8

const (
	StatePending State = iota
	StateActive
	StateRetrying
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateActive:
		return "Active"
	case StateRetrying:
		return "Retrying"
	case StateError:
		return "Error"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// SubscriptionError is the typed error family for subscription failures.
type SubscriptionError struct {
	Kind    SubscriptionErrorKind
	Message string
}

type SubscriptionErrorKind string

const (
	ErrRejected      SubscriptionErrorKind = "Rejected"
	ErrInvalidState  SubscriptionErrorKind = "InvalidState"
	ErrAlreadyActive SubscriptionErrorKind = "AlreadyActive"
)

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription: %s: %s", e.Kind, e.Message)
}

// Flavor selects between a single combined query (Single) and
// independently tracked queries sharing one request (Multi), per
// spec.md §4.5.
type Flavor uint8

const (
	FlavorSingle Flavor = iota
	FlavorMulti
)

// RowChange classifies one row mutation a diff produced.
type RowChange struct {
	Table  string
	Key    tablecache.RowKey
	Kind   ChangeKind
	Before tablecache.Row // set for Update and Delete
	After  tablecache.Row // set for Insert and Update
}

type ChangeKind uint8

const (
	ChangeInsert ChangeKind = iota
	ChangeUpdate
	ChangeDelete
)

// Subscription tracks one query's lifecycle and applies diffs to the
// table caches it touches.
type Subscription struct {
	mu sync.Mutex

	QueryID ids.QueryID
	Flavor  Flavor
	Queries []string

	state   State
	lastErr error
	retry   *retrypolicy.Policy

	caches map[string]*tablecache.Cache

	// keyFuncs extracts a stable RowKey from a table's raw encoded row
	// bytes. Without one registered for a table, the row's own bytes are
	// used as its key — correct for insert/delete but it cannot collapse
	// a delete+insert pair into an Update, since two different byte
	// strings never compare equal. Callers that know a table's primary
	// key layout should register an extractor via SetKeyFunc.
	keyFuncs map[string]func([]byte) tablecache.RowKey

	onChange []func([]RowChange)
}

// New constructs a Subscription over the given queries, in the Pending
// state, with its own retry schedule.
func New(queryID ids.QueryID, flavor Flavor, queries []string, retryCfg retrypolicy.Config) *Subscription {
	return &Subscription{
		QueryID: queryID,
		Flavor:  flavor,
		Queries: queries,
		state:   StatePending,
		retry:   retrypolicy.New(retryCfg),
		caches:  make(map[string]*tablecache.Cache),
		keyFuncs: make(map[string]func([]byte) tablecache.RowKey),
	}
}

// SetKeyFunc registers how to derive a stable primary-key RowKey from a
// table's raw encoded row bytes, enabling update detection for that
// table. Without one, RowKeyFor falls back to using the row bytes
// themselves as the key.
func (s *Subscription) SetKeyFunc(table string, fn func([]byte) tablecache.RowKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyFuncs[table] = fn
}

// RowKeyFor derives the RowKey for one raw encoded row of table.
func (s *Subscription) RowKeyFor(table string, row []byte) tablecache.RowKey {
	s.mu.Lock()
	fn, ok := s.keyFuncs[table]
	s.mu.Unlock()
	if ok {
		return fn(row)
	}
	return tablecache.RowKey(row)
}

// State returns the subscription's current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent failure, if any.
func (s *Subscription) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// CacheFor returns (creating if absent) the table cache for name. This
// is how a subscription's initial rows and subsequent diffs reach a
// queryable cache.
func (s *Subscription) CacheFor(name string) *tablecache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = tablecache.New(name)
		s.caches[name] = c
	}
	return c
}

// MarkActive transitions Pending -> Active once the server confirms the
// initial subscription snapshot has been applied.
func (s *Subscription) MarkActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending && s.state != StateRetrying {
		return &SubscriptionError{Kind: ErrInvalidState, Message: s.state.String()}
	}
	s.state = StateActive
	s.retry.Reset()
	return nil
}

// MarkError transitions into Error (or Retrying, if a retry policy
// attempt remains) and records the cause.
func (s *Subscription) MarkError(cause error) (retryIn int64, willRetry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = cause

	delay, ok := s.retry.Next()
	if !ok {
		s.state = StateError
		return 0, false
	}
	s.state = StateRetrying
	return int64(delay), true
}

// Cancel transitions into Cancelled, a terminal state.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCancelled
}

// OnChange registers a callback invoked with the set of row changes
// produced by each applied diff, in the order ApplyDelta produced them:
// deletes and updates first, then inserts, each in the order the server
// sent them (spec.md §8's ordering invariant).
func (s *Subscription) OnChange(cb func([]RowChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, cb)
}

func (s *Subscription) dispatch(changes []RowChange) {
	s.mu.Lock()
	cbs := make([]func([]RowChange), len(s.onChange))
	copy(cbs, s.onChange)
	s.mu.Unlock()

	for _, cb := range cbs {
		safeDispatch(cb, changes)
	}
}

func safeDispatch(cb func([]RowChange), changes []RowChange) {
	defer func() { _ = recover() }()
	cb(changes)
}
