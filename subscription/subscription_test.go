package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/retrypolicy"
)

func newTestSub() *Subscription {
	return New(1, FlavorSingle, []string{"SELECT * FROM users"},
		retrypolicy.Config{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxRetries: 2})
}

func TestMarkActiveFromPending(t *testing.T) {
	t.Parallel()
	s := newTestSub()
	require.NoError(t, s.MarkActive())
	assert.Equal(t, StateActive, s.State())
}

func TestMarkActiveFromWrongStateFails(t *testing.T) {
	t.Parallel()
	s := newTestSub()
	s.Cancel()

	err := s.MarkActive()
	require.Error(t, err)
	var se *SubscriptionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrInvalidState, se.Kind)
}

func TestMarkErrorRetriesThenFails(t *testing.T) {
	t.Parallel()
	s := newTestSub()

	_, retry1 := s.MarkError(errors.New("boom"))
	assert.True(t, retry1)
	assert.Equal(t, StateRetrying, s.State())

	_, retry2 := s.MarkError(errors.New("boom"))
	assert.True(t, retry2)

	_, retry3 := s.MarkError(errors.New("boom"))
	assert.False(t, retry3)
	assert.Equal(t, StateError, s.State())
}

func TestApplyDeltaClassifiesInsertUpdateDelete(t *testing.T) {
	t.Parallel()
	s := newTestSub()

	s.ApplyDelta(RowDelta{
		Table:   "users",
		Inserts: []KeyedRow{{Key: "u1", Row: "alice"}, {Key: "u2", Row: "bob"}},
	})
	require.Equal(t, 2, s.CacheFor("users").Count())

	changes := s.ApplyDelta(RowDelta{
		Table:   "users",
		Deletes: []KeyedRow{{Key: "u1", Row: "alice"}, {Key: "u2", Row: "bob"}},
		Inserts: []KeyedRow{{Key: "u1", Row: "alice2"}},
	})

	require.Len(t, changes, 2)
	var gotUpdate, gotDelete bool
	for _, c := range changes {
		switch c.Kind {
		case ChangeUpdate:
			gotUpdate = true
			assert.Equal(t, "alice", c.Before)
			assert.Equal(t, "alice2", c.After)
		case ChangeDelete:
			gotDelete = true
			assert.Equal(t, "bob", c.Before)
		}
	}
	assert.True(t, gotUpdate)
	assert.True(t, gotDelete)
	assert.Equal(t, 1, s.CacheFor("users").Count())
}

func TestOnChangeDispatchesAppliedDelta(t *testing.T) {
	t.Parallel()
	s := newTestSub()

	var received []RowChange
	s.OnChange(func(changes []RowChange) { received = append(received, changes...) })

	s.ApplyDelta(RowDelta{Table: "users", Inserts: []KeyedRow{{Key: "u1", Row: "alice"}}})

	require.Len(t, received, 1)
	assert.Equal(t, ChangeInsert, received[0].Kind)
}
