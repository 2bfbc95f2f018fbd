package reqtrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDNeverRepeatsPending(t *testing.T) {
	t.Parallel()
	tr := New()

	a := tr.NewID()
	tr.AddPending(a, time.Minute)
	b := tr.NewID()
	assert.NotEqual(t, a, b)
}

func TestResolveAtMostOnce(t *testing.T) {
	t.Parallel()
	tr := New()

	id := tr.NewID()
	tr.AddPending(id, time.Minute)

	assert.True(t, tr.Resolve(id, "ok"))
	assert.False(t, tr.Resolve(id, "ok again"))

	resp, ok := tr.TakeCompleted(id)
	require.True(t, ok)
	assert.Equal(t, "ok", resp)
}

func TestResolveUnknownIDFails(t *testing.T) {
	t.Parallel()
	tr := New()
	assert.False(t, tr.Resolve(999, "nope"))
}

func TestPollTimeoutsDropsExpired(t *testing.T) {
	t.Parallel()
	tr := New()

	id := tr.NewID()
	tr.AddPending(id, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	expired := tr.PollTimeouts()
	require.Len(t, expired, 1)
	assert.Equal(t, id, expired[0].ID)
	assert.Equal(t, 0, tr.PendingCount())
}

func TestCancelAllDrainsPending(t *testing.T) {
	t.Parallel()
	tr := New()

	a := tr.NewID()
	b := tr.NewID()
	tr.AddPending(a, time.Minute)
	tr.AddPending(b, time.Minute)

	cancelled := tr.CancelAll()
	assert.Len(t, cancelled, 2)
	assert.Equal(t, 0, tr.PendingCount())
}

func TestAddPendingAfterResolveGuaranteesDelivery(t *testing.T) {
	t.Parallel()
	tr := New()
	id := tr.NewID()

	tr.AddPending(id, time.Minute)
	ok := tr.Resolve(id, 42)
	require.True(t, ok)

	resp, found := tr.TakeCompleted(id)
	require.True(t, found)
	assert.Equal(t, 42, resp)
}
