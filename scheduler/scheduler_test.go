package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/ids"
)

func TestAddAtFiresOnce(t *testing.T) {
	t.Parallel()
	s := New(4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var count int32
	done := make(chan struct{})
	_, err := s.Add(ids.ScheduleAtTime(ids.Now()), func(context.Context) {
		if atomic.AddInt32(&count, 1) == 1 {
			close(done)
		}
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("entry never fired")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestAddEveryFiresRepeatedly(t *testing.T) {
	t.Parallel()
	s := New(4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var count int32
	_, err := s.Add(ids.ScheduleEveryInterval(ids.DurationFromStd(5*time.Millisecond)),
		func(context.Context) { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(2))
}

func TestAddRejectsZeroInterval(t *testing.T) {
	t.Parallel()
	s := New(1, zerolog.Nop())
	_, err := s.Add(ids.ScheduleAt{Kind: ids.ScheduleEvery}, func(context.Context) {})
	require.Error(t, err)
}

func TestCancelPreventsFutureRuns(t *testing.T) {
	t.Parallel()
	s := New(4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var count int32
	id, err := s.Add(ids.ScheduleEveryInterval(ids.DurationFromStd(5*time.Millisecond)),
		func(context.Context) { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id))
	assert.Equal(t, 0, s.Len())
}

func TestConcurrencyCapSerializesExcessInvocations(t *testing.T) {
	t.Parallel()
	s := New(1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var mu sync.Mutex
	var active, maxActive int

	track := func(context.Context) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	for i := 0; i < 3; i++ {
		_, err := s.Add(ids.ScheduleAtTime(ids.Now()), track)
		require.NoError(t, err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxActive, 1)
}
