package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/ids"
)

type fakeConn struct {
	id      ids.ConnectionID
	healthy bool
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: ids.NewConnectionID(), healthy: true}
}

func (f *fakeConn) ID() ids.ConnectionID { return f.id }
func (f *fakeConn) Healthy() bool        { return f.healthy && !f.closed }
func (f *fakeConn) Close() error         { f.closed = true; return nil }

func TestAddRejectsBeyondMaxSize(t *testing.T) {
	t.Parallel()
	p := New(Config{MinSize: 1, MaxSize: 1}, events.NewBus(), zerolog.Nop())

	require.NoError(t, p.Add(newFakeConn()))
	err := p.Add(newFakeConn())
	require.Error(t, err)
	var pe *PoolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrNoHealthyConnections, pe.Kind)
}

func TestCallRoutesToHealthyConnection(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 1
	p := New(cfg, events.NewBus(), zerolog.Nop())
	require.NoError(t, p.Add(newFakeConn()))

	called := false
	err := p.Call(context.Background(), func(Conn) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCallFailsWhenNoHealthyConnections(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.Base = time.Millisecond
	p := New(cfg, events.NewBus(), zerolog.Nop())

	err := p.Call(context.Background(), func(Conn) error { return nil })
	require.Error(t, err)
}

func TestRemoveDropsConnection(t *testing.T) {
	t.Parallel()
	p := New(DefaultConfig(), events.NewBus(), zerolog.Nop())
	c := newFakeConn()
	require.NoError(t, p.Add(c))
	assert.Equal(t, 1, p.Size())

	p.Remove(c.ID())
	assert.Equal(t, 0, p.Size())
	assert.True(t, c.closed)
}

func TestHealthCheckRemovesFailingConnection(t *testing.T) {
	t.Parallel()
	p := New(DefaultConfig(), events.NewBus(), zerolog.Nop())
	c := newFakeConn()
	require.NoError(t, p.Add(c))

	p.HealthCheck(context.Background(), func(Conn) error {
		return errors.New("ping failed")
	})

	assert.Equal(t, 0, p.Size())
}

func TestRunHealthMonitorRemovesFailingConnectionOnTicker(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond
	p := New(cfg, events.NewBus(), zerolog.Nop())
	c := newFakeConn()
	require.NoError(t, p.Add(c))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.RunHealthMonitor(ctx, func(Conn) error { return errors.New("ping failed") })

	require.Eventually(t, func() bool { return p.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunHealthMonitorStopsOnShutdown(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond
	p := New(cfg, events.NewBus(), zerolog.Nop())
	c := newFakeConn()
	require.NoError(t, p.Add(c))

	done := make(chan struct{})
	go func() {
		p.RunHealthMonitor(context.Background(), func(Conn) error { return nil })
		close(done)
	}()

	p.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunHealthMonitor did not return after Shutdown")
	}
}

func TestCallTracksInFlightAroundFn(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 1
	p := New(cfg, events.NewBus(), zerolog.Nop())
	c := newFakeConn()
	require.NoError(t, p.Add(c))

	var duringCall int64
	err := p.Call(context.Background(), func(Conn) error {
		duringCall = p.InFlight(c.ID())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), duringCall)
	assert.Equal(t, int64(0), p.InFlight(c.ID()))
}

func TestShutdownClosesAllConnections(t *testing.T) {
	t.Parallel()
	p := New(DefaultConfig(), events.NewBus(), zerolog.Nop())
	c1, c2 := newFakeConn(), newFakeConn()
	require.NoError(t, p.Add(c1))
	require.NoError(t, p.Add(c2))

	p.Shutdown()
	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}
