package riftdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/pool"
	"github.com/riftdb/riftdb-go/riftdb"
	"github.com/riftdb/riftdb-go/riftdbtest"
)

func TestDialPoolRegistersMinSizeConnections(t *testing.T) {
	t.Parallel()

	srv := riftdbtest.NewFakeServer(testIdentity(0x20), ids.NewConnectionID(), "tok")

	p, err := riftdb.NewBuilder("ws://fake/module").
		Apply(
			riftdb.WithDialer(srv.Dialer()),
			riftdb.WithRequestTimeout(time.Second),
			riftdb.WithPoolConfig(pool.Config{MinSize: 1, MaxSize: 2, Strategy: pool.StrategyRoundRobin}),
		).
		DialPool(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	defer p.Shutdown()

	assert.Equal(t, 1, p.Size())

	err = p.Call(context.Background(), func(c pool.Conn) error {
		assert.True(t, c.Healthy())
		return nil
	})
	require.NoError(t, err)
}
