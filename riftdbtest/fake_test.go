package riftdbtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/message"
	"github.com/riftdb/riftdb-go/riftdb"
	"github.com/riftdb/riftdb-go/riftdbtest"
)

func TestFakeServerDeliversIdentityOnConnect(t *testing.T) {
	t.Parallel()

	var identity ids.Identity
	identity[0] = 0xAB
	srv := riftdbtest.NewFakeServer(identity, ids.NewConnectionID(), "tok")

	client, err := riftdb.NewBuilder("ws://fake/module").
		Apply(riftdb.WithDialer(srv.Dialer()), riftdb.WithRequestTimeout(time.Second)).
		Connect(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, identity, client.Identity())
}

func TestFakeServerRecordsSentMessages(t *testing.T) {
	t.Parallel()

	srv := riftdbtest.NewFakeServer(ids.Identity{}, ids.NewConnectionID(), "tok")
	client, err := riftdb.NewBuilder("ws://fake/module").
		Apply(riftdb.WithDialer(srv.Dialer()), riftdb.WithRequestTimeout(time.Second)).
		Connect(context.Background(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, client.CallReducer(context.Background(), "ping", nil, 0, true))

	require.Eventually(t, func() bool {
		sent := srv.SentMessages()
		for _, m := range sent {
			if m.Tag == message.TagCallReducer {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestFakeServerDisconnectClosesClientEvents(t *testing.T) {
	t.Parallel()

	srv := riftdbtest.NewFakeServer(ids.Identity{}, ids.NewConnectionID(), "tok")
	client, err := riftdb.NewBuilder("ws://fake/module").
		Apply(riftdb.WithDialer(srv.Dialer()), riftdb.WithRequestTimeout(time.Second)).
		Connect(context.Background(), zerolog.Nop())
	require.NoError(t, err)

	srv.Disconnect(nil)

	require.Eventually(t, func() bool {
		return client.State() == riftdb.StateDisconnected
	}, time.Second, time.Millisecond)
}
