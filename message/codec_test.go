package message

import (
	"testing"

	"github.com/riftdb/riftdb-go/compress"
	"github.com/riftdb/riftdb-go/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCodec()

	in := ClientMessage{
		Tag: TagCallReducer,
		CallReducer: &CallReducer{
			ReducerName: "send_message",
			Args:        []byte{1, 2, 3},
			RequestID:   7,
			Flags:       FlagFullUpdate,
		},
	}
	encoded, err := c.EncodeClient(in)
	require.NoError(t, err)
	assert.Equal(t, byte(compress.None), encoded[0], "small frames stay under the compression threshold")
	assert.Equal(t, byte(TagCallReducer), encoded[1])

	out, err := c.DecodeClient(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.CallReducer)
	assert.Equal(t, *in.CallReducer, *out.CallReducer)
}

func TestSubscribeRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCodec()

	in := ClientMessage{
		Tag: TagSubscribeMulti,
		SubscribeMulti: &Subscribe{
			Queries:   []string{"SELECT * FROM a", "SELECT * FROM b"},
			RequestID: 1,
			QueryID:   5,
		},
	}
	encoded, err := c.EncodeClient(in)
	require.NoError(t, err)
	out, err := c.DecodeClient(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.SubscribeMulti)
	assert.Equal(t, *in.SubscribeMulti, *out.SubscribeMulti)
}

func TestIdentityTokenRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCodec()

	in := ServerMessage{
		Tag: TagIdentityToken,
		IdentityToken: &IdentityTokenMsg{
			Identity:     ids.IdentityFromPublicKey([]byte("k")),
			Token:        "tok_abcdefghij",
			ConnectionID: ids.NewConnectionID(),
		},
	}
	encoded, err := c.EncodeServer(in)
	require.NoError(t, err)
	out, err := c.DecodeServer(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.IdentityToken)
	assert.Equal(t, *in.IdentityToken, *out.IdentityToken)
}

func TestTransactionUpdateRoundTrip(t *testing.T) {
	t.Parallel()
	c := NewCodec()

	in := ServerMessage{
		Tag: TagTransactionUpdate,
		TransactionUpdate: &TransactionUpdate{
			Status:             StatusCommitted,
			Timestamp:          ids.Now(),
			CallerIdentity:     ids.IdentityFromPublicKey([]byte("caller")),
			CallerConnectionID: ids.NewConnectionID(),
			ReducerCall: ReducerCallInfo{
				ReducerName: "insert_user",
				ReducerID:   3,
				Args:        []byte{9, 9},
				RequestID:   11,
			},
			EnergyUsed:            500,
			HostExecutionDuration: ids.Duration(1200),
			DatabaseUpdate: DatabaseUpdate{
				Tables: []TableUpdate{
					{TableName: "users", Inserts: [][]byte{{1, 2}}, Deletes: nil},
				},
			},
		},
	}
	encoded, err := c.EncodeServer(in)
	require.NoError(t, err)
	out, err := c.DecodeServer(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.TransactionUpdate)
	assert.Equal(t, *in.TransactionUpdate, *out.TransactionUpdate)
}

func TestSubscriptionErrorRoundTripWithNilOptions(t *testing.T) {
	t.Parallel()
	c := NewCodec()

	in := ServerMessage{
		Tag: TagSubscriptionError,
		SubscriptionError: &SubscriptionError{
			RequestID: nil,
			QueryID:   nil,
			Message:   "too many retries",
		},
	}
	encoded, err := c.EncodeServer(in)
	require.NoError(t, err)
	out, err := c.DecodeServer(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.SubscriptionError)
	assert.Nil(t, out.SubscriptionError.RequestID)
	assert.Equal(t, "too many retries", out.SubscriptionError.Message)
}

func TestUnknownServerTagFails(t *testing.T) {
	t.Parallel()
	c := NewCodec()
	_, err := c.DecodeServer([]byte{byte(compress.None), 0xEE})
	require.Error(t, err)
}

func TestFrameCarriesCompressionDiscriminatorByte(t *testing.T) {
	t.Parallel()
	c := NewCodec()
	c.SetCompression(compress.Gzip)

	// Large enough to clear the default 1024-byte compression threshold.
	big := make([]byte, 4096)
	in := ClientMessage{
		Tag:         TagCallReducer,
		CallReducer: &CallReducer{ReducerName: "bulk_insert", Args: big, RequestID: 1},
	}
	encoded, err := c.EncodeClient(in)
	require.NoError(t, err)
	assert.Equal(t, byte(compress.Gzip), encoded[0])
	assert.Less(t, len(encoded), len(big))

	out, err := c.DecodeClient(encoded)
	require.NoError(t, err)
	require.NotNil(t, out.CallReducer)
	assert.Equal(t, big, out.CallReducer.Args)
}
