package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestDialConnectsAndEchoes(t *testing.T) {
	t.Parallel()
	srv := echoServer(t)
	defer srv.Close()

	tr, err := Dial(context.Background(), Config{URI: wsURL(srv.URL), Token: "tok_abcdefghij"}, zerolog.Nop())
	require.NoError(t, err)
	defer tr.Close(time.Second)

	require.True(t, tr.Connected())

	ev := <-tr.Events()
	assert.Equal(t, EventConnected, ev.Kind)

	require.NoError(t, tr.Send(context.Background(), []byte("hello")))

	select {
	case frame := <-tr.Frames():
		assert.Equal(t, "hello", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestDialRejectsBadScheme(t *testing.T) {
	t.Parallel()
	_, err := Dial(context.Background(), Config{URI: "http://example.com"}, zerolog.Nop())
	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrUnreachable, te.Kind)
}

func TestCloseMarksDisconnected(t *testing.T) {
	t.Parallel()
	srv := echoServer(t)
	defer srv.Close()

	tr, err := Dial(context.Background(), Config{URI: wsURL(srv.URL)}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, tr.Close(time.Second))
	// Give the read pump a moment to observe the close and flip state.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, tr.Connected())
}
