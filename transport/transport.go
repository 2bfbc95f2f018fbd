// Package transport implements the duplex, format-agnostic framed channel
// described in spec.md §4.3: it carries opaque frames over a WebSocket
// connection and says nothing about codec or retry policy.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// FrameMode selects the WebSocket opcode used for client->server writes.
type FrameMode uint8

const (
	Binary FrameMode = iota
	Text
)

// EventKind enumerates the lifecycle events a Transport emits.
type EventKind uint8

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
)

// Event is one lifecycle notification, delivered on the Events channel.
type Event struct {
	Kind EventKind
	Err  error
}

// TransportError is the typed error family spec.md §7 defines for the
// transport layer.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
}

type TransportErrorKind string

const (
	ErrUnreachable       TransportErrorKind = "Unreachable"
	ErrTLS               TransportErrorKind = "TlsError"
	ErrProtocolViolation TransportErrorKind = "ProtocolViolation"
	ErrClosed            TransportErrorKind = "Closed"
)

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Kind, e.Message)
}

// Config configures Dial. URI must be ws:// or wss://; scheme selects TLS.
type Config struct {
	URI         string
	Token       string
	ModuleName  string
	Mode        FrameMode
	DialTimeout time.Duration
	WriteWait   time.Duration
	PongWait    time.Duration
}

// Transport is a bidirectional framed channel over one WebSocket
// connection. It owns a single receive task and serializes writes, per
// spec.md §5's concurrency model. It is safe for concurrent Send calls
// and exactly one Recv loop.
type Transport struct {
	cfg    Config
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	frames  chan []byte
	events  chan Event

	connected atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
}

const (
	defaultDialTimeout = 10 * time.Second
	defaultWriteWait   = 5 * time.Second
	defaultPongWait    = 30 * time.Second
)

// Dial opens the transport: the URL + bearer token + database handle
// named in spec.md §4.3.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Transport, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, &TransportError{Kind: ErrUnreachable, Message: err.Error()}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &TransportError{Kind: ErrUnreachable, Message: "uri scheme must be ws or wss"}
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = defaultPongWait
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.ModuleName != "" {
		header.Set("X-Module-Name", cfg.ModuleName)
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, u.String(), header)
	if err != nil {
		if u.Scheme == "wss" {
			return nil, &TransportError{Kind: ErrTLS, Message: err.Error()}
		}
		return nil, &TransportError{Kind: ErrUnreachable, Message: err.Error()}
	}

	t := &Transport{
		cfg:    cfg,
		conn:   conn,
		logger: logger.With().Str("component", "transport").Logger(),
		frames: make(chan []byte, 256),
		events: make(chan Event, 32),
		closed: make(chan struct{}),
	}
	t.connected.Store(true)

	conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
		return nil
	})

	go t.readPump()

	t.emit(Event{Kind: EventConnected})
	return t, nil
}

// Connected reports whether the underlying socket is believed open.
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Events returns the lifecycle event stream. Consumers should drain it
// promptly; it is buffered but not unbounded.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Frames returns the stream of received frames, each one a whole message
// as written by the peer (frame boundaries preserved).
func (t *Transport) Frames() <-chan []byte {
	return t.frames
}

func (t *Transport) emit(e Event) {
	select {
	case t.events <- e:
	default:
		// Events channel is a best-effort lifecycle signal; a full buffer
		// means nobody is listening and dropping is preferable to
		// blocking the read/write path.
	}
}

func (t *Transport) readPump() {
	defer func() {
		t.connected.Store(false)
		close(t.frames)
		t.emit(Event{Kind: EventDisconnected})
		t.closeOnce.Do(func() { close(t.closed) })
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emit(Event{Kind: EventError, Err: &TransportError{Kind: ErrProtocolViolation, Message: err.Error()}})
			}
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
		select {
		case t.frames <- data:
		case <-t.closed:
			return
		}
	}
}

// Send writes one frame. It returns only after the OS has accepted the
// write (backpressure surfaced per spec.md §4.3), and is safe to call
// concurrently with other Send calls — writes are serialized internally.
func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if !t.connected.Load() {
		return &TransportError{Kind: ErrClosed, Message: "transport is not connected"}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(t.cfg.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return &TransportError{Kind: ErrClosed, Message: err.Error()}
	}

	opcode := websocket.BinaryMessage
	if t.cfg.Mode == Text {
		opcode = websocket.TextMessage
	}
	if err := t.conn.WriteMessage(opcode, frame); err != nil {
		return &TransportError{Kind: ErrProtocolViolation, Message: err.Error()}
	}
	return nil
}

// Close gracefully closes the transport, draining in-flight writes within
// deadline before tearing down the socket, per spec.md §4.3.
func (t *Transport) Close(deadline time.Duration) error {
	if !t.connected.CompareAndSwap(true, true) && !t.connected.Load() {
		return nil
	}

	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(deadline))
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	select {
	case <-t.closed:
	case <-time.After(deadline):
	}
	return t.conn.Close()
}
