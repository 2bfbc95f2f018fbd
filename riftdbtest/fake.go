// Package riftdbtest provides an in-process fake transport for exercising
// riftdb.Client without a real WebSocket server, grounded on the
// MockWebSocketAdapter/MockSpacetimeDBConnection fixtures in
// original_source/src/spacetimedb_sdk/testing.py: a connection that queues
// server messages and records what the client sent, instead of talking to
// a socket.
package riftdbtest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/message"
	"github.com/riftdb/riftdb-go/riftdb"
	"github.com/riftdb/riftdb-go/transport"
)

// FakeTransport implements riftdb.WireConn over in-memory channels.
type FakeTransport struct {
	codec *message.Codec

	mu        sync.Mutex
	connected bool

	events chan transport.Event
	frames chan []byte

	sentMu sync.Mutex
	sent   []message.ClientMessage

	onSend func(message.ClientMessage)

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *FakeTransport {
	return &FakeTransport{
		codec:     message.NewCodec(),
		connected: true,
		events:    make(chan transport.Event, 16),
		frames:    make(chan []byte, 64),
		closed:    make(chan struct{}),
	}
}

func (f *FakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) Events() <-chan transport.Event { return f.events }
func (f *FakeTransport) Frames() <-chan []byte          { return f.frames }

// Send decodes the outgoing client frame and records it so a test can
// assert on what the client sent, then hands it to any registered onSend
// hook (used by FakeServer to auto-respond).
func (f *FakeTransport) Send(ctx context.Context, frame []byte) error {
	m, err := f.codec.DecodeClient(frame)
	if err != nil {
		return err
	}
	f.sentMu.Lock()
	f.sent = append(f.sent, m)
	hook := f.onSend
	f.sentMu.Unlock()
	if hook != nil {
		hook(m)
	}
	return nil
}

func (f *FakeTransport) Close(deadline time.Duration) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.connected = false
		f.mu.Unlock()
		close(f.closed)
		close(f.events)
		close(f.frames)
	})
	return nil
}

// PushServerMessage encodes m and delivers it to the client's receive loop
// as though it arrived over the wire.
func (f *FakeTransport) PushServerMessage(m message.ServerMessage) error {
	frame, err := f.codec.EncodeServer(m)
	if err != nil {
		return err
	}
	select {
	case f.frames <- frame:
		return nil
	case <-f.closed:
		return nil
	}
}

// PushDisconnect simulates the transport observing a socket close.
func (f *FakeTransport) PushDisconnect(cause error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	kind := transport.EventDisconnected
	if cause != nil {
		kind = transport.EventError
	}
	select {
	case f.events <- transport.Event{Kind: kind, Err: cause}:
	case <-f.closed:
	}
}

// SentMessages returns a snapshot of every client message the fake has
// observed, in send order.
func (f *FakeTransport) SentMessages() []message.ClientMessage {
	f.sentMu.Lock()
	defer f.sentMu.Unlock()
	out := make([]message.ClientMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// FakeServer plays the server side of a fake connection: it owns the
// transport a Dialer hands to riftdb.Builder.Connect, and exposes helpers
// to script IdentityToken, TransactionUpdate, and subscription responses
// the way a real RiftDB module would.
type FakeServer struct {
	Identity     ids.Identity
	ConnectionID ids.ConnectionID
	Token        string

	// AutoIdentity controls whether Dialer sends the IdentityToken
	// handshake message immediately after connecting. Defaults to true;
	// set false to control the timing of identity delivery explicitly
	// (e.g. to test Connect's timeout path).
	AutoIdentity bool

	transport *FakeTransport
}

// NewFakeServer constructs a FakeServer identity/connection pair that
// auto-delivers its identity token on connect. identity and connID are
// typically produced with ids.IdentityFromBytes/ids.NewConnectionID in the
// caller's test.
func NewFakeServer(identity ids.Identity, connID ids.ConnectionID, token string) *FakeServer {
	return &FakeServer{Identity: identity, ConnectionID: connID, Token: token, AutoIdentity: true}
}

// Dialer returns a riftdb.Dialer that hands out this server's transport,
// suitable for riftdb.WithDialer. Dialing more than once replaces the
// transport, as a real reconnect would open a new socket.
func (s *FakeServer) Dialer() riftdb.Dialer {
	return func(ctx context.Context, cfg transport.Config, logger zerolog.Logger) (riftdb.WireConn, error) {
		s.transport = newFakeTransport()
		if s.AutoIdentity {
			go func() { _ = s.SendIdentity() }()
		}
		return s.transport, nil
	}
}

// OnClientSend registers a hook invoked synchronously whenever the client
// sends a frame, after it has been decoded and recorded. Tests use this to
// script automatic responses (e.g. always reply SubscribeApplied).
func (s *FakeServer) OnClientSend(fn func(message.ClientMessage)) {
	s.transport.sentMu.Lock()
	s.transport.onSend = fn
	s.transport.sentMu.Unlock()
}

// SendIdentity delivers the IdentityToken message the client blocks on
// during Connect.
func (s *FakeServer) SendIdentity() error {
	return s.transport.PushServerMessage(message.ServerMessage{
		Tag: message.TagIdentityToken,
		IdentityToken: &message.IdentityTokenMsg{
			Identity:     s.Identity,
			Token:        s.Token,
			ConnectionID: s.ConnectionID,
		},
	})
}

// Send delivers an arbitrary server message to the connected client.
func (s *FakeServer) Send(m message.ServerMessage) error {
	return s.transport.PushServerMessage(m)
}

// Disconnect simulates the transport losing its connection.
func (s *FakeServer) Disconnect(cause error) {
	s.transport.PushDisconnect(cause)
}

// SentMessages returns every client message sent so far.
func (s *FakeServer) SentMessages() []message.ClientMessage {
	return s.transport.SentMessages()
}
