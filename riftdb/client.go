// Package riftdb is the client runtime described in spec.md §4.1-4.2: it
// owns one logical connection's lifecycle, dispatches inbound messages
// to the subscription engine and request tracker, and exposes reducer
// calls, subscriptions, and one-off queries. It is the composition root
// that wires transport, message, reqtrack, subscription, energy,
// scheduler, and events together, the way ws/server.go composes the
// teacher's connection, broadcast, and worker-pool pieces.
package riftdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/riftdb/riftdb-go/compress"
	"github.com/riftdb/riftdb-go/energy"
	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/message"
	"github.com/riftdb/riftdb-go/observability"
	"github.com/riftdb/riftdb-go/reqtrack"
	"github.com/riftdb/riftdb-go/retrypolicy"
	"github.com/riftdb/riftdb-go/scheduler"
	"github.com/riftdb/riftdb-go/subscription"
	"github.com/riftdb/riftdb-go/transport"
)

// WireConn is the subset of transport.Transport the Client depends on.
// Exported so riftdbtest can substitute an in-process fake via
// WithDialer.
type WireConn interface {
	Connected() bool
	Events() <-chan transport.Event
	Frames() <-chan []byte
	Send(ctx context.Context, frame []byte) error
	Close(deadline time.Duration) error
}

// Dialer opens a WireConn. The production default is backed by
// transport.Dial; riftdbtest supplies a fake for tests via WithDialer.
type Dialer func(ctx context.Context, cfg transport.Config, logger zerolog.Logger) (WireConn, error)

func defaultDial(ctx context.Context, cfg transport.Config, logger zerolog.Logger) (WireConn, error) {
	return transport.Dial(ctx, cfg, logger)
}

// Client is a runtime connection to one RiftDB module.
type Client struct {
	builder *Builder
	dial    Dialer
	logger  zerolog.Logger

	mu           sync.RWMutex
	state        ConnectionState
	identity     ids.Identity
	token        string
	connID       ids.ConnectionID
	conn         WireConn
	identityCh   chan struct{}
	identityOnce sync.Once

	codec   *message.Codec
	tracker *reqtrack.Tracker
	budget  *energy.Budget
	bus     *events.Bus
	sched   *scheduler.Scheduler

	subsByQuery map[ids.QueryID]*subscription.Subscription
	queryAlloc  ids.QueryIDAllocator
	requestMu   sync.Mutex

	schedMu   sync.Mutex
	schedByID map[scheduler.EntryID]*ScheduledReducer

	schedCtx    context.Context
	schedCancel context.CancelFunc

	oneOffMu      sync.Mutex
	oneOffPending map[string]chan *message.OneOffQueryResponse

	reducerMu      sync.Mutex
	reducerWaiters map[ids.RequestID]chan *message.TransactionUpdate

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// ID identifies this Client for pool.Conn.
func (c *Client) ID() ids.ConnectionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connID
}

// Healthy reports whether the client believes its connection is usable.
func (c *Client) Healthy() bool {
	return c.State() == StateConnected
}

// State returns the current connection lifecycle state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the identity this client authenticated as, valid only
// once State() is StateConnected.
func (c *Client) Identity() ids.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Bus exposes the client's event bus for subscribing to lifecycle
// events.
func (c *Client) Bus() *events.Bus { return c.bus }

// Token returns the bearer token the server issued alongside Identity,
// valid only once State() is StateConnected.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// negotiatedAlgorithm picks the compression Codec frames with, per
// spec.md §6's compression.{enabled,prefer-brotli} options. There is no
// wire-level negotiation message in this SDK's surface, so the choice is
// made client-side at construction time.
func (b *Builder) negotiatedAlgorithm() compress.Algorithm {
	if !b.compressionEnabled {
		return compress.None
	}
	if b.compressionCfg.PreferBrotli {
		return compress.Brotli
	}
	return compress.Gzip
}

func (b *Builder) build(logger zerolog.Logger, dial Dialer) *Client {
	bus := events.NewBus()
	codec := message.NewCodecWithCompression(b.compressionCfg, nil)
	codec.SetCompression(b.negotiatedAlgorithm())
	return &Client{
		builder:        b,
		dial:           dial,
		logger:         logger,
		codec:          codec,
		tracker:        reqtrack.New(),
		budget:         energy.New(b.energyCfg, bus),
		bus:            bus,
		sched:          scheduler.New(4, logger),
		subsByQuery:    make(map[ids.QueryID]*subscription.Subscription),
		schedByID:      make(map[scheduler.EntryID]*ScheduledReducer),
		oneOffPending:  make(map[string]chan *message.OneOffQueryResponse),
		reducerWaiters: make(map[ids.RequestID]chan *message.TransactionUpdate),
		identityCh:     make(chan struct{}),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Connect dials the transport, performs the identity-token exchange, and
// starts the background receive loop. It blocks until the connection
// reaches StateConnected or fails.
func (b *Builder) Connect(ctx context.Context, logger zerolog.Logger) (*Client, error) {
	dial := b.dialer
	if dial == nil {
		dial = defaultDial
	}
	return b.connectWith(ctx, logger, dial)
}

func (b *Builder) connectWith(ctx context.Context, logger zerolog.Logger, dial Dialer) (*Client, error) {
	c := b.build(logger, dial)
	c.setState(StateConnecting)

	conn, err := dial(ctx, transport.Config{
		URI:         b.uri,
		Token:       b.token,
		ModuleName:  b.moduleName,
		DialTimeout: b.dialTimeout,
		WriteWait:   b.writeWait,
	}, logger)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	c.conn = conn

	c.schedCtx, c.schedCancel = context.WithCancel(context.Background())
	go c.sched.Run(c.schedCtx)
	go c.receiveLoop()

	if err := c.awaitIdentity(ctx); err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateConnected)
	c.bus.Connected.Emit(events.Connected{Identity: c.identity, ConnectionID: c.connID})
	c.triggerClientConnectedHook(ctx)
	return c, nil
}

// triggerClientConnectedHook best-effort invokes the client_connected
// reducer once per (re)connection, per spec.md §6's auto-trigger-lifecycle
// option and scenario S1. A failure here must not tear down the
// connection it just established.
func (c *Client) triggerClientConnectedHook(ctx context.Context) {
	if !c.builder.autoTriggerLifecycle {
		return
	}
	if err := c.CallReducer(ctx, "client_connected", nil, 0, true); err != nil {
		c.logger.Warn().Err(err).Msg("client_connected lifecycle hook failed")
	}
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// awaitIdentity blocks until the server's IdentityToken message arrives
// or ctx is cancelled.
func (c *Client) awaitIdentity(ctx context.Context) error {
	timeout := c.builder.requestWait
	select {
	case <-c.identityCh:
		return nil
	case <-time.After(timeout):
		return &ConnectionError{Kind: ErrRequestTimeout, Message: "timed out waiting for identity token"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) receiveLoop() {
	defer observability.RecoverPanic(c.logger, "riftdb.receiveLoop", nil)
	defer close(c.done)

	for {
		select {
		case ev, ok := <-c.conn.Events():
			if !ok {
				return
			}
			c.handleTransportEvent(ev)
			if ev.Kind == transport.EventDisconnected || ev.Kind == transport.EventError {
				return
			}
		case frame, ok := <-c.conn.Frames():
			if !ok {
				return
			}
			c.handleFrame(frame)
		}
	}
}

func (c *Client) handleTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventDisconnected, transport.EventError:
		c.tracker.CancelAll()
		c.drainPendingRequests()
		c.bus.Disconnected.Emit(events.Disconnected{Reason: ev.Err})

		if c.builder.autoReconnect {
			c.setState(StateReconnecting)
			go c.reconnectLoop()
			return
		}
		c.setState(StateDisconnected)
	}
}

// reconnectLoop redials with jittered backoff after an unexpected
// transport close, per spec.md §4.5's Connected -> Reconnecting ->
// Connecting state transitions. It gives up and leaves the client in
// StateFailed once the builder's maxReconnectAttempts is exhausted, and
// returns early if the client is closed while waiting out a backoff.
func (c *Client) reconnectLoop() {
	cfg := c.builder.retryCfg
	cfg.MaxRetries = c.builder.maxReconnectAttempts
	policy := retrypolicy.New(cfg)

	for {
		delay, ok := policy.Next()
		if !ok {
			c.setState(StateFailed)
			return
		}

		select {
		case <-c.closing:
			return
		case <-time.After(delay):
		}

		c.setState(StateConnecting)
		dialCtx, cancel := context.WithTimeout(context.Background(), c.builder.dialTimeout)
		conn, err := c.dial(dialCtx, transport.Config{
			URI:         c.builder.uri,
			Token:       c.builder.token,
			ModuleName:  c.builder.moduleName,
			DialTimeout: c.builder.dialTimeout,
			WriteWait:   c.builder.writeWait,
		}, c.logger)
		cancel()
		if err != nil {
			c.setState(StateReconnecting)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.identityCh = make(chan struct{})
		c.identityOnce = sync.Once{}
		c.mu.Unlock()
		c.done = make(chan struct{})
		go c.receiveLoop()

		identCtx, identCancel := context.WithTimeout(context.Background(), c.builder.requestWait)
		err = c.awaitIdentity(identCtx)
		identCancel()
		if err != nil {
			c.setState(StateReconnecting)
			continue
		}

		c.setState(StateConnected)
		c.bus.Connected.Emit(events.Connected{Identity: c.Identity(), ConnectionID: c.ID()})
		c.triggerClientConnectedHook(context.Background())
		return
	}
}

// drainPendingRequests closes every outstanding reducer-await and
// one-off-query waiter so callers unblock immediately on disconnect
// instead of waiting out their full timeout, per spec.md §8 invariant 9
// (cancellation completeness).
func (c *Client) drainPendingRequests() {
	c.reducerMu.Lock()
	for id, ch := range c.reducerWaiters {
		close(ch)
		delete(c.reducerWaiters, id)
	}
	c.reducerMu.Unlock()

	c.oneOffMu.Lock()
	for id, ch := range c.oneOffPending {
		close(ch)
		delete(c.oneOffPending, id)
	}
	c.oneOffMu.Unlock()
}

func (c *Client) handleFrame(frame []byte) {
	msg, err := c.codec.DecodeServer(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to decode server frame")
		return
	}

	switch msg.Tag {
	case message.TagIdentityToken:
		c.applyIdentityToken(msg.IdentityToken)
	case message.TagTransactionUpdate:
		c.applyTransactionUpdate(msg.TransactionUpdate)
	case message.TagTransactionUpdateLite:
		c.applyTransactionUpdateLight(msg.TransactionUpdateLight)
	case message.TagInitialSubscription:
		c.applyInitialSubscription(msg.InitialSubscription)
	case message.TagSubscribeApplied:
		c.applySubscribeApplied(msg.SubscribeApplied)
	case message.TagUnsubscribeApplied:
		c.applyUnsubscribeApplied(msg.UnsubscribeApplied)
	case message.TagSubscriptionError:
		c.applySubscriptionError(msg.SubscriptionError)
	case message.TagOneOffQueryResponse:
		c.applyOneOffQueryResponse(msg.OneOffQueryResponse)
	}
}

func (c *Client) applyIdentityToken(m *message.IdentityTokenMsg) {
	if m == nil {
		return
	}
	c.mu.Lock()
	c.identity = m.Identity
	c.token = m.Token
	c.connID = m.ConnectionID
	c.mu.Unlock()
	c.bus.IdentityChanged.Emit(events.IdentityChanged{Identity: m.Identity})
	c.identityOnce.Do(func() { close(c.identityCh) })
}

// defaultCloseDeadline bounds how long Close waits for in-flight writes
// to drain before forcing the socket shut.
const defaultCloseDeadline = 5 * time.Second

// Close gracefully shuts down the client within defaultCloseDeadline. It
// satisfies pool.Conn's zero-argument Close so a Client can be pooled
// directly.
func (c *Client) Close() error {
	return c.CloseWithDeadline(defaultCloseDeadline)
}

// CloseWithDeadline gracefully shuts down the client: cancels pending
// requests, stops the scheduler, and closes the transport within
// deadline.
func (c *Client) CloseWithDeadline(deadline time.Duration) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		c.tracker.CancelAll()
		c.drainPendingRequests()
		if c.schedCancel != nil {
			c.schedCancel()
		}
		c.setState(StateDisconnected)
		err = c.conn.Close(deadline)
	})
	return err
}

// newRequestID allocates a request id guaranteed not to collide with an
// in-flight request.
func (c *Client) newRequestID() ids.RequestID {
	return c.tracker.NewID()
}

// newMessageID generates an opaque message id for one-off queries, using
// google/uuid the way ids.NewConnectionID does for connection ids.
func newMessageID() []byte {
	id := uuid.New()
	return id[:]
}

func (c *Client) send(ctx context.Context, m message.ClientMessage) error {
	frame, err := c.codec.EncodeClient(m)
	if err != nil {
		return fmt.Errorf("riftdb: encode client message: %w", err)
	}
	return c.conn.Send(ctx, frame)
}
