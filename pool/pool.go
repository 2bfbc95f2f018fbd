// Package pool manages a fixed-capacity set of connections to the same
// database, per spec.md §4.9: it load-balances across live connections,
// trips a circuit breaker on a connection that keeps failing, retries
// through retrypolicy, and runs a background health check. The selection
// strategies (round-robin, least-latency, random) are grounded on
// ws/internal/multi/loadbalancer.go's selectShard, generalized from
// "incoming connections routed to a shard" to "outgoing calls routed to
// a pooled connection".
package pool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/retrypolicy"
)

// Strategy selects which pooled connection serves the next call.
type Strategy uint8

const (
	StrategyRoundRobin Strategy = iota
	StrategyLeastLatency
	StrategyRandom
)

// PoolError is the typed error family for pool operations.
type PoolError struct {
	Kind    PoolErrorKind
	Message string
}

type PoolErrorKind string

const (
	ErrNoHealthyConnections PoolErrorKind = "NoHealthyConnections"
	ErrBreakerOpen          PoolErrorKind = "BreakerOpen"
	ErrShuttingDown         PoolErrorKind = "ShuttingDown"
)

func (e *PoolError) Error() string {
	return fmt.Sprintf("pool: %s: %s", e.Kind, e.Message)
}

// Conn is the minimal interface a pooled connection must satisfy. The
// concrete *riftdb.Client implements this; it is abstracted here so pool
// can be tested without a live socket.
type Conn interface {
	ID() ids.ConnectionID
	Healthy() bool
	Close() error
}

// member wraps one pooled connection with its load-balancing and
// circuit-breaker bookkeeping.
type member struct {
	conn    Conn
	breaker *gobreaker.CircuitBreaker
	latency latencySamples

	mu          sync.Mutex
	connections int64 // in-flight calls routed to this member
}

// beginCall and endCall bracket a Call's invocation of fn, tracking the
// PooledConnection "active means in-flight > 0" invariant from spec.md
// §3/§4.10.
func (m *member) beginCall() {
	m.mu.Lock()
	m.connections++
	m.mu.Unlock()
}

func (m *member) endCall() {
	m.mu.Lock()
	m.connections--
	m.mu.Unlock()
}

// inFlight reports how many calls are currently routed through m.
func (m *member) inFlight() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections
}

// latencySamples is a small ring buffer of recent call latencies, used
// by the least-latency strategy.
type latencySamples struct {
	mu      sync.Mutex
	samples [32]time.Duration
	next    int
	filled  bool
}

func (l *latencySamples) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
	if l.next == 0 {
		l.filled = true
	}
}

func (l *latencySamples) average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.next
	if l.filled {
		n = len(l.samples)
	}
	if n == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += l.samples[i]
	}
	return total / time.Duration(n)
}

// Config configures a Pool.
type Config struct {
	MinSize             int
	MaxSize             int
	Strategy            Strategy
	HealthCheckInterval time.Duration
	Retry               retrypolicy.Config
}

func DefaultConfig() Config {
	return Config{
		MinSize:             1,
		MaxSize:             4,
		Strategy:            StrategyLeastLatency,
		HealthCheckInterval: 15 * time.Second,
		Retry:               retrypolicy.DefaultConfig(),
	}
}

// Pool manages a set of connections sharing one logical database target.
type Pool struct {
	mu      sync.RWMutex
	cfg     Config
	members []*member
	rrNext  int

	bus    *events.Bus
	logger zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func New(cfg Config, bus *events.Bus, logger zerolog.Logger) *Pool {
	return &Pool{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With().Str("component", "pool").Logger(),
		closed: make(chan struct{}),
	}
}

// Add registers a new connection with the pool, up to MaxSize.
func (p *Pool) Add(conn Conn) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.members) >= p.cfg.MaxSize {
		return &PoolError{Kind: ErrNoHealthyConnections, Message: "pool at max size"}
	}

	settings := gobreaker.Settings{
		Name:        conn.ID().String(),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: p.onBreakerStateChange(conn.ID()),
	}

	p.members = append(p.members, &member{
		conn:    conn,
		breaker: gobreaker.NewCircuitBreaker(settings),
	})
	return nil
}

func (p *Pool) onBreakerStateChange(id ids.ConnectionID) func(name string, from, to gobreaker.State) {
	return func(_ string, from, to gobreaker.State) {
		p.bus.BreakerStateChanged.Emit(events.BreakerStateChanged{
			ConnectionID: id,
			From:         mapBreakerState(from),
			To:           mapBreakerState(to),
		})
	}
}

func mapBreakerState(s gobreaker.State) events.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return events.BreakerOpen
	case gobreaker.StateHalfOpen:
		return events.BreakerHalfOpen
	default:
		return events.BreakerClosed
	}
}

// Remove closes and drops a connection from the pool by id.
func (p *Pool) Remove(id ids.ConnectionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.members {
		if m.conn.ID() == id {
			_ = m.conn.Close()
			p.members = append(p.members[:i], p.members[i+1:]...)
			return
		}
	}
}

// Size reports how many connections are currently pooled.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

// InFlight reports how many calls are currently routed through the
// connection identified by id, or 0 if it is not pooled. A connection
// with InFlight() > 0 is active per spec.md §3's PooledConnection
// invariant; idle connections report 0.
func (p *Pool) InFlight(id ids.ConnectionID) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.members {
		if m.conn.ID() == id {
			return m.inFlight()
		}
	}
	return 0
}

// Call routes fn through a selected connection, honoring its circuit
// breaker and recording the observed latency for the least-latency
// strategy. It retries through the pool's retry policy on
// ErrNoHealthyConnections, per spec.md §8 scenario S5.
func (p *Pool) Call(ctx context.Context, fn func(Conn) error) error {
	policy := retrypolicy.New(p.cfg.Retry)
	for {
		m, err := p.selectMember()
		if err != nil {
			delay, retry := policy.Next()
			if !retry {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		m.beginCall()
		start := time.Now()
		_, callErr := m.breaker.Execute(func() (interface{}, error) {
			return nil, fn(m.conn)
		})
		m.latency.record(time.Since(start))
		m.endCall()

		if callErr == nil {
			return nil
		}
		if callErr == gobreaker.ErrOpenState || callErr == gobreaker.ErrTooManyRequests {
			delay, retry := policy.Next()
			if !retry {
				return &PoolError{Kind: ErrBreakerOpen, Message: callErr.Error()}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		return callErr
	}
}

func (p *Pool) selectMember() (*member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var healthy []*member
	for _, m := range p.members {
		if m.conn.Healthy() && m.breaker.State() != gobreaker.StateOpen {
			healthy = append(healthy, m)
		}
	}
	if len(healthy) == 0 {
		return nil, &PoolError{Kind: ErrNoHealthyConnections, Message: "no healthy connections available"}
	}

	switch p.cfg.Strategy {
	case StrategyRandom:
		return healthy[rand.Intn(len(healthy))], nil
	case StrategyLeastLatency:
		best := healthy[0]
		bestAvg := best.latency.average()
		for _, m := range healthy[1:] {
			if avg := m.latency.average(); avg < bestAvg {
				best, bestAvg = m, avg
			}
		}
		return best, nil
	default: // StrategyRoundRobin
		p.rrNext = (p.rrNext + 1) % len(healthy)
		return healthy[p.rrNext], nil
	}
}

// HealthCheck runs fn against every pooled connection, removing ones
// that fail. It is meant to be invoked periodically by a caller-owned
// ticker (typically from the same goroutine running the scheduler).
func (p *Pool) HealthCheck(ctx context.Context, fn func(Conn) error) {
	p.mu.RLock()
	members := make([]*member, len(p.members))
	copy(members, p.members)
	p.mu.RUnlock()

	for _, m := range members {
		if err := fn(m.conn); err != nil {
			p.logger.Warn().
				Str("connection_id", m.conn.ID().String()).
				Err(err).
				Msg("health check failed, removing connection")
			p.Remove(m.conn.ID())
		}
	}
}

// RunHealthMonitor runs HealthCheck on p.cfg.HealthCheckInterval until ctx
// is cancelled, as the pool's own background health-monitor task per
// spec.md §4.10. Launch it as its own goroutine; callers that already
// drive health checks from an external ticker can use HealthCheck
// directly instead.
func (p *Pool) RunHealthMonitor(ctx context.Context, fn func(Conn) error) {
	interval := p.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closed:
			return
		case <-ticker.C:
			p.HealthCheck(ctx, fn)
		}
	}
}

// Shutdown closes every pooled connection. It is safe to call multiple
// times.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, m := range p.members {
			_ = m.conn.Close()
		}
		p.members = nil
	})
}
