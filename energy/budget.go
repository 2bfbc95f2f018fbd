// Package energy tracks the per-connection reducer-call budget described
// in spec.md §4.6: a capacity that drains as reducers run and refills on
// a fixed period, modeled as a token bucket the way
// ws/internal/shared/limits.ResourceGuard rate-limits Kafka consumption
// and broadcasts with golang.org/x/time/rate.
package energy

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/riftdb/riftdb-go/events"
)

// BudgetError is the typed error family for energy exhaustion.
type BudgetError struct {
	Kind    BudgetErrorKind
	Message string
}

type BudgetErrorKind string

const (
	ErrExhausted   BudgetErrorKind = "Exhausted"
	ErrInvalidCost BudgetErrorKind = "InvalidCost"
)

func (e *BudgetError) Error() string {
	return fmt.Sprintf("energy: %s: %s", e.Kind, e.Message)
}

// Config configures a Budget. Capacity and RefillPerSecond describe the
// token bucket; LowWaterMark is the fraction of Capacity (0,1] below
// which an EnergyLow event fires.
type Config struct {
	Capacity        float64
	RefillPerSecond float64
	LowWaterMark    float64
}

func DefaultConfig() Config {
	return Config{Capacity: 1000, RefillPerSecond: 10, LowWaterMark: 0.1}
}

// reservation records an in-flight spend so Release can credit it back if
// the reducer call never actually completes (cancelled request, dropped
// connection). rsv is the underlying rate.Reservation Release cancels to
// hand the tokens back to the limiter; it is nil for forced reservations
// that bypassed the limiter entirely, which Release instead unwinds by
// adjusting remainingLocked's local accounting.
type reservation struct {
	amount float64
	rsv    *rate.Reservation
}

// Budget is the per-connection energy accounting object: reserve before
// sending a reducer call, consume (or release) once the result is known.
type Budget struct {
	mu  sync.Mutex
	cfg Config

	limiter *rate.Limiter

	spent        float64
	reservations map[uint64]reservation
	nextResID    uint64
	lowFired     bool
	exhausted    bool

	bus *events.Bus
}

func New(cfg Config, bus *events.Bus) *Budget {
	limiter := rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), int(cfg.Capacity))
	limiter.SetBurst(int(cfg.Capacity))
	return &Budget{
		cfg:          cfg,
		limiter:      limiter,
		reservations: make(map[uint64]reservation),
		bus:          bus,
	}
}

// Remaining returns the estimated tokens currently available, excluding
// tokens held by reservations not yet consumed or released.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remainingLocked()
}

func (b *Budget) remainingLocked() float64 {
	tokens := b.limiter.Tokens()
	for _, r := range b.reservations {
		// Reservations backed by the limiter already reduced
		// limiter.Tokens() when they were made; only forced
		// reservations, which bypass the limiter, need subtracting
		// here too.
		if r.rsv == nil {
			tokens -= r.amount
		}
	}
	if tokens < 0 {
		return 0
	}
	return tokens
}

// Reserve holds amount tokens against a pending reducer call, returning a
// reservation id to later Consume or Release. With force=true the
// reservation is granted even if it would exceed capacity, per spec.md
// §4.6's operator override.
func (b *Budget) Reserve(amount float64, force bool) (uint64, error) {
	if amount < 0 {
		return 0, &BudgetError{Kind: ErrInvalidCost, Message: "cost must be non-negative"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !force && amount > b.remainingLocked() {
		if !b.exhausted {
			b.exhausted = true
			b.bus.EnergyExhausted.Emit(events.EnergyExhausted{})
		}
		return 0, &BudgetError{Kind: ErrExhausted, Message: "insufficient energy"}
	}

	var rsv *rate.Reservation
	if !force {
		r := b.limiter.ReserveN(time.Now(), int(amount))
		if !r.OK() || r.Delay() > 0 {
			if r.OK() {
				r.Cancel()
			}
			return 0, &BudgetError{Kind: ErrExhausted, Message: "rate limited"}
		}
		rsv = r
	}

	b.nextResID++
	id := b.nextResID
	b.reservations[id] = reservation{amount: amount, rsv: rsv}

	remaining := b.remainingLocked()
	b.maybeFireLow(remaining)
	return id, nil
}

// Consume finalizes a reservation: the tokens are permanently spent.
func (b *Budget) Consume(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.reservations[id]; ok {
		b.spent += r.amount
		delete(b.reservations, id)
	}
}

// Release returns a reservation's tokens to the pool without spending
// them, used when a reducer call is cancelled before completion.
func (b *Budget) Release(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.reservations[id]; ok {
		if r.rsv != nil {
			r.rsv.Cancel()
		}
		delete(b.reservations, id)
	}
	remaining := b.remainingLocked()
	if remaining/b.cfg.Capacity > b.cfg.LowWaterMark {
		b.lowFired = false
	}
	if remaining > 0 {
		b.exhausted = false
	}
}

func (b *Budget) maybeFireLow(remaining float64) {
	if b.cfg.Capacity <= 0 {
		return
	}
	if remaining/b.cfg.Capacity <= b.cfg.LowWaterMark && !b.lowFired {
		b.lowFired = true
		b.bus.EnergyLow.Emit(events.EnergyLow{Remaining: remaining})
	}
}

// Spent reports total tokens permanently consumed so far. Exposed for
// per-operation cost analytics (spec.md §4.6's calibration feedback
// loop feeds observed costs back into caller-side cost estimates).
func (b *Budget) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}
