package events

import "github.com/riftdb/riftdb-go/ids"

// Connected is emitted once the identity token exchange completes.
type Connected struct {
	Identity     ids.Identity
	ConnectionID ids.ConnectionID
}

// Disconnected is emitted when the connection runtime leaves the
// Connected state, whether by request or failure.
type Disconnected struct {
	Reason error
}

// IdentityChanged is emitted each time the server sends an identity token:
// on the initial handshake, on every reconnect, and on any later
// re-authentication.
type IdentityChanged struct {
	Identity ids.Identity
}

// SubscriptionError is emitted when a subscription request is rejected or
// a live subscription fails.
type SubscriptionError struct {
	QueryID *ids.QueryID
	Message string
}

// EnergyLow is emitted when the energy budget drops below its configured
// low-water mark.
type EnergyLow struct {
	Remaining float64
}

// EnergyExhausted is emitted when the energy budget reaches zero and
// further reducer calls are refused until refill.
type EnergyExhausted struct{}

// EnergyRefilled describes a refill credit of Amount energy. energy.Budget
// does not emit it: its refill happens inside the token bucket without an
// event.
type EnergyRefilled struct {
	Amount float64
}

// BreakerState names the circuit-breaker states a pool connection can be
// in, mirrored from sony/gobreaker's State.
type BreakerState uint8

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// BreakerStateChanged is emitted whenever a pooled connection's circuit
// breaker transitions state.
type BreakerStateChanged struct {
	ConnectionID ids.ConnectionID
	From, To     BreakerState
}

// ScheduleFailed is emitted when a scheduled reducer invocation's
// CallReducerAndAwait returns an error, per spec.md §4.8's per-entry
// failure tracking.
type ScheduleFailed struct {
	EntryID     uint64
	ReducerName string
	Err         error
}

// Bus aggregates one Topic per event kind spec.md and its supplemented
// features name. It has no package-level state: callers construct one Bus
// per Client.
type Bus struct {
	Connected           *Topic[Connected]
	Disconnected        *Topic[Disconnected]
	IdentityChanged     *Topic[IdentityChanged]
	SubscriptionError   *Topic[SubscriptionError]
	EnergyLow           *Topic[EnergyLow]
	EnergyExhausted     *Topic[EnergyExhausted]
	EnergyRefilled      *Topic[EnergyRefilled]
	BreakerStateChanged *Topic[BreakerStateChanged]
	ScheduleFailed      *Topic[ScheduleFailed]
}

func NewBus() *Bus {
	return &Bus{
		Connected:           NewTopic[Connected](),
		Disconnected:        NewTopic[Disconnected](),
		IdentityChanged:     NewTopic[IdentityChanged](),
		SubscriptionError:   NewTopic[SubscriptionError](),
		EnergyLow:           NewTopic[EnergyLow](),
		EnergyExhausted:     NewTopic[EnergyExhausted](),
		EnergyRefilled:      NewTopic[EnergyRefilled](),
		BreakerStateChanged: NewTopic[BreakerStateChanged](),
		ScheduleFailed:      NewTopic[ScheduleFailed](),
	}
}
