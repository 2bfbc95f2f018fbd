// Package retrypolicy implements the jittered exponential backoff spec.md
// §8 scenario S5 requires for reconnection and subscription retry,
// wrapping cenkalti/backoff/v4 rather than hand-rolling the jitter math.
package retrypolicy

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds the backoff schedule: delay doubles from Base on each
// attempt and is capped at Max; the +/-25% jitter is applied after the
// cap, so a single delay can be up to 25% above Max.
type Config struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int // 0 means unlimited
}

func DefaultConfig() Config {
	return Config{Base: 100 * time.Millisecond, Max: 30 * time.Second, MaxRetries: 0}
}

// Policy produces successive backoff durations for one retry sequence.
// It is not safe for concurrent use by multiple goroutines retrying
// independently — construct one Policy per retry sequence via New.
type Policy struct {
	cfg   Config
	boff  backoff.BackOff
	tries int
}

func New(cfg Config) *Policy {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.Base
	eb.MaxInterval = cfg.Max
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.25
	eb.MaxElapsedTime = 0 // caller governs retry count, not elapsed time
	eb.Reset()            // restart from InitialInterval now that it is Base

	var bo backoff.BackOff = eb
	if cfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries))
	}

	return &Policy{cfg: cfg, boff: bo}
}

// Next returns the delay before the next attempt, and false once
// MaxRetries attempts have been exhausted.
func (p *Policy) Next() (time.Duration, bool) {
	d := p.boff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	p.tries++
	return d, true
}

// Reset restarts the schedule from the first attempt, used after a
// successful reconnect.
func (p *Policy) Reset() {
	p.boff.Reset()
	p.tries = 0
}

// Attempts reports how many delays have been issued so far.
func (p *Policy) Attempts() int {
	return p.tries
}

// jitter is exposed for callers that want to apply the same +/-25%
// jitter rule to a value not produced by Next (e.g. a server-suggested
// retry-after hint).
func jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	delta := factor * float64(d)
	min := float64(d) - delta
	max := float64(d) + delta
	return time.Duration(min + rand.Float64()*(max-min))
}

// JitterRetryAfter applies the policy's standard jitter factor to an
// externally supplied delay.
func (p *Policy) JitterRetryAfter(d time.Duration) time.Duration {
	return jitter(d, 0.25)
}
