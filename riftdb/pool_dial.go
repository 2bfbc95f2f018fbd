package riftdb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/pool"
)

// DialPool dials b.poolCfg.MinSize connections to the same database
// target and registers them with a new pool.Pool, per spec.md §4.9's
// multi-connection pool. Callers that only need one connection should
// use Connect instead; DialPool is for callers that want load-balanced,
// circuit-broken access across several connections from the start.
//
// The returned Pool's events (breaker transitions) are published on a
// fresh bus independent of any single connection's bus, since the pool
// outlives any one member connection.
func (b *Builder) DialPool(ctx context.Context, logger zerolog.Logger) (*pool.Pool, error) {
	size := b.poolCfg.MinSize
	if size <= 0 {
		size = 1
	}

	bus := events.NewBus()
	p := pool.New(b.poolCfg, bus, logger)

	for i := 0; i < size; i++ {
		client, err := b.Connect(ctx, logger)
		if err != nil {
			p.Shutdown()
			return nil, fmt.Errorf("riftdb: dial pool member %d: %w", i, err)
		}
		if err := p.Add(client); err != nil {
			_ = client.Close()
			p.Shutdown()
			return nil, fmt.Errorf("riftdb: add pool member %d: %w", i, err)
		}
	}

	if b.poolCfg.HealthCheckInterval > 0 {
		go p.RunHealthMonitor(context.Background(), probeConnHealthy)
	}

	return p, nil
}

// probeConnHealthy is DialPool's default health probe: a connection is
// considered live as long as it reports itself healthy. Callers that want
// an active liveness check (e.g. a round-trip ping reducer) should drive
// pool.HealthCheck or pool.RunHealthMonitor themselves with a probe that
// calls into the module, since a generic client library cannot assume
// every module exposes one.
func probeConnHealthy(c pool.Conn) error {
	if !c.Healthy() {
		return fmt.Errorf("riftdb: connection %s reports unhealthy", c.ID())
	}
	return nil
}
