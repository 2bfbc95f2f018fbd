// Command riftdb-example is a minimal demonstration of the riftdb client
// API: it connects to a module, subscribes to a query, calls a reducer,
// and logs row changes as they arrive. It is not a configuration-loading
// CLI frontend; its inputs are RIFTDB_URI/RIFTDB_TOKEN/RIFTDB_MODULE, read
// via riftdb.LoadEnvDefaults the way the teacher's servers load their
// .env-backed config, plus the -debug and -query flags.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/observability"
	"github.com/riftdb/riftdb-go/retrypolicy"
	"github.com/riftdb/riftdb-go/riftdb"
	"github.com/riftdb/riftdb-go/subscription"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	query := flag.String("query", "SELECT * FROM messages", "subscription query")
	flag.Parse()

	logCfg := observability.DefaultConfig()
	logCfg.Service = "riftdb-example"
	if *debug {
		logCfg.Level = observability.LevelDebug
	}
	logger := observability.NewLogger(logCfg)

	env, err := riftdb.LoadEnvDefaults()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load RIFTDB_* environment")
	}
	if env.URI == "" {
		logger.Fatal().Msg("RIFTDB_URI is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := riftdb.NewBuilder(env.URI).
		Apply(riftdb.WithToken(env.Token), riftdb.WithModuleName(env.ModuleName)).
		Connect(ctx, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	defer client.Close()

	logger.Info().Str("identity", client.Identity().String()).Msg("connected")

	client.Bus().Disconnected.Subscribe(func(ev events.Disconnected) {
		logger.Warn().Err(ev.Reason).Msg("disconnected")
	})

	sub, err := client.Subscribe(ctx, []string{*query}, retrypolicy.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("subscribe failed")
	}
	sub.OnChange(func(changes []subscription.RowChange) {
		for _, c := range changes {
			logger.Info().
				Str("table", c.Table).
				Str("key", string(c.Key)).
				Int("kind", int(c.Kind)).
				Msg("row change")
		}
	})

	if err := client.CallReducer(ctx, "ping", nil, 0, true); err != nil {
		logger.Error().Err(err).Msg("ping reducer call failed")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	_ = client.CloseWithDeadline(5 * time.Second)
}
