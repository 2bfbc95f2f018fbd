// Client construction follows the functional-options pattern rather than
// the teacher's env-struct config loader, since this is a library API a
// caller wires up in code, not a standalone server reading its
// environment. EnvDefaults still uses the teacher's caarlos0/env +
// godotenv stack for the handful of settings (URI, token, module name)
// that are commonly injected via environment in containerized callers.
package riftdb

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/riftdb/riftdb-go/compress"
	"github.com/riftdb/riftdb-go/energy"
	"github.com/riftdb/riftdb-go/pool"
	"github.com/riftdb/riftdb-go/retrypolicy"
)

// EnvDefaults holds the subset of connection settings callers commonly
// source from the environment rather than hardcoding.
type EnvDefaults struct {
	URI        string `env:"RIFTDB_URI"`
	Token      string `env:"RIFTDB_TOKEN"`
	ModuleName string `env:"RIFTDB_MODULE"`
}

// LoadEnvDefaults reads RIFTDB_* environment variables, optionally
// preloaded from a .env file if one is present in the working
// directory. A missing .env file is not an error.
func LoadEnvDefaults() (EnvDefaults, error) {
	_ = godotenv.Load()

	var d EnvDefaults
	if err := env.Parse(&d); err != nil {
		return EnvDefaults{}, err
	}
	return d, nil
}

// Option configures a Builder.
type Option func(*Builder)

// Builder assembles a Client via functional options, mirroring the
// constructor-with-options shape used throughout the teacher codebase's
// NewX(cfg) functions, generalized to chainable options for a
// library-facing API.
type Builder struct {
	uri        string
	token      string
	moduleName string

	dialTimeout time.Duration
	writeWait   time.Duration
	requestWait time.Duration

	energyCfg energy.Config
	retryCfg  retrypolicy.Config
	poolCfg   pool.Config

	compressionCfg     compress.Config
	compressionEnabled bool

	autoReconnect        bool
	maxReconnectAttempts int
	autoTriggerLifecycle bool

	dialer Dialer
}

// NewBuilder starts a Builder for the database at uri.
func NewBuilder(uri string) *Builder {
	return &Builder{
		uri:                  uri,
		dialTimeout:          10 * time.Second,
		writeWait:            5 * time.Second,
		requestWait:          30 * time.Second,
		energyCfg:            energy.DefaultConfig(),
		retryCfg:             retrypolicy.DefaultConfig(),
		poolCfg:              pool.DefaultConfig(),
		compressionCfg:       compress.DefaultConfig(),
		compressionEnabled:   true,
		autoTriggerLifecycle: true,
	}
}

func WithToken(token string) Option {
	return func(b *Builder) { b.token = token }
}

func WithModuleName(name string) Option {
	return func(b *Builder) { b.moduleName = name }
}

func WithDialTimeout(d time.Duration) Option {
	return func(b *Builder) { b.dialTimeout = d }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(b *Builder) { b.requestWait = d }
}

func WithEnergyConfig(cfg energy.Config) Option {
	return func(b *Builder) { b.energyCfg = cfg }
}

func WithRetryConfig(cfg retrypolicy.Config) Option {
	return func(b *Builder) { b.retryCfg = cfg }
}

// WithPoolConfig sets the sizing and strategy DialPool uses when the
// caller wants this Builder's target pooled across several connections
// instead of a single Client, per spec.md §4.9.
func WithPoolConfig(cfg pool.Config) Option {
	return func(b *Builder) { b.poolCfg = cfg }
}

// WithCompressionConfig sets the per-frame compression threshold/max
// size/preference Manager applies to outbound frames, per spec.md §4.2.
func WithCompressionConfig(cfg compress.Config) Option {
	return func(b *Builder) { b.compressionCfg = cfg }
}

// WithCompressionDisabled turns off frame compression entirely; every
// frame is sent with the None discriminator.
func WithCompressionDisabled() Option {
	return func(b *Builder) { b.compressionEnabled = false }
}

// WithAutoReconnect enables the Reconnecting state: on an unexpected
// transport close, Connect's caller keeps the Client and a background
// loop redials with jittered backoff (via retrypolicy) until it
// succeeds or maxAttempts is exhausted, per spec.md §4.5/§6's
// auto-reconnect and max-reconnect-attempts options. maxAttempts <= 0
// means unlimited.
func WithAutoReconnect(maxAttempts int) Option {
	return func(b *Builder) {
		b.autoReconnect = true
		b.maxReconnectAttempts = maxAttempts
	}
}

// WithAutoTriggerLifecycle controls whether the identity handshake
// attempts the best-effort `client_connected` reducer hook. Enabled by
// default, per spec.md §6's auto-trigger-lifecycle option.
func WithAutoTriggerLifecycle(enabled bool) Option {
	return func(b *Builder) { b.autoTriggerLifecycle = enabled }
}

// WithDialer overrides how Connect opens the underlying WireConn. Tests
// (riftdbtest) use this to substitute an in-process fake transport for a
// real socket.
func WithDialer(d Dialer) Option {
	return func(b *Builder) { b.dialer = d }
}

// Apply applies opts to the builder and returns it, to support the
// NewBuilder(uri).Apply(opts...) chain callers prefer when options are
// computed rather than listed literally.
func (b *Builder) Apply(opts ...Option) *Builder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}
