// Package observability wires shared structured logging and metrics
// registration, grounded on ws/internal/shared/monitoring/logger.go's
// NewLogger/RecoverPanic pair — no HTTP metrics endpoint is exposed here,
// since spec.md §1's Non-goals exclude an observability surface; callers
// that want to scrape the registry bring their own exporter.
package observability

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Level names the minimum severity a Logger emits.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects the logger's output encoding.
type Format uint8

const (
	FormatJSON Format = iota
	FormatPretty
)

// Config configures NewLogger.
type Config struct {
	Level   Level
	Format  Format
	Service string
}

func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: FormatJSON, Service: "riftdb-client"}
}

// NewLogger builds a zerolog.Logger with a timestamp, caller info, and a
// "service" field, matching the shape of every structured log line the
// rest of this module emits.
func NewLogger(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = "riftdb-client"
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}

// RecoverPanic is meant for goroutine defer blocks: it logs a recovered
// panic with its stack trace instead of letting it crash the process.
func RecoverPanic(logger zerolog.Logger, goroutine string, fields map[string]any) {
	if r := recover(); r != nil {
		event := logger.Error().
			Str("goroutine", goroutine).
			Interface("panic", r).
			Str("stack", string(debug.Stack()))
		for k, v := range fields {
			event = event.Interface(k, v)
		}
		event.Msg("goroutine panic recovered")
	}
}
