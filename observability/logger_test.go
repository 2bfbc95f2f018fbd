package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerAcceptsZeroConfig(t *testing.T) {
	t.Parallel()
	logger := NewLogger(Config{})
	assert.NotNil(t, logger)
}

func TestRecoverPanicSwallowsPanic(t *testing.T) {
	t.Parallel()
	logger := NewLogger(DefaultConfig())

	func() {
		defer RecoverPanic(logger, "test", map[string]any{"k": "v"})
		panic("boom")
	}()
	// reaching here means the panic was recovered
}

func TestNewRegistryIsUsable(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	assert.NotNil(t, reg)
}
