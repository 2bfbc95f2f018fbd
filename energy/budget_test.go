package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftdb/riftdb-go/events"
)

func TestReserveAndConsumeSpendsTokens(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 100, RefillPerSecond: 1, LowWaterMark: 0.1}, bus)

	id, err := b.Reserve(10, false)
	require.NoError(t, err)
	b.Consume(id)

	assert.Equal(t, float64(10), b.Spent())
}

func TestReserveBeyondCapacityFailsWithoutForce(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 5, RefillPerSecond: 1, LowWaterMark: 0.1}, bus)

	_, err := b.Reserve(10, false)
	require.Error(t, err)
	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrExhausted, be.Kind)
}

func TestReserveBeyondCapacitySucceedsWithForce(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 5, RefillPerSecond: 1, LowWaterMark: 0.1}, bus)

	id, err := b.Reserve(10, true)
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestEnergyExhaustedEmittedOnce(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 5, RefillPerSecond: 0, LowWaterMark: 0.1}, bus)

	count := 0
	bus.EnergyExhausted.Subscribe(func(events.EnergyExhausted) { count++ })

	_, _ = b.Reserve(10, false)
	_, _ = b.Reserve(10, false)

	assert.Equal(t, 1, count)
}

func TestEnergyLowFiresBelowWaterMark(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 100, RefillPerSecond: 0, LowWaterMark: 0.5}, bus)

	fired := false
	bus.EnergyLow.Subscribe(func(events.EnergyLow) { fired = true })

	_, err := b.Reserve(60, false)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestReleaseReturnsTokensWithoutSpending(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(Config{Capacity: 100, RefillPerSecond: 0, LowWaterMark: 0.1}, bus)

	id, err := b.Reserve(50, false)
	require.NoError(t, err)
	b.Release(id)

	assert.Equal(t, float64(0), b.Spent())
	assert.InDelta(t, 100, b.Remaining(), 1)
}

func TestReserveRejectsNegativeCost(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	b := New(DefaultConfig(), bus)

	_, err := b.Reserve(-1, false)
	require.Error(t, err)
	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrInvalidCost, be.Kind)
}
