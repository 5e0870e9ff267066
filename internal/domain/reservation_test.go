package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReservationStateTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, ReservationActive.Terminal())
	assert.True(t, ReservationCommitted.Terminal())
	assert.True(t, ReservationReleased.Terminal())
	assert.True(t, ReservationExpired.Terminal())
}

func TestReservationExpiredAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := Reservation{ExpiresAt: now}

	assert.False(t, res.ExpiredAt(now.Add(-time.Second)))
	// Expiry is inclusive: at the deadline the hold is gone.
	assert.True(t, res.ExpiredAt(now))
	assert.True(t, res.ExpiredAt(now.Add(time.Second)))
}

func TestInsufficientStockError(t *testing.T) {
	t.Parallel()

	err := &InsufficientStockError{VariantID: "var-1", Requested: 5, Available: 2}

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrVariantNotFound)

	var target *InsufficientStockError
	assert.True(t, errors.As(error(err), &target))
	assert.Contains(t, err.Error(), "requested 5")
	assert.Contains(t, err.Error(), "available 2")
}

func TestInventoryLowStock(t *testing.T) {
	t.Parallel()

	assert.True(t, Inventory{Available: 2, LowStockThreshold: 5}.LowStock())
	assert.True(t, Inventory{Available: 5, LowStockThreshold: 5}.LowStock())
	assert.False(t, Inventory{Available: 6, LowStockThreshold: 5}.LowStock())
}
