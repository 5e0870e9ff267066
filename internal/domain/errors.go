package domain

import (
	"errors"
	"fmt"
)

var (
	ErrVariantNotFound      = errors.New("variant not found")
	ErrVariantAlreadyExists = errors.New("variant already exists")
	ErrReservationNotFound  = errors.New("reservation not found")
	// ErrReservationInvalid covers a reservation that is missing the
	// preconditions for commit: already terminal, or expired. The caller
	// must re-reserve.
	ErrReservationInvalid = errors.New("reservation invalid")
	ErrInsufficientStock  = errors.New("insufficient stock")
	// ErrInvariantViolation means a counter mutation would have driven
	// available or reserved negative. It is never expected in correct
	// operation and is surfaced, not masked.
	ErrInvariantViolation = errors.New("inventory invariant violation")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrOwnerRequired      = errors.New("owner id required")
	ErrInvalidID          = errors.New("invalid id")
)

// InsufficientStockError carries the quantity that was available at
// decision time. Best-effort diagnostic only: availability can change
// immediately after the failed attempt.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
