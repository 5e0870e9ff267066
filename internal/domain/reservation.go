package domain

import "time"

type ReservationState string

const (
	ReservationActive    ReservationState = "active"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
	ReservationExpired   ReservationState = "expired"
)

// Terminal reports whether the state admits no further transitions.
func (s ReservationState) Terminal() bool {
	return s != ReservationActive
}

// Reservation is a temporary, time-limited claim on stock, created when a
// shopper adds an item to cart. While active it pins quantity units in the
// variant's reserved counter; every way out of active (commit, release,
// expiry) returns or permanently removes exactly those units.
type Reservation struct {
	ID        string
	VariantID string
	OwnerID   string
	Quantity  int
	State     ReservationState
	// CommittedQuantity is set only when State is committed. It may be
	// less than Quantity when availability shrank between reservation
	// and checkout (partial fulfillment).
	CommittedQuantity *int
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// ExpiredAt reports whether the reservation's hold has lapsed at the given
// instant. An active reservation past its expiry is logically dead but
// physically present until the sweeper or a commit-time check processes it.
func (r Reservation) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
