package domain

import "time"

// Transition is one immutable audit-log entry recording a reservation
// state change. Rows are append-only; released and expired are recorded
// separately even though their ledger effect is identical.
type Transition struct {
	ID            string
	ReservationID string
	FromState     ReservationState
	ToState       ReservationState
	Quantity      int
	RecordedAt    time.Time
}
