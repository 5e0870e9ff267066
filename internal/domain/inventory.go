package domain

import "time"

// Inventory is the ledger's unit of truth: one row per variant.
//
// Available and Reserved are only ever mutated through single conditional
// UPDATE statements, so at any committed instant both are >= 0 and
// available + reserved + (units ever committed) equals the total ever
// provisioned for the variant.
type Inventory struct {
	VariantID         string
	Available         int
	Reserved          int
	LowStockThreshold int
	// Version increments on every counter mutation. The conditional
	// statements do not need it for correctness; it exists for readers
	// that want an optimistic-concurrency check.
	Version   int
	UpdatedAt time.Time
}

// LowStock reports whether available stock has fallen to or under the
// informational threshold.
func (i Inventory) LowStock() bool {
	return i.Available <= i.LowStockThreshold
}
