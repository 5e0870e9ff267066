package app

import (
	"context"
	"sort"
	"time"

	"github.com/vitrineshop/inventory-api/internal/domain"
)

// fakeEngine backs the service unit tests with an in-memory ledger and
// reservation store behind one transactional boundary, mirroring how the
// real repositories share a database. WithTx snapshots state and restores
// it when the closure fails, so rollback behavior is observable.
type fakeEngine struct {
	inventory    map[string]*domain.Inventory
	reservations map[string]*domain.Reservation
	transitions  []domain.Transition
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		inventory:    make(map[string]*domain.Inventory),
		reservations: make(map[string]*domain.Reservation),
	}
}

func (f *fakeEngine) addInventory(variantID string, available, reserved int) {
	f.inventory[variantID] = &domain.Inventory{
		VariantID: variantID,
		Available: available,
		Reserved:  reserved,
		Version:   1,
	}
}

func (f *fakeEngine) addReservation(res domain.Reservation) {
	stored := res
	f.reservations[res.ID] = &stored
}

func (f *fakeEngine) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	invSnap := make(map[string]*domain.Inventory, len(f.inventory))
	for k, v := range f.inventory {
		c := *v
		invSnap[k] = &c
	}
	resSnap := make(map[string]*domain.Reservation, len(f.reservations))
	for k, v := range f.reservations {
		c := *v
		resSnap[k] = &c
	}
	trSnap := append([]domain.Transition(nil), f.transitions...)

	if err := fn(ctx); err != nil {
		f.inventory = invSnap
		f.reservations = resSnap
		f.transitions = trSnap
		return err
	}
	return nil
}

func (f *fakeEngine) TryDecrementAvailable(_ context.Context, variantID string, qty int) error {
	inv, ok := f.inventory[variantID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if inv.Available < qty {
		return &domain.InsufficientStockError{
			VariantID: variantID,
			Requested: qty,
			Available: inv.Available,
		}
	}
	inv.Available -= qty
	inv.Reserved += qty
	inv.Version++
	return nil
}

func (f *fakeEngine) ReleaseReserved(_ context.Context, variantID string, qty int) error {
	inv, ok := f.inventory[variantID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if inv.Reserved < qty {
		return domain.ErrInvariantViolation
	}
	inv.Reserved -= qty
	inv.Available += qty
	inv.Version++
	return nil
}

func (f *fakeEngine) CommitReserved(_ context.Context, variantID string, qty int) error {
	inv, ok := f.inventory[variantID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if inv.Reserved < qty {
		return domain.ErrInvariantViolation
	}
	inv.Reserved -= qty
	inv.Version++
	return nil
}

func (f *fakeEngine) AdjustAvailable(_ context.Context, variantID string, delta int) error {
	inv, ok := f.inventory[variantID]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if inv.Available+delta < 0 {
		return domain.ErrInvariantViolation
	}
	inv.Available += delta
	inv.Version++
	return nil
}

func (f *fakeEngine) GetInventory(_ context.Context, variantID string) (domain.Inventory, error) {
	inv, ok := f.inventory[variantID]
	if !ok {
		return domain.Inventory{}, domain.ErrVariantNotFound
	}
	return *inv, nil
}

func (f *fakeEngine) GetInventoryForUpdate(ctx context.Context, variantID string) (domain.Inventory, error) {
	return f.GetInventory(ctx, variantID)
}

func (f *fakeEngine) ListLowStock(_ context.Context) ([]domain.Inventory, error) {
	var out []domain.Inventory
	for _, inv := range f.inventory {
		if inv.LowStock() {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeEngine) CreateReservation(_ context.Context, res domain.Reservation) error {
	stored := res
	f.reservations[res.ID] = &stored
	return nil
}

func (f *fakeEngine) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	res, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *res, nil
}

func (f *fakeEngine) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeEngine) MarkReleased(_ context.Context, id string) (bool, error) {
	res, ok := f.reservations[id]
	if !ok || res.State != domain.ReservationActive {
		return false, nil
	}
	res.State = domain.ReservationReleased
	return true, nil
}

func (f *fakeEngine) MarkExpired(_ context.Context, id string, now time.Time) (bool, error) {
	res, ok := f.reservations[id]
	if !ok || res.State != domain.ReservationActive || res.ExpiresAt.After(now) {
		return false, nil
	}
	res.State = domain.ReservationExpired
	return true, nil
}

func (f *fakeEngine) MarkCommitted(_ context.Context, id string, committedQty int) (bool, error) {
	res, ok := f.reservations[id]
	if !ok || res.State != domain.ReservationActive {
		return false, nil
	}
	res.State = domain.ReservationCommitted
	qty := committedQty
	res.CommittedQuantity = &qty
	return true, nil
}

func (f *fakeEngine) ExtendExpiry(_ context.Context, id string, newExpiry, now time.Time) (bool, error) {
	res, ok := f.reservations[id]
	if !ok || res.State != domain.ReservationActive || !res.ExpiresAt.After(now) {
		return false, nil
	}
	res.ExpiresAt = newExpiry
	return true, nil
}

func (f *fakeEngine) ListExpired(_ context.Context, now time.Time, limit int, afterID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.State != domain.ReservationActive || res.ExpiresAt.After(now) {
			continue
		}
		if afterID != "" && res.ID <= afterID {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEngine) ListActiveByOwner(_ context.Context, ownerID string, now time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.OwnerID != ownerID || res.State != domain.ReservationActive || !res.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (f *fakeEngine) AppendTransition(_ context.Context, t domain.Transition) error {
	f.transitions = append(f.transitions, t)
	return nil
}

func (f *fakeEngine) ListTransitions(_ context.Context, reservationID string) ([]domain.Transition, error) {
	var out []domain.Transition
	for _, t := range f.transitions {
		if t.ReservationID == reservationID {
			out = append(out, t)
		}
	}
	return out, nil
}
