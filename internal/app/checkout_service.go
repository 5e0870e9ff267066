package app

import (
	"context"
	"errors"

	"github.com/vitrineshop/inventory-api/internal/clock"
	"github.com/vitrineshop/inventory-api/internal/domain"
	"github.com/vitrineshop/inventory-api/internal/metrics"
)

// CheckoutStore is the persistence surface the coordinator needs.
type CheckoutStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	MarkCommitted(ctx context.Context, id string, committedQty int) (bool, error)
	AppendTransition(ctx context.Context, t domain.Transition) error
}

// CheckoutLedger adds the commit-side counter operations.
type CheckoutLedger interface {
	GetInventoryForUpdate(ctx context.Context, variantID string) (domain.Inventory, error)
	CommitReserved(ctx context.Context, variantID string, qty int) error
	ReleaseReserved(ctx context.Context, variantID string, qty int) error
}

// Reclaimer expires a lapsed reservation and returns its stock; the
// reservation manager provides it.
type Reclaimer interface {
	ReclaimExpired(ctx context.Context, id string) (bool, error)
}

// CheckoutService is the checkout-time authority that converts a hold into
// a final sale, accounting for drift between reservation time and checkout
// time. Committing is one-way: reversing a sale is a restock operation
// outside this engine.
type CheckoutService struct {
	store     CheckoutStore
	ledger    CheckoutLedger
	reclaimer Reclaimer
	clock     clock.Clock
}

func NewCheckoutService(store CheckoutStore, ledger CheckoutLedger, reclaimer Reclaimer, clk clock.Clock) *CheckoutService {
	return &CheckoutService{
		store:     store,
		ledger:    ledger,
		reclaimer: reclaimer,
		clock:     clk,
	}
}

type CommitInput struct {
	ReservationID     string
	RequestedQuantity int
}

type CommitResult struct {
	Reservation domain.Reservation
	// CommittedQuantity may be less than requested (partial fulfillment);
	// the order collaborator must adjust the line item accordingly.
	CommittedQuantity int
	Truncated         bool
}

// errLapsed signals from inside the commit transaction that the
// reservation must be expired first; the expiry runs in its own
// transaction so the reclaim survives the commit rollback.
var errLapsed = errors.New("reservation lapsed")

// Commit converts the reservation into a sale. It never commits more than
// was held; when the reserved counter cannot honor the full held quantity
// it commits what it can (possibly zero) and reports truncation. The
// un-committed remainder of the hold returns to available so a terminal
// reservation never leaves units pinned in reserved.
func (s *CheckoutService) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	if in.RequestedQuantity <= 0 {
		return CommitResult{}, domain.ErrInvalidQuantity
	}

	var result CommitResult

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			if errors.Is(err, domain.ErrReservationNotFound) {
				return domain.ErrReservationInvalid
			}
			return err
		}
		if res.State.Terminal() {
			return domain.ErrReservationInvalid
		}
		now := s.clock.Now()
		if res.ExpiredAt(now) {
			return errLapsed
		}

		committable := in.RequestedQuantity
		if res.Quantity < committable {
			committable = res.Quantity
		}

		inv, err := s.ledger.GetInventoryForUpdate(txCtx, res.VariantID)
		if err != nil {
			return err
		}
		// Defensive clamp: reserved should never be smaller than the
		// hold, but a broken invariant must not block the sale of
		// whatever actually remains.
		if inv.Reserved < committable {
			committable = inv.Reserved
		}

		if committable > 0 {
			if err := s.ledger.CommitReserved(txCtx, res.VariantID, committable); err != nil {
				return err
			}
		}

		remainder := res.Quantity - committable
		if residual := inv.Reserved - committable; residual < remainder {
			remainder = residual
		}
		if remainder > 0 {
			if err := s.ledger.ReleaseReserved(txCtx, res.VariantID, remainder); err != nil {
				return err
			}
		}

		claimed, err := s.store.MarkCommitted(txCtx, in.ReservationID, committable)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrReservationInvalid
		}
		if err := s.store.AppendTransition(txCtx, domain.Transition{
			ID:            newID(),
			ReservationID: res.ID,
			FromState:     domain.ReservationActive,
			ToState:       domain.ReservationCommitted,
			Quantity:      committable,
			RecordedAt:    now,
		}); err != nil {
			return err
		}

		res.State = domain.ReservationCommitted
		res.CommittedQuantity = &committable
		result = CommitResult{
			Reservation:       res,
			CommittedQuantity: committable,
			Truncated:         committable < in.RequestedQuantity,
		}
		return nil
	})
	if errors.Is(err, errLapsed) {
		// Just-in-time expiry; the sweeper would get there eventually.
		if _, reclaimErr := s.reclaimer.ReclaimExpired(ctx, in.ReservationID); reclaimErr != nil {
			return CommitResult{}, reclaimErr
		}
		return CommitResult{}, domain.ErrReservationInvalid
	}
	if err != nil {
		return CommitResult{}, err
	}

	metrics.ReservationsCommitted.Inc()
	if result.Truncated {
		metrics.CommitsTruncated.Inc()
	}
	return result, nil
}
