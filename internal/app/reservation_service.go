package app

import (
	"context"
	"errors"
	"time"

	"github.com/vitrineshop/inventory-api/internal/clock"
	"github.com/vitrineshop/inventory-api/internal/domain"
	"github.com/vitrineshop/inventory-api/internal/metrics"
)

// ReservationStore is the persistence surface the reservation manager
// needs. The ledger and the store share one transaction through the
// context passed to the WithTx closure.
type ReservationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateReservation(ctx context.Context, res domain.Reservation) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	MarkReleased(ctx context.Context, id string) (bool, error)
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)
	ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) (bool, error)
	ListActiveByOwner(ctx context.Context, ownerID string, now time.Time) ([]domain.Reservation, error)
	AppendTransition(ctx context.Context, t domain.Transition) error
	ListTransitions(ctx context.Context, reservationID string) ([]domain.Transition, error)
}

// Ledger is the counter-mutation surface the manager is allowed to touch.
type Ledger interface {
	TryDecrementAvailable(ctx context.Context, variantID string, qty int) error
	ReleaseReserved(ctx context.Context, variantID string, qty int) error
}

// ReservationService orchestrates the creation and voluntary release of
// holds. All stock movement goes through the ledger's conditional
// mutations, inside the same transaction as the reservation write.
type ReservationService struct {
	store  ReservationStore
	ledger Ledger
	clock  clock.Clock
	ttl    time.Duration
}

const defaultReservationTTL = 15 * time.Minute

func NewReservationService(store ReservationStore, ledger Ledger, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		store:  store,
		ledger: ledger,
		clock:  clk,
		ttl:    defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithReservationTTL overrides the default hold lifetime.
func WithReservationTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

type ReserveInput struct {
	VariantID string
	OwnerID   string
	Quantity  int
}

// Reserve claims quantity units for the owner. The conditional decrement
// and the reservation insert commit together or not at all; when stock is
// short the returned error carries the quantity that was available at
// decision time.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}
	if in.OwnerID == "" {
		return domain.Reservation{}, domain.ErrOwnerRequired
	}
	if in.VariantID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.TryDecrementAvailable(txCtx, in.VariantID, in.Quantity); err != nil {
			return err
		}

		res := domain.Reservation{
			ID:        newID(),
			VariantID: in.VariantID,
			OwnerID:   in.OwnerID,
			Quantity:  in.Quantity,
			State:     domain.ReservationActive,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		if err := s.store.CreateReservation(txCtx, res); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, res.ID, "", domain.ReservationActive, res.Quantity, now); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.InsufficientStock.Inc()
		}
		return domain.Reservation{}, err
	}

	metrics.ReservationsCreated.Inc()
	return result, nil
}

// Extend pushes the expiry forward by one TTL if the reservation is still
// active and not yet lapsed; otherwise it is a no-op and the current row
// is returned unchanged.
func (s *ReservationService) Extend(ctx context.Context, id string) (domain.Reservation, error) {
	now := s.clock.Now()
	if _, err := s.store.ExtendExpiry(ctx, id, now.Add(s.ttl), now); err != nil {
		return domain.Reservation{}, err
	}
	return s.store.GetReservation(ctx, id)
}

// Release transitions an active reservation to released and returns its
// units to the available pool. Releasing an already-terminal reservation
// is a no-op, not an error: the same release can be triggered by both
// explicit cart removal and a racing sweeper pass.
func (s *ReservationService) Release(ctx context.Context, id string) error {
	var released bool

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetReservationForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.State.Terminal() {
			return nil
		}

		claimed, err := s.store.MarkReleased(txCtx, id)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		if err := s.ledger.ReleaseReserved(txCtx, res.VariantID, res.Quantity); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, res.ID, domain.ReservationActive, domain.ReservationReleased, res.Quantity, s.clock.Now()); err != nil {
			return err
		}

		released = true
		return nil
	})
	if err != nil {
		return err
	}

	if released {
		metrics.ReservationsReleased.Inc()
	}
	return nil
}

// ReplaceQuantity swaps the hold for a fresh one of newQty units,
// implemented as release-then-reserve inside one transaction so both
// directions go through the same conditional-decrement path. A decrease
// always succeeds; an increase is subject to the same availability check
// as a new reservation, and on failure the original hold is kept.
func (s *ReservationService) ReplaceQuantity(ctx context.Context, id string, newQty int) (domain.Reservation, error) {
	if newQty <= 0 {
		return domain.Reservation{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetReservationForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if res.State.Terminal() || res.ExpiredAt(now) {
			return domain.ErrReservationInvalid
		}

		claimed, err := s.store.MarkReleased(txCtx, id)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrReservationInvalid
		}
		if err := s.ledger.ReleaseReserved(txCtx, res.VariantID, res.Quantity); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, res.ID, domain.ReservationActive, domain.ReservationReleased, res.Quantity, now); err != nil {
			return err
		}

		if err := s.ledger.TryDecrementAvailable(txCtx, res.VariantID, newQty); err != nil {
			return err
		}
		next := domain.Reservation{
			ID:        newID(),
			VariantID: res.VariantID,
			OwnerID:   res.OwnerID,
			Quantity:  newQty,
			State:     domain.ReservationActive,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		if err := s.store.CreateReservation(txCtx, next); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, next.ID, "", domain.ReservationActive, next.Quantity, now); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.InsufficientStock.Inc()
		}
		return domain.Reservation{}, err
	}

	metrics.ReservationsReleased.Inc()
	metrics.ReservationsCreated.Inc()
	return result, nil
}

// ReclaimExpired transitions a lapsed active reservation to expired and
// returns its units to the pool. Reports false when there was nothing to
// reclaim: already terminal, extended in the meantime, or gone. Used by
// the sweeper and by the checkout coordinator's just-in-time check.
func (s *ReservationService) ReclaimExpired(ctx context.Context, id string) (bool, error) {
	var reclaimed int

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.store.GetReservationForUpdate(txCtx, id)
		if err != nil {
			if errors.Is(err, domain.ErrReservationNotFound) {
				return nil
			}
			return err
		}
		if res.State.Terminal() {
			return nil
		}

		now := s.clock.Now()
		claimed, err := s.store.MarkExpired(txCtx, id, now)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		if err := s.ledger.ReleaseReserved(txCtx, res.VariantID, res.Quantity); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, res.ID, domain.ReservationActive, domain.ReservationExpired, res.Quantity, now); err != nil {
			return err
		}

		reclaimed = res.Quantity
		return nil
	})
	if err != nil {
		return false, err
	}

	if reclaimed > 0 {
		metrics.ReservationsExpired.Inc()
		metrics.UnitsReclaimed.Add(float64(reclaimed))
	}
	return reclaimed > 0, nil
}

// History returns the reservation's transition log, oldest first. An
// unknown id yields an empty log, not an error; the log is append-only
// and never consulted for state decisions.
func (s *ReservationService) History(ctx context.Context, id string) ([]domain.Transition, error) {
	if id == "" {
		return nil, domain.ErrInvalidID
	}
	return s.store.ListTransitions(ctx, id)
}

// ListOwnerReservations returns the owner's live holds for the cart UI.
func (s *ReservationService) ListOwnerReservations(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	if ownerID == "" {
		return nil, domain.ErrOwnerRequired
	}
	return s.store.ListActiveByOwner(ctx, ownerID, s.clock.Now())
}

func (s *ReservationService) appendTransition(ctx context.Context, reservationID string, from, to domain.ReservationState, qty int, at time.Time) error {
	return s.store.AppendTransition(ctx, domain.Transition{
		ID:            newID(),
		ReservationID: reservationID,
		FromState:     from,
		ToState:       to,
		Quantity:      qty,
		RecordedAt:    at,
	})
}
