package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrineshop/inventory-api/internal/domain"
)

// ReservationRepository persists holds and their transition audit log.
// State changes are claimed with conditional UPDATEs on the current state,
// so exactly one of any set of racing callers wins a transition and
// terminal rows stay immutable.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, variant_id, owner_id, quantity, state, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.VariantID,
		res.OwnerID,
		res.Quantity,
		res.State,
		res.CreatedAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrVariantNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	const query = reservationColumns + ` WHERE id = $1`
	return r.scanReservation(r.queryRow(ctx, query, id))
}

// GetReservationForUpdate locks the reservation row for the remainder of
// the surrounding transaction.
func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	const query = reservationColumns + ` WHERE id = $1 FOR UPDATE`
	return r.scanReservation(r.queryRow(ctx, query, id))
}

// MarkReleased transitions active -> released. Returns false without error
// when the reservation was no longer active, which makes release idempotent
// under races between voluntary release and the sweeper.
func (r *ReservationRepository) MarkReleased(ctx context.Context, id string) (bool, error) {
	return r.claimTransition(ctx, id, domain.ReservationReleased,
		`UPDATE reservations SET state = $2 WHERE id = $1 AND state = 'active'`)
}

// MarkExpired transitions active -> expired, but only once the expiry has
// actually lapsed. The extra guard keeps a racing extend from losing a
// hold that was just renewed.
func (r *ReservationRepository) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations SET state = $2
WHERE id = $1 AND state = 'active' AND expires_at <= $3`

	tag, err := r.exec(ctx, stmt, id, domain.ReservationExpired, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCommitted transitions active -> committed, recording the quantity
// that actually left the pool.
func (r *ReservationRepository) MarkCommitted(ctx context.Context, id string, committedQty int) (bool, error) {
	const stmt = `
UPDATE reservations SET state = 'committed', committed_quantity = $2
WHERE id = $1 AND state = 'active'`

	tag, err := r.exec(ctx, stmt, id, committedQty)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark committed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExtendExpiry pushes expires_at forward iff the reservation is still
// active and has not already lapsed.
func (r *ReservationRepository) ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations SET expires_at = $2
WHERE id = $1 AND state = 'active' AND expires_at > $3`

	tag, err := r.exec(ctx, stmt, id, newExpiry, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("extend expiry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpired returns a bounded batch of sweep candidates. The id cursor
// keeps a single pass from scanning the whole table; callers page with the
// last id of the previous batch.
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int, afterID string) ([]domain.Reservation, error) {
	const query = reservationColumns + `
WHERE state = 'active' AND expires_at <= $1 AND ($3::text = '' OR id > $3::uuid)
ORDER BY id
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit, afterID)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()
	return r.collectReservations(rows)
}

// ListActiveByOwner returns the owner's live holds, soonest expiry first.
func (r *ReservationRepository) ListActiveByOwner(ctx context.Context, ownerID string, now time.Time) ([]domain.Reservation, error) {
	const query = reservationColumns + `
WHERE owner_id = $1 AND state = 'active' AND expires_at > $2
ORDER BY expires_at ASC`

	rows, err := r.query(ctx, query, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	defer rows.Close()
	return r.collectReservations(rows)
}

func (r *ReservationRepository) AppendTransition(ctx context.Context, t domain.Transition) error {
	const stmt = `
INSERT INTO reservation_events (id, reservation_id, from_state, to_state, quantity, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, t.ID, t.ReservationID, t.FromState, t.ToState, t.Quantity, t.RecordedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (r *ReservationRepository) ListTransitions(ctx context.Context, reservationID string) ([]domain.Transition, error) {
	const query = `
SELECT id, reservation_id, from_state, to_state, quantity, recorded_at
FROM reservation_events
WHERE reservation_id = $1
ORDER BY recorded_at ASC, id ASC`

	rows, err := r.query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []domain.Transition
	for rows.Next() {
		var t domain.Transition
		if err := rows.Scan(&t.ID, &t.ReservationID, &t.FromState, &t.ToState, &t.Quantity, &t.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate transitions: %w", rows.Err())
	}
	return transitions, nil
}

const reservationColumns = `
SELECT id, variant_id, owner_id, quantity, state, committed_quantity, created_at, expires_at
FROM reservations`

func (r *ReservationRepository) claimTransition(ctx context.Context, id string, to domain.ReservationState, stmt string) (bool, error) {
	tag, err := r.exec(ctx, stmt, id, to)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("transition to %s: %w", to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var state string
	err := row.Scan(&res.ID, &res.VariantID, &res.OwnerID, &res.Quantity, &state, &res.CommittedQuantity, &res.CreatedAt, &res.ExpiresAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	res.State = domain.ReservationState(state)
	return res, nil
}

func (r *ReservationRepository) collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var state string
		if err := rows.Scan(&res.ID, &res.VariantID, &res.OwnerID, &res.Quantity, &state, &res.CommittedQuantity, &res.CreatedAt, &res.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.State = domain.ReservationState(state)
		reservations = append(reservations, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return reservations, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
