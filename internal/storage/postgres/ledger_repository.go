package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrineshop/inventory-api/internal/domain"
)

// LedgerRepository is the single place the available/reserved counters are
// mutated. Every write is one conditional UPDATE; the guard in the WHERE
// clause is what serializes racing callers, so application code never
// read-modify-writes a counter.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// TryDecrementAvailable moves qty units from available to reserved iff
// enough are free. On failure it reports the quantity that was available
// at decision time as a best-effort diagnostic.
func (r *LedgerRepository) TryDecrementAvailable(ctx context.Context, variantID string, qty int) error {
	const stmt = `
UPDATE inventory
SET available = available - $2,
    reserved = reserved + $2,
    version = version + 1,
    updated_at = NOW()
WHERE variant_id = $1 AND available >= $2`

	tag, err := r.exec(ctx, stmt, variantID, qty)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("decrement available: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	available, err := r.currentAvailable(ctx, variantID)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{
		VariantID: variantID,
		Requested: qty,
		Available: available,
	}
}

// ReleaseReserved returns qty units from reserved to available. Releasing
// more than is currently reserved signals a bug upstream and fails with
// ErrInvariantViolation instead of clamping.
func (r *LedgerRepository) ReleaseReserved(ctx context.Context, variantID string, qty int) error {
	const stmt = `
UPDATE inventory
SET reserved = reserved - $2,
    available = available + $2,
    version = version + 1,
    updated_at = NOW()
WHERE variant_id = $1 AND reserved >= $2`

	return r.guardedMutation(ctx, stmt, "release reserved", variantID, qty)
}

// CommitReserved permanently removes qty units from the sellable pool:
// reserved decreases with no compensating increase to available.
func (r *LedgerRepository) CommitReserved(ctx context.Context, variantID string, qty int) error {
	const stmt = `
UPDATE inventory
SET reserved = reserved - $2,
    version = version + 1,
    updated_at = NOW()
WHERE variant_id = $1 AND reserved >= $2`

	return r.guardedMutation(ctx, stmt, "commit reserved", variantID, qty)
}

// AdjustAvailable applies a restock (positive delta) or correction
// (negative delta) through the same conditional-mutation discipline as
// every other counter write.
func (r *LedgerRepository) AdjustAvailable(ctx context.Context, variantID string, delta int) error {
	const stmt = `
UPDATE inventory
SET available = available + $2,
    version = version + 1,
    updated_at = NOW()
WHERE variant_id = $1 AND available + $2 >= 0`

	return r.guardedMutation(ctx, stmt, "adjust available", variantID, delta)
}

func (r *LedgerRepository) GetInventory(ctx context.Context, variantID string) (domain.Inventory, error) {
	const query = `
SELECT variant_id, available, reserved, low_stock_threshold, version, updated_at
FROM inventory
WHERE variant_id = $1`

	return r.scanInventory(r.queryRow(ctx, query, variantID))
}

// GetInventoryForUpdate locks the inventory row for the remainder of the
// surrounding transaction. Used by the checkout coordinator to clamp the
// committable quantity against a stable reserved counter.
func (r *LedgerRepository) GetInventoryForUpdate(ctx context.Context, variantID string) (domain.Inventory, error) {
	const query = `
SELECT variant_id, available, reserved, low_stock_threshold, version, updated_at
FROM inventory
WHERE variant_id = $1
FOR UPDATE`

	return r.scanInventory(r.queryRow(ctx, query, variantID))
}

func (r *LedgerRepository) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	const query = `
SELECT variant_id, available, reserved, low_stock_threshold, version, updated_at
FROM inventory
WHERE available <= low_stock_threshold
ORDER BY available ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var records []domain.Inventory
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.VariantID, &inv.Available, &inv.Reserved, &inv.LowStockThreshold, &inv.Version, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, inv)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate inventory: %w", rows.Err())
	}
	return records, nil
}

func (r *LedgerRepository) guardedMutation(ctx context.Context, stmt, op, variantID string, qty int) error {
	tag, err := r.exec(ctx, stmt, variantID, qty)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the variant does not exist or the guard failed.
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory WHERE variant_id = $1)`, variantID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("%s: check variant: %w", op, err)
	}
	if !exists {
		return domain.ErrVariantNotFound
	}
	return domain.ErrInvariantViolation
}

func (r *LedgerRepository) currentAvailable(ctx context.Context, variantID string) (int, error) {
	var available int
	err := r.queryRow(ctx, `SELECT available FROM inventory WHERE variant_id = $1`, variantID).Scan(&available)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return 0, domain.ErrVariantNotFound
		}
		return 0, fmt.Errorf("read available: %w", err)
	}
	return available, nil
}

func (r *LedgerRepository) scanInventory(row pgx.Row) (domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(&inv.VariantID, &inv.Available, &inv.Reserved, &inv.LowStockThreshold, &inv.Version, &inv.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Inventory{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Inventory{}, domain.ErrVariantNotFound
		}
		return domain.Inventory{}, fmt.Errorf("get inventory: %w", err)
	}
	return inv, nil
}

func (r *LedgerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LedgerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
