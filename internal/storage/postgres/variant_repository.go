package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitrineshop/inventory-api/internal/domain"
)

// VariantRepository handles the admin/catalog side: variant rows and their
// paired inventory rows. Counter mutations stay with the ledger.
type VariantRepository struct {
	pool *pgxpool.Pool
}

func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

func (r *VariantRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *VariantRepository) CreateVariant(ctx context.Context, v domain.Variant) error {
	const stmt = `
INSERT INTO variants (id, sku, name, created_at)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, v.ID, v.SKU, v.Name, v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVariantAlreadyExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create variant: %w", err)
	}
	return nil
}

func (r *VariantRepository) CreateInventory(ctx context.Context, inv domain.Inventory) error {
	const stmt = `
INSERT INTO inventory (variant_id, available, reserved, low_stock_threshold)
VALUES ($1, $2, 0, $3)`

	_, err := r.exec(ctx, stmt, inv.VariantID, inv.Available, inv.LowStockThreshold)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrVariantNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create inventory: %w", err)
	}
	return nil
}

func (r *VariantRepository) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	const query = `SELECT id, sku, name, created_at FROM variants WHERE id = $1`

	var v domain.Variant
	err := r.queryRow(ctx, query, id).Scan(&v.ID, &v.SKU, &v.Name, &v.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Variant{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Variant{}, domain.ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

// ListVariants returns every variant with its live counters.
func (r *VariantRepository) ListVariants(ctx context.Context) ([]domain.Variant, []domain.Inventory, error) {
	const query = `
SELECT v.id, v.sku, v.name, v.created_at,
       i.available, i.reserved, i.low_stock_threshold, i.version, i.updated_at
FROM variants v
JOIN inventory i ON i.variant_id = v.id
ORDER BY v.created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	var inventories []domain.Inventory
	for rows.Next() {
		var v domain.Variant
		var inv domain.Inventory
		if err := rows.Scan(&v.ID, &v.SKU, &v.Name, &v.CreatedAt,
			&inv.Available, &inv.Reserved, &inv.LowStockThreshold, &inv.Version, &inv.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan variant: %w", err)
		}
		inv.VariantID = v.ID
		variants = append(variants, v)
		inventories = append(inventories, inv)
	}
	if rows.Err() != nil {
		return nil, nil, fmt.Errorf("iterate variants: %w", rows.Err())
	}
	return variants, inventories, nil
}

func (r *VariantRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *VariantRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
