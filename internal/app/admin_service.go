package app

import (
	"context"
	"errors"

	"github.com/vitrineshop/inventory-api/internal/clock"
	"github.com/vitrineshop/inventory-api/internal/domain"
	"github.com/vitrineshop/inventory-api/internal/metrics"
)

type VariantStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateVariant(ctx context.Context, v domain.Variant) error
	CreateInventory(ctx context.Context, inv domain.Inventory) error
	GetVariant(ctx context.Context, id string) (domain.Variant, error)
	ListVariants(ctx context.Context) ([]domain.Variant, []domain.Inventory, error)
}

// AdminLedger exposes the read side plus the restock/correction primitive.
// Stock edits go through AdjustAvailable, never a raw counter overwrite.
type AdminLedger interface {
	GetInventory(ctx context.Context, variantID string) (domain.Inventory, error)
	AdjustAvailable(ctx context.Context, variantID string, delta int) error
	ListLowStock(ctx context.Context) ([]domain.Inventory, error)
}

// AdminService serves the ops collaborator: variant provisioning,
// restocks and corrections, and counter reporting.
type AdminService struct {
	store  VariantStore
	ledger AdminLedger
	clock  clock.Clock
}

func NewAdminService(store VariantStore, ledger AdminLedger, clk clock.Clock) *AdminService {
	return &AdminService{
		store:  store,
		ledger: ledger,
		clock:  clk,
	}
}

type CreateVariantInput struct {
	SKU               string
	Name              string
	InitialStock      int
	LowStockThreshold int
}

// VariantStock pairs a variant with its live counters.
type VariantStock struct {
	Variant   domain.Variant
	Inventory domain.Inventory
}

func (s *AdminService) CreateVariant(ctx context.Context, in CreateVariantInput) (VariantStock, error) {
	if in.SKU == "" || in.Name == "" {
		return VariantStock{}, domain.ErrInvalidID
	}
	if in.InitialStock < 0 || in.LowStockThreshold < 0 {
		return VariantStock{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	variant := domain.Variant{
		ID:        newID(),
		SKU:       in.SKU,
		Name:      in.Name,
		CreatedAt: now,
	}
	inventory := domain.Inventory{
		VariantID:         variant.ID,
		Available:         in.InitialStock,
		LowStockThreshold: in.LowStockThreshold,
		Version:           1,
		UpdatedAt:         now,
	}

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateVariant(txCtx, variant); err != nil {
			return err
		}
		return s.store.CreateInventory(txCtx, inventory)
	})
	if err != nil {
		return VariantStock{}, err
	}
	return VariantStock{Variant: variant, Inventory: inventory}, nil
}

func (s *AdminService) ListVariants(ctx context.Context) ([]VariantStock, error) {
	variants, inventories, err := s.store.ListVariants(ctx)
	if err != nil {
		return nil, err
	}

	stocks := make([]VariantStock, 0, len(variants))
	for i := range variants {
		stocks = append(stocks, VariantStock{Variant: variants[i], Inventory: inventories[i]})
	}
	return stocks, nil
}

func (s *AdminService) GetInventory(ctx context.Context, variantID string) (domain.Inventory, error) {
	if variantID == "" {
		return domain.Inventory{}, domain.ErrInvalidID
	}
	return s.ledger.GetInventory(ctx, variantID)
}

// AdjustStock applies a restock (positive delta) or a correction (negative
// delta) and returns the resulting counters. A correction that would drive
// available negative fails with ErrInvariantViolation.
func (s *AdminService) AdjustStock(ctx context.Context, variantID string, delta int) (domain.Inventory, error) {
	if variantID == "" {
		return domain.Inventory{}, domain.ErrInvalidID
	}
	if delta == 0 {
		return domain.Inventory{}, domain.ErrInvalidQuantity
	}

	if err := s.ledger.AdjustAvailable(ctx, variantID, delta); err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			metrics.InvariantViolations.Inc()
		}
		return domain.Inventory{}, err
	}
	return s.ledger.GetInventory(ctx, variantID)
}

func (s *AdminService) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	return s.ledger.ListLowStock(ctx)
}
