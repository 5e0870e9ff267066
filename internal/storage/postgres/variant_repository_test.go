package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrineshop/inventory-api/internal/domain"
	"github.com/vitrineshop/inventory-api/internal/testutil"
)

func TestVariantRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := NewVariantRepository(pool)

	t.Run("create and get", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		v := domain.Variant{
			ID:        uuid.NewString(),
			SKU:       "TEE-RED-M",
			Name:      "Red tee, medium",
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, repo.CreateVariant(ctx, v))
		require.NoError(t, repo.CreateInventory(ctx, domain.Inventory{
			VariantID:         v.ID,
			Available:         20,
			LowStockThreshold: 5,
		}))

		got, err := repo.GetVariant(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.SKU, got.SKU)
		assert.Equal(t, v.Name, got.Name)
	})

	t.Run("duplicate sku", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertVariant(t, ctx, pool, "TEE-RED-M", 1, 0)

		err := repo.CreateVariant(ctx, domain.Variant{
			ID:        uuid.NewString(),
			SKU:       "TEE-RED-M",
			Name:      "duplicate",
			CreatedAt: time.Now(),
		})
		assert.ErrorIs(t, err, domain.ErrVariantAlreadyExists)
	})

	t.Run("inventory requires an existing variant", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateInventory(ctx, domain.Inventory{VariantID: uuid.NewString(), Available: 1})
		assert.ErrorIs(t, err, domain.ErrVariantNotFound)
	})

	t.Run("missing variant", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetVariant(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrVariantNotFound)

		_, err = repo.GetVariant(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("list pairs variants with counters", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		first := testutil.InsertVariant(t, ctx, pool, "SKU-A", 10, 2)
		second := testutil.InsertVariant(t, ctx, pool, "SKU-B", 0, 5)

		variants, inventories, err := repo.ListVariants(ctx)
		require.NoError(t, err)
		require.Len(t, variants, 2)
		require.Len(t, inventories, 2)

		byID := map[string]domain.Inventory{}
		for i := range variants {
			assert.Equal(t, variants[i].ID, inventories[i].VariantID)
			byID[variants[i].ID] = inventories[i]
		}
		assert.Equal(t, 10, byID[first].Available)
		assert.Equal(t, 0, byID[second].Available)
	})
}
