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

func TestReservationRepository_CreateAndGet(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := NewReservationRepository(pool)

	t.Run("round trip", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)
		variantID := testutil.InsertVariant(t, ctx, pool, "SKU-1", 5, 0)

		now := time.Now().UTC().Truncate(time.Microsecond)
		res := domain.Reservation{
			ID:        uuid.NewString(),
			VariantID: variantID,
			OwnerID:   "cart-1",
			Quantity:  2,
			State:     domain.ReservationActive,
			CreatedAt: now,
			ExpiresAt: now.Add(15 * time.Minute),
		}
		require.NoError(t, repo.CreateReservation(ctx, res))

		got, err := repo.GetReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, res.VariantID, got.VariantID)
		assert.Equal(t, res.OwnerID, got.OwnerID)
		assert.Equal(t, 2, got.Quantity)
		assert.Equal(t, domain.ReservationActive, got.State)
		assert.Nil(t, got.CommittedQuantity)
		assert.WithinDuration(t, res.ExpiresAt, got.ExpiresAt, time.Millisecond)
	})

	t.Run("unknown variant fails the foreign key", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateReservation(ctx, domain.Reservation{
			ID:        uuid.NewString(),
			VariantID: uuid.NewString(),
			OwnerID:   "cart-1",
			Quantity:  1,
			State:     domain.ReservationActive,
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Minute),
		})
		assert.ErrorIs(t, err, domain.ErrVariantNotFound)
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetReservation(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrReservationNotFound)

		_, err = repo.GetReservation(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})
}

func TestReservationRepository_StateClaims(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := NewReservationRepository(pool)

	seed := func(t *testing.T, expiresAt time.Time) string {
		testutil.TruncateAll(t, ctx, pool)
		variantID := testutil.InsertVariant(t, ctx, pool, "SKU-1", 5, 0)
		return testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			VariantID: variantID,
			OwnerID:   "cart-1",
			Quantity:  2,
			State:     domain.ReservationActive,
			ExpiresAt: expiresAt,
		})
	}

	t.Run("release claims the transition exactly once", func(t *testing.T) {
		id := seed(t, time.Now().Add(10*time.Minute))

		ok, err := repo.MarkReleased(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkReleased(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationReleased, got.State)
	})

	t.Run("expire refuses a hold that has not lapsed", func(t *testing.T) {
		id := seed(t, time.Now().Add(10*time.Minute))

		ok, err := repo.MarkExpired(ctx, id, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.MarkExpired(ctx, id, time.Now().Add(11*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("commit records the fulfilled quantity", func(t *testing.T) {
		id := seed(t, time.Now().Add(10*time.Minute))

		ok, err := repo.MarkCommitted(ctx, id, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationCommitted, got.State)
		require.NotNil(t, got.CommittedQuantity)
		assert.Equal(t, 1, *got.CommittedQuantity)

		// Terminal rows are immutable.
		ok, err = repo.MarkReleased(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("extend only moves a live expiry forward", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		id := seed(t, now.Add(2*time.Minute))

		ok, err := repo.ExtendExpiry(ctx, id, now.Add(20*time.Minute), now)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetReservation(ctx, id)
		require.NoError(t, err)
		assert.WithinDuration(t, now.Add(20*time.Minute), got.ExpiresAt, time.Millisecond)

		// A lapsed hold cannot be revived.
		ok, err = repo.ExtendExpiry(ctx, id, now.Add(40*time.Minute), now.Add(30*time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestReservationRepository_ListExpired(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := NewReservationRepository(pool)

	variantID := testutil.InsertVariant(t, ctx, pool, "SKU-1", 10, 0)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		testutil.InsertReservation(t, ctx, pool, domain.Reservation{
			VariantID: variantID,
			OwnerID:   "cart-1",
			Quantity:  1,
			State:     domain.ReservationActive,
			ExpiresAt: now.Add(-time.Minute),
		})
	}
	// A live hold and a terminal one never show up in the sweep set.
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationActive, ExpiresAt: now.Add(time.Hour),
	})
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationReleased, ExpiresAt: now.Add(-time.Minute),
	})

	var collected []string
	afterID := ""
	for {
		batch, err := repo.ListExpired(ctx, now, 2, afterID)
		require.NoError(t, err)
		if len(batch) == 0 {
			break
		}
		for _, res := range batch {
			collected = append(collected, res.ID)
		}
		if len(batch) < 2 {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	assert.Len(t, collected, 5)
	for i := 1; i < len(collected); i++ {
		assert.Less(t, collected[i-1], collected[i])
	}
}

func TestReservationRepository_ListActiveByOwner(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := NewReservationRepository(pool)

	variantID := testutil.InsertVariant(t, ctx, pool, "SKU-1", 10, 0)
	now := time.Now().UTC()

	soonID := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationActive, ExpiresAt: now.Add(5 * time.Minute),
	})
	laterID := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationActive, ExpiresAt: now.Add(30 * time.Minute),
	})
	// Lapsed, terminal and foreign holds are filtered out.
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationActive, ExpiresAt: now.Add(-time.Minute),
	})
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 1,
		State: domain.ReservationCommitted, ExpiresAt: now.Add(10 * time.Minute),
	})
	testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-2", Quantity: 1,
		State: domain.ReservationActive, ExpiresAt: now.Add(10 * time.Minute),
	})

	got, err := repo.ListActiveByOwner(ctx, "cart-1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, soonID, got[0].ID)
	assert.Equal(t, laterID, got[1].ID)
}

func TestReservationRepository_Transitions(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	repo := NewReservationRepository(pool)

	variantID := testutil.InsertVariant(t, ctx, pool, "SKU-1", 5, 0)
	resID := testutil.InsertReservation(t, ctx, pool, domain.Reservation{
		VariantID: variantID, OwnerID: "cart-1", Quantity: 2,
		State: domain.ReservationActive, ExpiresAt: time.Now().Add(10 * time.Minute),
	})

	base := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.AppendTransition(ctx, domain.Transition{
		ID:            uuid.NewString(),
		ReservationID: resID,
		FromState:     "",
		ToState:       domain.ReservationActive,
		Quantity:      2,
		RecordedAt:    base,
	}))
	require.NoError(t, repo.AppendTransition(ctx, domain.Transition{
		ID:            uuid.NewString(),
		ReservationID: resID,
		FromState:     domain.ReservationActive,
		ToState:       domain.ReservationReleased,
		Quantity:      2,
		RecordedAt:    base.Add(time.Second),
	}))

	transitions, err := repo.ListTransitions(ctx, resID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, domain.ReservationActive, transitions[0].ToState)
	assert.Equal(t, domain.ReservationReleased, transitions[1].ToState)
}
