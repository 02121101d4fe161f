package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserve(ctx context.Context, env *testEnv, qty int, ref string) (*models.Reservation, error) {
	return env.reservations.CreateReservation(ctx, &CreateReservationRequest{
		ProductID:   productA,
		WarehouseID: warehouse1,
		Quantity:    qty,
		ReferenceID: ref,
	})
}

func TestCreateReservationRespectsAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 100)

	first, err := reserve(ctx, env, 60, "order-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, first.Status)

	_, err = reserve(ctx, env, 50, "order-2")
	require.ErrorIs(t, err, models.ErrInsufficientAvailableStock)

	var stockErr *models.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 50, stockErr.Requested)
	assert.Equal(t, 40, stockErr.Available)

	avail, err := env.reservations.GetAvailableStock(ctx, productA, warehouse1)
	require.NoError(t, err)
	assert.Equal(t, 100, avail.Stock)
	assert.Equal(t, 60, avail.Reserved)
	assert.Equal(t, 40, avail.Available)

	assert.Equal(t, 100, env.quantity(t, productA, warehouse1), "reservations do not change physical stock")
	assert.Equal(t, 1, env.publisher.count(models.EventTypeReservationStatusChanged))
}

func TestCreateReservationValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := reserve(context.Background(), env, 0, "order-1")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.reservations.CreateReservation(context.Background(), &CreateReservationRequest{
		ProductID: productA, WarehouseID: warehouse1, Quantity: 1,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateReservationUnknownKeyNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		productID   string
		warehouseID string
	}{
		{"unknown product", "ghost", warehouse1},
		{"unknown warehouse", productA, "ghost-wh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.reservations.CreateReservation(ctx, &CreateReservationRequest{
				ProductID:   tt.productID,
				WarehouseID: tt.warehouseID,
				Quantity:    1,
				ReferenceID: "order-1",
			})
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 50)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := reserve(ctx, env, 7, "order")
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInsufficientAvailableStock)
				return
			}
			mu.Lock()
			accepted += r.Quantity
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 49, accepted, "exactly the reservations that fit are accepted")

	avail, err := env.reservations.GetAvailableStock(ctx, productA, warehouse1)
	require.NoError(t, err)
	assert.Equal(t, 49, avail.Reserved)
	assert.Equal(t, 1, avail.Available)
}

func TestConsumeAndReleaseOnlyFromActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 10)

	r1, err := reserve(ctx, env, 2, "order-1")
	require.NoError(t, err)
	r2, err := reserve(ctx, env, 3, "order-1")
	require.NoError(t, err)

	consumed, err := env.reservations.ConsumeReservation(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConsumed, consumed.Status)

	_, err = env.reservations.ConsumeReservation(ctx, r1.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = env.reservations.ReleaseReservation(ctx, r1.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	released, err := env.reservations.ReleaseReservation(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReleased, released.Status)

	_, err = env.reservations.ReleaseReservation(ctx, r2.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.reservations.ConsumeReservation(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, 10, env.quantity(t, productA, warehouse1), "consuming does not touch stock")
}

func TestReleaseReservationsByReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 10)

	r1, err := reserve(ctx, env, 2, "order-1")
	require.NoError(t, err)
	_, err = reserve(ctx, env, 3, "order-1")
	require.NoError(t, err)
	_, err = reserve(ctx, env, 4, "order-2")
	require.NoError(t, err)
	_, err = env.reservations.ConsumeReservation(ctx, r1.ID)
	require.NoError(t, err)

	released, err := env.reservations.ReleaseReservationsByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, 3, released[0].Quantity)

	all, err := env.reservations.GetReservationsByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.ReservationStatusConsumed, all[0].Status)
	assert.Equal(t, models.ReservationStatusReleased, all[1].Status)

	active, err := env.reservations.GetActiveReservationsByProductAndWarehouse(ctx, productA, warehouse1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "order-2", active[0].ReferenceID)
}

func TestReleaseExpiredReservations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 10)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired, err := env.reservations.CreateReservation(ctx, &CreateReservationRequest{
		ProductID: productA, WarehouseID: warehouse1, Quantity: 4, ReferenceID: "cart-1", ExpiresAt: &past,
	})
	require.NoError(t, err)
	_, err = env.reservations.CreateReservation(ctx, &CreateReservationRequest{
		ProductID: productA, WarehouseID: warehouse1, Quantity: 3, ReferenceID: "cart-2", ExpiresAt: &future,
	})
	require.NoError(t, err)
	_, err = reserve(ctx, env, 2, "cart-3")
	require.NoError(t, err)

	released, err := env.reservations.ReleaseExpiredReservations(ctx, now)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, expired.ID, released[0].ID)

	avail, err := env.reservations.GetAvailableStock(ctx, productA, warehouse1)
	require.NoError(t, err)
	assert.Equal(t, 5, avail.Reserved)
}
