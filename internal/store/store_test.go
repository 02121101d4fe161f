package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL, applies the schema and seeds a
// fresh product and warehouse. The test is skipped when no database is set.
func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = store.db.Exec(string(schema))
	require.NoError(t, err)

	productID := "p-" + uuid.New().String()
	warehouseID := "w-" + uuid.New().String()
	_, err = store.db.Exec("INSERT INTO products (id) VALUES ($1)", productID)
	require.NoError(t, err)
	_, err = store.db.Exec("INSERT INTO warehouses (id) VALUES ($1)", warehouseID)
	require.NoError(t, err)

	return store, productID, warehouseID
}

func TestCatalogLookups(t *testing.T) {
	store, productID, warehouseID := newTestStore(t)
	ctx := context.Background()

	ok, err := store.ProductExists(ctx, productID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.WarehouseExists(ctx, warehouseID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ProductExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertStockAndRollback(t *testing.T) {
	store, productID, warehouseID := newTestStore(t)
	ctx := context.Background()

	stock, err := store.GetStock(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Nil(t, stock)

	stock, err = store.UpsertStock(ctx, productID, warehouseID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Quantity)

	errBoom := errors.New("boom")
	err = store.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.LockStockKey(ctx, productID, warehouseID))
		_, err := store.UpsertStock(ctx, productID, warehouseID, 3)
		require.NoError(t, err)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	stock, err = store.GetStock(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Quantity)
}

func TestLockStockKeyRequiresTransaction(t *testing.T) {
	store, productID, warehouseID := newTestStore(t)

	err := store.LockStockKey(context.Background(), productID, warehouseID)
	assert.Error(t, err)
}

func TestReservationStatusCompareAndSet(t *testing.T) {
	store, productID, warehouseID := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := now.Add(-time.Minute)
	r := &models.Reservation{
		ID:          uuid.New().String(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    4,
		ReferenceID: "order-" + uuid.New().String(),
		Status:      models.ReservationStatusActive,
		ExpiresAt:   &expired,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, store.CreateReservation(ctx, r))

	sum, err := store.SumActiveReservations(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum)

	found, err := store.ListExpiredReservations(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, r.ID, found[0].ID)

	ok, err := store.UpdateReservationStatus(ctx, r.ID, models.ReservationStatusActive, models.ReservationStatusConsumed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateReservationStatus(ctx, r.ID, models.ReservationStatusActive, models.ReservationStatusReleased)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err = store.SumActiveReservations(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestTransactionLedgerOrder(t *testing.T) {
	store, productID, warehouseID := newTestStore(t)
	ctx := context.Background()

	types := []models.TransactionType{
		models.TransactionTypeReceipt,
		models.TransactionTypeShipment,
		models.TransactionTypeReturn,
	}
	for _, typ := range types {
		require.NoError(t, store.CreateTransaction(ctx, &models.InventoryTransaction{
			ID:          uuid.New().String(),
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    1,
			Type:        typ,
			CreatedAt:   time.Now().UTC(),
		}))
	}

	txns, err := store.ListTransactionsByProductAndWarehouse(ctx, productID, warehouseID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for i, typ := range types {
		assert.Equal(t, typ, txns[i].Type)
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	store, productID, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	orderID := uuid.New().String()
	customerID := "c-" + uuid.New().String()
	order := &models.Order{
		ID:         orderID,
		CustomerID: customerID,
		Status:     models.OrderStatusCreated,
		Items: []models.OrderItem{
			{ID: uuid.New().String(), OrderID: orderID, ProductID: productID, Quantity: 5, UnitPrice: 1999},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.TotalAmount = models.CalculateTotal(order.Items)
	require.NoError(t, store.CreateOrder(ctx, order))

	retrieved, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, int64(9995), retrieved.TotalAmount)
	require.Len(t, retrieved.Items, 1)

	ok, err := store.UpdateOrderStatus(ctx, orderID, models.OrderStatusCreated, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateOrderStatus(ctx, orderID, models.OrderStatusCreated, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	orders, err := store.ListOrdersByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusConfirmed, orders[0].Status)
	assert.Len(t, orders[0].Items, 1)

	missing, err := store.GetOrder(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
