package service

import (
	"context"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ctx context.Context, env *testEnv, typ models.TransactionType, qty int) (*models.InventoryTransaction, error) {
	return env.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
		ProductID:   productA,
		WarehouseID: warehouse1,
		Quantity:    qty,
		Type:        typ,
	})
}

func TestCreateTransactionStockEffects(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		typ     models.TransactionType
		qty     int
		want    int
	}{
		{"receipt adds", 10, models.TransactionTypeReceipt, 5, 15},
		{"return adds", 10, models.TransactionTypeReturn, 2, 12},
		{"shipment subtracts", 10, models.TransactionTypeShipment, 10, 0},
		{"adjustment sets absolute", 10, models.TransactionTypeAdjustment, 3, 3},
		{"adjustment can raise", 10, models.TransactionTypeAdjustment, 40, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.setStock(t, productA, warehouse1, tt.initial)

			txn, err := record(ctx, env, tt.typ, tt.qty)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, txn.Type)
			assert.Equal(t, tt.qty, txn.Quantity)
			assert.Equal(t, tt.want, env.quantity(t, productA, warehouse1))
		})
	}
}

func TestShipmentBeyondStockLogsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 4)

	_, err := record(ctx, env, models.TransactionTypeShipment, 5)
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	txns, err := env.transactions.GetTransactionsByProduct(ctx, productA)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, 4, env.quantity(t, productA, warehouse1))
	assert.Zero(t, env.publisher.count(models.EventTypeInventoryTransactionRecorded))
}

func TestShipmentCannotTakeReservedStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 10)

	_, err := reserve(ctx, env, 8, "order-1")
	require.NoError(t, err)

	_, err = record(ctx, env, models.TransactionTypeShipment, 3)
	assert.ErrorIs(t, err, models.ErrInsufficientAvailableStock)

	_, err = record(ctx, env, models.TransactionTypeShipment, 2)
	assert.NoError(t, err)
}

func TestReceiptThenShipmentRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 17)

	_, err := record(ctx, env, models.TransactionTypeReceipt, 9)
	require.NoError(t, err)
	_, err = record(ctx, env, models.TransactionTypeShipment, 9)
	require.NoError(t, err)

	assert.Equal(t, 17, env.quantity(t, productA, warehouse1))
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := record(ctx, env, models.TransactionTypeReceipt, 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = record(ctx, env, models.TransactionType("GIFT"), 1)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
		ProductID: "unknown", WarehouseID: warehouse1, Quantity: 1, Type: models.TransactionTypeReceipt,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLedgerKeepsCreationOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ref := "po-42"
	_, err := env.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
		ProductID: productA, WarehouseID: warehouse1, Quantity: 10, Type: models.TransactionTypeReceipt, ReferenceID: &ref,
	})
	require.NoError(t, err)
	_, err = env.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
		ProductID: productB, WarehouseID: warehouse1, Quantity: 4, Type: models.TransactionTypeReceipt,
	})
	require.NoError(t, err)
	_, err = record(ctx, env, models.TransactionTypeShipment, 3)
	require.NoError(t, err)
	_, err = env.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
		ProductID: productA, WarehouseID: warehouse2, Quantity: 6, Type: models.TransactionTypeAdjustment,
	})
	require.NoError(t, err)

	byProduct, err := env.transactions.GetTransactionsByProduct(ctx, productA)
	require.NoError(t, err)
	require.Len(t, byProduct, 3)
	assert.Equal(t, models.TransactionTypeReceipt, byProduct[0].Type)
	require.NotNil(t, byProduct[0].ReferenceID)
	assert.Equal(t, ref, *byProduct[0].ReferenceID)
	assert.Equal(t, models.TransactionTypeShipment, byProduct[1].Type)
	assert.Equal(t, models.TransactionTypeAdjustment, byProduct[2].Type)

	byWarehouse, err := env.transactions.GetTransactionsByWarehouse(ctx, warehouse1)
	require.NoError(t, err)
	require.Len(t, byWarehouse, 3)
	assert.Equal(t, productB, byWarehouse[1].ProductID)

	byKey, err := env.transactions.GetTransactionsByProductAndWarehouse(ctx, productA, warehouse1)
	require.NoError(t, err)
	assert.Len(t, byKey, 2)

	assert.Equal(t, 4, env.publisher.count(models.EventTypeInventoryTransactionRecorded))
}
