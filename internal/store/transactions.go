package store

import (
	"context"

	"fulfillment-service/internal/models"
)

const transactionColumns = "id, product_id, warehouse_id, quantity, type, reference_id, created_at"

// CreateTransaction appends a ledger row
func (s *Store) CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	query := `
		INSERT INTO inventory_transactions (id, product_id, warehouse_id, quantity, type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		txn.ID, txn.ProductID, txn.WarehouseID, txn.Quantity, txn.Type, txn.ReferenceID, txn.CreatedAt)
	return err
}

// ListTransactionsByProduct retrieves a product's ledger in insertion order
func (s *Store) ListTransactionsByProduct(ctx context.Context, productID string) ([]models.InventoryTransaction, error) {
	txns := []models.InventoryTransaction{}
	err := s.q(ctx).SelectContext(ctx, &txns,
		"SELECT "+transactionColumns+" FROM inventory_transactions WHERE product_id = $1 ORDER BY seq", productID)
	return txns, err
}

// ListTransactionsByWarehouse retrieves a warehouse's ledger in insertion order
func (s *Store) ListTransactionsByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryTransaction, error) {
	txns := []models.InventoryTransaction{}
	err := s.q(ctx).SelectContext(ctx, &txns,
		"SELECT "+transactionColumns+" FROM inventory_transactions WHERE warehouse_id = $1 ORDER BY seq", warehouseID)
	return txns, err
}

// ListTransactionsByProductAndWarehouse retrieves one key's ledger in insertion order
func (s *Store) ListTransactionsByProductAndWarehouse(ctx context.Context, productID, warehouseID string) ([]models.InventoryTransaction, error) {
	txns := []models.InventoryTransaction{}
	err := s.q(ctx).SelectContext(ctx, &txns,
		"SELECT "+transactionColumns+" FROM inventory_transactions WHERE product_id = $1 AND warehouse_id = $2 ORDER BY seq",
		productID, warehouseID)
	return txns, err
}
