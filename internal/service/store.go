package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
)

// TxRunner runs fn inside one storage transaction. Calls made with the ctx
// passed to fn join that transaction; nested InTx calls join the outer one.
// If fn returns an error every write made through ctx is discarded.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Catalog resolves collaborator entities owned by other services
type Catalog interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
	WarehouseExists(ctx context.Context, warehouseID string) (bool, error)
}

// StockStore persists stock rows
type StockStore interface {
	TxRunner
	// LockStockKey serializes writers of one (product, warehouse) key until the
	// surrounding transaction ends. It must be called inside InTx and works
	// whether or not the stock row exists yet.
	LockStockKey(ctx context.Context, productID, warehouseID string) error
	// GetStock returns nil, nil when no row exists
	GetStock(ctx context.Context, productID, warehouseID string) (*models.Stock, error)
	ListStockByProduct(ctx context.Context, productID string) ([]models.Stock, error)
	UpsertStock(ctx context.Context, productID, warehouseID string, quantity int) (*models.Stock, error)
	SumActiveReservations(ctx context.Context, productID, warehouseID string) (int, error)
}

// ReservationStore persists reservations
type ReservationStore interface {
	StockStore
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	// GetReservation returns nil, nil when no row exists
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	// UpdateReservationStatus moves a reservation from one status to another and
	// reports false when its current status is not from.
	UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) (bool, error)
	ListReservationsByReference(ctx context.Context, referenceID string) ([]models.Reservation, error)
	ListActiveReservations(ctx context.Context, productID, warehouseID string) ([]models.Reservation, error)
	ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error)
}

// TransactionStore persists the append-only inventory ledger.
// List methods return rows in creation order.
type TransactionStore interface {
	TxRunner
	CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactionsByProduct(ctx context.Context, productID string) ([]models.InventoryTransaction, error)
	ListTransactionsByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryTransaction, error)
	ListTransactionsByProductAndWarehouse(ctx context.Context, productID, warehouseID string) ([]models.InventoryTransaction, error)
}

// OrderStore persists orders with their items
type OrderStore interface {
	TxRunner
	CreateOrder(ctx context.Context, order *models.Order) error
	// GetOrder returns nil, nil when no row exists. Inside a transaction the
	// order row stays locked until the transaction ends.
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	// UpdateOrderStatus is a compare-and-set on status; it reports false when
	// the current status is not from.
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error)
}

// Store is the full storage contract implemented by internal/store and
// internal/store/memstore
type Store interface {
	Catalog
	ReservationStore
	TransactionStore
	OrderStore
}

// IdempotencyStore remembers which order an idempotency key produced
type IdempotencyStore interface {
	// ClaimIdempotencyKey stores value under key unless the key exists, in
	// which case the existing value is returned. A fresh claim returns "".
	ClaimIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) (string, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// EventPublisher publishes domain events after a successful commit
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderItemsReturned(ctx context.Context, event *models.OrderItemsReturnedEvent) error
	PublishInventoryTransactionRecorded(ctx context.Context, event *models.InventoryTransactionRecordedEvent) error
	PublishReservationStatusChanged(ctx context.Context, event *models.ReservationStatusChangedEvent) error
}
