package models

import "time"

// Stock is the physical on-hand quantity of a product at a warehouse
type Stock struct {
	ProductID   string    `db:"product_id" json:"product_id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Reservation is a soft hold against stock for a reference (order, cart)
type Reservation struct {
	ID          string            `db:"id" json:"id"`
	ProductID   string            `db:"product_id" json:"product_id"`
	WarehouseID string            `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int               `db:"quantity" json:"quantity"`
	ReferenceID string            `db:"reference_id" json:"reference_id"`
	Status      ReservationStatus `db:"status" json:"status"`
	ExpiresAt   *time.Time        `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// InventoryTransaction is an immutable ledger entry for a stock mutation
type InventoryTransaction struct {
	ID          string          `db:"id" json:"id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	WarehouseID string          `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Type        TransactionType `db:"type" json:"type"`
	ReferenceID *string         `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Order represents a customer order
type Order struct {
	ID          string      `db:"id" json:"id"`
	CustomerID  string      `db:"customer_id" json:"customer_id"`
	Status      OrderStatus `db:"status" json:"status"`
	TotalAmount int64       `db:"total_amount" json:"total_amount"`
	Items       []OrderItem `db:"-" json:"items"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem represents a line in an order. UnitPrice is in minor currency units.
type OrderItem struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}

// Total returns quantity times unit price
func (i OrderItem) Total() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// CalculateTotal sums the line totals of items
func CalculateTotal(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Total()
	}
	return total
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp
}

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

// Reservation statuses. RELEASED and CONSUMED are terminal.
const (
	ReservationStatusActive   ReservationStatus = "ACTIVE"
	ReservationStatusReleased ReservationStatus = "RELEASED"
	ReservationStatusConsumed ReservationStatus = "CONSUMED"
)

// TransactionType classifies an inventory transaction
type TransactionType string

const (
	TransactionTypeReceipt    TransactionType = "RECEIPT"
	TransactionTypeShipment   TransactionType = "SHIPMENT"
	TransactionTypeReturn     TransactionType = "RETURN"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeReceipt, TransactionTypeShipment, TransactionTypeReturn, TransactionTypeAdjustment:
		return true
	}
	return false
}

// SetsAbsolute reports whether the type overwrites the stock quantity
// instead of applying a delta. Only ADJUSTMENT does.
func (t TransactionType) SetsAbsolute() bool {
	return t == TransactionTypeAdjustment
}

// StockDelta returns the signed delta a delta-type transaction applies
func (t TransactionType) StockDelta(quantity int) int {
	if t == TransactionTypeShipment {
		return -quantity
	}
	return quantity
}
