package models

import "time"

// Event types
const (
	EventTypeOrderCreated                 = "ORDER_CREATED"
	EventTypeOrderStatusChanged           = "ORDER_STATUS_CHANGED"
	EventTypeOrderItemsReturned           = "ORDER_ITEMS_RETURNED"
	EventTypeInventoryTransactionRecorded = "INVENTORY_TRANSACTION_RECORDED"
	EventTypeReservationStatusChanged     = "RESERVATION_STATUS_CHANGED"
	EventTypePaymentSucceeded             = "PAYMENT_SUCCEEDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after every committed order transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	WarehouseID string      `json:"warehouse_id,omitempty"`
}

// OrderItemsReturnedEvent published when returned goods are restocked
type OrderItemsReturnedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	WarehouseID string          `json:"warehouse_id"`
	Items       []OrderItemData `json:"items"`
}

// InventoryTransactionRecordedEvent mirrors a ledger entry and the resulting stock level
type InventoryTransactionRecordedEvent struct {
	BaseEvent
	TransactionID string          `json:"transaction_id"`
	ProductID     string          `json:"product_id"`
	WarehouseID   string          `json:"warehouse_id"`
	Quantity      int             `json:"quantity"`
	Type          TransactionType `json:"type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	StockLevel    int             `json:"stock_level"`
}

// ReservationStatusChangedEvent published when a reservation is created or terminalized
type ReservationStatusChangedEvent struct {
	BaseEvent
	ReservationID string            `json:"reservation_id"`
	ProductID     string            `json:"product_id"`
	WarehouseID   string            `json:"warehouse_id"`
	Quantity      int               `json:"quantity"`
	ReferenceID   string            `json:"reference_id"`
	Status        ReservationStatus `json:"status"`
}

// PaymentSucceededEvent is consumed from the payment provider topic
type PaymentSucceededEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	TxID    string `json:"tx_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price,omitempty"`
}
