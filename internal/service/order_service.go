package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService drives the order state machine and orchestrates reservations
// and ledger entries at each transition
type OrderService struct {
	store          OrderStore
	reservations   *ReservationService
	transactions   *TransactionService
	publisher      EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	reservationTTL time.Duration
	logger         *zap.Logger
}

// OrderOption configures optional OrderService behaviour
type OrderOption func(*OrderService)

// WithIdempotency enables idempotent order creation backed by store
func WithIdempotency(store IdempotencyStore, ttl time.Duration) OrderOption {
	return func(s *OrderService) {
		s.idempotency = store
		s.idempotencyTTL = ttl
	}
}

// WithReservationTTL stamps reservations made by ConfirmOrder with an expiry
func WithReservationTTL(ttl time.Duration) OrderOption {
	return func(s *OrderService) {
		s.reservationTTL = ttl
	}
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	reservations *ReservationService,
	transactions *TransactionService,
	publisher EventPublisher,
	opts ...OrderOption,
) *OrderService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	s := &OrderService{
		store:        store,
		reservations: reservations,
		transactions: transactions,
		publisher:    publisher,
		logger:       util.ComponentLogger("orders"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID     string             `json:"customer_id" validate:"required"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
}

// ReturnItemRequest represents a returned line
type ReturnItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// CreateOrder creates an order in CREATED with its computed total. It has no
// stock or reservation side effects. When an idempotency key is given and
// was already used, the order created by the first call is returned.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer func() { util.FinishSpan(span, err) }()

	if err := util.ValidateStruct(req); err != nil {
		util.OrderOperationsFailedTotal.WithLabelValues("create", rejectReason(err)).Inc()
		return nil, err
	}

	orderID := uuid.New().String()
	claimed := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		existingID, err := s.idempotency.ClaimIdempotencyKey(ctx, idempotencyKey(req.IdempotencyKey), orderID, s.idempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existingID != "" {
			return s.duplicateOrder(ctx, req.IdempotencyKey, existingID)
		}
		claimed = true
	}

	now := time.Now().UTC()
	order = &models.Order{
		ID:         orderID,
		CustomerID: req.CustomerID,
		Status:     models.OrderStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	order.TotalAmount = models.CalculateTotal(order.Items)

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrderOperationsFailedTotal.WithLabelValues("create", "db_error").Inc()
		if claimed {
			if relErr := s.idempotency.ReleaseIdempotencyKey(ctx, idempotencyKey(req.IdempotencyKey)); relErr != nil {
				s.logger.Error("Failed to release idempotency key",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.Error(relErr))
			}
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Int64("total_amount", order.TotalAmount))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Items:       itemData(order.Items),
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

func (s *OrderService) duplicateOrder(ctx context.Context, key, orderID string) (*models.Order, error) {
	existing, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if existing == nil {
		// the first request claimed the key but has not stored its order yet
		return nil, &models.StateError{Entity: "order", ID: orderID, Current: "PENDING", Target: string(models.OrderStatusCreated)}
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", existing.ID))
	return existing, nil
}

// ConfirmOrder reserves every item at warehouseID and moves the order to
// CONFIRMED. If any reservation fails, the ones already made in this call
// are released and the order stays CREATED.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID, warehouseID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmOrder", attribute.String("order_id", orderID))
	defer span.End()

	if warehouseID == "" {
		return nil, models.NewValidation("warehouse_id is required")
	}

	var expiresAt *time.Time
	if s.reservationTTL > 0 {
		t := time.Now().UTC().Add(s.reservationTTL)
		expiresAt = &t
	}

	return s.transition(ctx, orderID, models.OrderStatusConfirmed, warehouseID, func(ctx context.Context, order *models.Order) error {
		saga := newSaga(order.ID, s.logger)
		for _, item := range lockOrdered(order.Items) {
			reservation, err := s.reservations.CreateReservation(ctx, &CreateReservationRequest{
				ProductID:   item.ProductID,
				WarehouseID: warehouseID,
				Quantity:    item.Quantity,
				ReferenceID: order.ID,
				ExpiresAt:   expiresAt,
			})
			if err != nil {
				saga.compensate(ctx)
				return err
			}

			id := reservation.ID
			saga.record("release reservation "+id, func(ctx context.Context) error {
				_, err := s.reservations.ReleaseReservation(ctx, id)
				return err
			})
		}
		return nil
	})
}

// MarkOrderAsPaid moves a CONFIRMED order to PAID
func (s *OrderService) MarkOrderAsPaid(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MarkOrderAsPaid", attribute.String("order_id", orderID))
	defer span.End()

	return s.transition(ctx, orderID, models.OrderStatusPaid, "", nil)
}

// ShipOrder consumes the order's ACTIVE reservation for each item at
// warehouseID, records a SHIPMENT for it and moves the order to SHIPPED.
// Any failure leaves the order PAID with its reservations untouched.
func (s *OrderService) ShipOrder(ctx context.Context, orderID, warehouseID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ShipOrder", attribute.String("order_id", orderID))
	defer span.End()

	if warehouseID == "" {
		return nil, models.NewValidation("warehouse_id is required")
	}

	return s.transition(ctx, orderID, models.OrderStatusShipped, warehouseID, func(ctx context.Context, order *models.Order) error {
		reservations, err := s.reservations.GetReservationsByReference(ctx, order.ID)
		if err != nil {
			return err
		}

		used := make(map[string]bool, len(reservations))
		for _, item := range lockOrdered(order.Items) {
			reservation := matchReservation(reservations, used, item.ProductID, warehouseID)
			if reservation == nil {
				return models.NewNotFound("reservation", fmt.Sprintf("%s/%s/%s", order.ID, item.ProductID, warehouseID))
			}
			used[reservation.ID] = true

			if _, err := s.reservations.ConsumeReservation(ctx, reservation.ID); err != nil {
				return err
			}

			ref := order.ID
			if _, err := s.transactions.CreateTransaction(ctx, &CreateTransactionRequest{
				ProductID:   item.ProductID,
				WarehouseID: warehouseID,
				Quantity:    item.Quantity,
				Type:        models.TransactionTypeShipment,
				ReferenceID: &ref,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelOrder releases the order's ACTIVE reservations and moves it to
// CANCELLED. Allowed from CREATED, CONFIRMED and PAID only.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder", attribute.String("order_id", orderID))
	defer span.End()

	return s.transition(ctx, orderID, models.OrderStatusCancelled, "", func(ctx context.Context, order *models.Order) error {
		_, err := s.reservations.ReleaseReservationsByReference(ctx, order.ID)
		return err
	})
}

// CompleteOrder moves a SHIPPED order to COMPLETED
func (s *OrderService) CompleteOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder", attribute.String("order_id", orderID))
	defer span.End()

	return s.transition(ctx, orderID, models.OrderStatusCompleted, "", nil)
}

// ReturnOrderItems restocks returned items at warehouseID with one RETURN
// transaction each. The order status is not changed and quantities are not
// checked against what was shipped.
func (s *OrderService) ReturnOrderItems(ctx context.Context, orderID string, items []ReturnItemRequest, warehouseID string) (txns []models.InventoryTransaction, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ReturnOrderItems", attribute.String("order_id", orderID))
	defer func() { util.FinishSpan(span, err) }()

	if warehouseID == "" {
		return nil, models.NewValidation("warehouse_id is required")
	}
	if len(items) == 0 {
		return nil, models.NewValidation("items must not be empty")
	}
	for i := range items {
		if err := util.ValidateStruct(&items[i]); err != nil {
			return nil, err
		}
	}

	txCtx, events := withEventBuffer(ctx)
	err = s.store.InTx(txCtx, func(txCtx context.Context) error {
		order, err := s.store.GetOrder(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return models.NewNotFound("order", orderID)
		}

		for _, item := range lockOrderedReturns(items) {
			ref := order.ID
			txn, err := s.transactions.CreateTransaction(txCtx, &CreateTransactionRequest{
				ProductID:   item.ProductID,
				WarehouseID: warehouseID,
				Quantity:    item.Quantity,
				Type:        models.TransactionTypeReturn,
				ReferenceID: &ref,
			})
			if err != nil {
				return err
			}
			txns = append(txns, *txn)
		}
		return nil
	})
	if err != nil {
		events.discard()
		util.OrderOperationsFailedTotal.WithLabelValues("return", rejectReason(err)).Inc()
		return nil, err
	}
	events.flush(ctx)

	s.logger.Info("Order items returned",
		zap.String("order_id", orderID),
		zap.String("warehouse_id", warehouseID),
		zap.Int("lines", len(txns)))

	returned := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		returned = append(returned, models.OrderItemData{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	event := &models.OrderItemsReturnedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderItemsReturned),
		OrderID:     orderID,
		WarehouseID: warehouseID,
		Items:       returned,
	}
	if err := s.publisher.PublishOrderItemsReturned(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderItemsReturned event", zap.Error(err))
	}
	return txns, nil
}

// GetOrderByID retrieves an order with its items
func (s *OrderService) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, models.NewNotFound("order", orderID)
	}
	return order, nil
}

// GetOrdersByCustomer lists a customer's orders, oldest first
func (s *OrderService) GetOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// transition runs steps and the status change to target in one storage
// transaction. The status write is conditional on the status read at the
// start, so a concurrent transition makes this one fail with InvalidState.
func (s *OrderService) transition(
	ctx context.Context,
	orderID string,
	target models.OrderStatus,
	warehouseID string,
	steps func(ctx context.Context, order *models.Order) error,
) (order *models.Order, err error) {
	var from models.OrderStatus

	txCtx, events := withEventBuffer(ctx)
	err = s.store.InTx(txCtx, func(txCtx context.Context) error {
		order, err = s.store.GetOrder(txCtx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return models.NewNotFound("order", orderID)
		}

		from = order.Status
		if !from.CanTransitionTo(target) {
			return orderStateError(order, target)
		}

		if steps != nil {
			if err := steps(txCtx, order); err != nil {
				return err
			}
		}

		ok, err := s.store.UpdateOrderStatus(txCtx, order.ID, from, target)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if !ok {
			return orderStateError(order, target)
		}
		order.Status = target
		order.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		events.discard()
		util.OrderOperationsFailedTotal.WithLabelValues(string(target), rejectReason(err)).Inc()
		s.logger.Info("Order transition rejected",
			zap.String("order_id", orderID),
			zap.String("target", string(target)),
			zap.Error(err))
		return nil, err
	}
	events.flush(ctx)

	util.OrderTransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		From:        from,
		To:          target,
		WarehouseID: warehouseID,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	return order, nil
}

func orderStateError(order *models.Order, target models.OrderStatus) error {
	return &models.StateError{
		Entity:  "order",
		ID:      order.ID,
		Current: string(order.Status),
		Target:  string(target),
	}
}

// matchReservation finds an unused ACTIVE reservation for a product at a warehouse
func matchReservation(reservations []models.Reservation, used map[string]bool, productID, warehouseID string) *models.Reservation {
	for i := range reservations {
		r := &reservations[i]
		if r.Status != models.ReservationStatusActive || used[r.ID] {
			continue
		}
		if r.ProductID == productID && r.WarehouseID == warehouseID {
			return r
		}
	}
	return nil
}

// lockOrdered returns items sorted by product so that concurrent
// transitions take the per-key stock locks in the same order
func lockOrdered(items []models.OrderItem) []models.OrderItem {
	sorted := append([]models.OrderItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

func lockOrderedReturns(items []ReturnItemRequest) []ReturnItemRequest {
	sorted := append([]ReturnItemRequest(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

func itemData(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return data
}

func idempotencyKey(key string) string {
	return "idempotency:order:" + key
}
