package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes order events keyed by order id and inventory
// events keyed by product/warehouse, so each key stays ordered in one partition
type EventPublisher struct {
	producer       *Producer
	orderTopic     string
	inventoryTopic string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer, orderTopic, inventoryTopic string) *EventPublisher {
	return &EventPublisher{
		producer:       producer,
		orderTopic:     orderTopic,
		inventoryTopic: inventoryTopic,
	}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishOrderItemsReturned publishes OrderItemsReturned event
func (ep *EventPublisher) PublishOrderItemsReturned(ctx context.Context, event *models.OrderItemsReturnedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishInventoryTransactionRecorded publishes InventoryTransactionRecorded event
func (ep *EventPublisher) PublishInventoryTransactionRecorded(ctx context.Context, event *models.InventoryTransactionRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.inventoryTopic, stockKey(event.ProductID, event.WarehouseID), event)
}

// PublishReservationStatusChanged publishes ReservationStatusChanged event
func (ep *EventPublisher) PublishReservationStatusChanged(ctx context.Context, event *models.ReservationStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.inventoryTopic, stockKey(event.ProductID, event.WarehouseID), event)
}

func orderKey(orderID string) string {
	return "order-" + orderID
}

func stockKey(productID, warehouseID string) string {
	return fmt.Sprintf("stock-%s-%s", productID, warehouseID)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPaymentSucceeded func(context.Context, *models.PaymentSucceededEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("event-handler")}
}

// OnPaymentSucceeded registers a handler for PaymentSucceeded events
func (eh *EventHandler) OnPaymentSucceeded(handler func(context.Context, *models.PaymentSucceededEvent) error) {
	eh.onPaymentSucceeded = handler
}

// HandleMessage routes messages to appropriate handlers. Malformed and
// unknown messages are logged and acknowledged.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		eh.logger.Error("Dropping malformed event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentSucceeded:
		if eh.onPaymentSucceeded != nil {
			var event models.PaymentSucceededEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				eh.logger.Error("Dropping malformed PaymentSucceeded event", zap.Error(err))
				return nil
			}
			return eh.onPaymentSucceeded(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
