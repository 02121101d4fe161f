package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

type eventBufferKey struct{}

// eventBuffer collects publish calls made inside a transaction so they run
// only after it commits
type eventBuffer struct {
	mu      sync.Mutex
	pending []func(ctx context.Context)
}

func withEventBuffer(ctx context.Context) (context.Context, *eventBuffer) {
	buf := &eventBuffer{}
	return context.WithValue(ctx, eventBufferKey{}, buf), buf
}

// emit runs publish now, or queues it when ctx carries an event buffer
func emit(ctx context.Context, publish func(ctx context.Context)) {
	if buf, ok := ctx.Value(eventBufferKey{}).(*eventBuffer); ok {
		buf.mu.Lock()
		buf.pending = append(buf.pending, publish)
		buf.mu.Unlock()
		return
	}
	publish(ctx)
}

// flush publishes queued events in order. The buffer key is dropped from
// ctx so the calls are not queued again.
func (b *eventBuffer) flush(ctx context.Context) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	ctx = context.WithValue(ctx, eventBufferKey{}, nil)
	for _, publish := range pending {
		publish(ctx)
	}
}

// discard drops queued events after a rollback
func (b *eventBuffer) discard() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// rejectReason maps an error to a metric label
func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "invalid_request"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrInsufficientAvailableStock):
		return "insufficient_available_stock"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "internal"
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderItemsReturned(context.Context, *models.OrderItemsReturnedEvent) error {
	return nil
}

func (nopPublisher) PublishInventoryTransactionRecorded(context.Context, *models.InventoryTransactionRecordedEvent) error {
	return nil
}

func (nopPublisher) PublishReservationStatusChanged(context.Context, *models.ReservationStatusChangedEvent) error {
	return nil
}
