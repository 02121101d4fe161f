package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	s := newSaga("order-1", zap.NewNop())

	var order []string
	s.record("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	s.record("second", func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("failed")
	})
	s.record("third", func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	})

	s.compensate(context.Background())
	assert.Equal(t, []string{"third", "second", "first"}, order)

	s.compensate(context.Background())
	assert.Len(t, order, 3, "compensations run once")
}

func paymentEvent(id, orderID string) *models.PaymentSucceededEvent {
	return &models.PaymentSucceededEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypePaymentSucceeded},
		OrderID:   orderID,
		Amount:    100,
		TxID:      "tx-" + id,
	}
}

func TestHandlePaymentSucceededMarksOrderPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setStock(t, productA, warehouse1, 10)

	order := createOrder(t, env, OrderItemRequest{ProductID: productA, Quantity: 1, UnitPrice: 100})
	_, err := env.orders.ConfirmOrder(ctx, order.ID, warehouse1)
	require.NoError(t, err)

	saga := NewSagaOrchestrator(env.orders, newFakeIdempotency(), time.Hour)
	require.NoError(t, saga.HandlePaymentSucceeded(ctx, paymentEvent("e1", order.ID)))

	stored, err := env.orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)

	// redelivery and a second event for the same order are acknowledged
	assert.NoError(t, saga.HandlePaymentSucceeded(ctx, paymentEvent("e1", order.ID)))
	assert.NoError(t, saga.HandlePaymentSucceeded(ctx, paymentEvent("e2", order.ID)))
	assert.Equal(t, 2, env.publisher.count(models.EventTypeOrderStatusChanged))
}

func TestHandlePaymentSucceededAcknowledgesUnknownOrders(t *testing.T) {
	env := newTestEnv(t)
	saga := NewSagaOrchestrator(env.orders, nil, 0)

	assert.NoError(t, saga.HandlePaymentSucceeded(context.Background(), paymentEvent("e1", "missing")))
	assert.NoError(t, saga.HandlePaymentSucceeded(context.Background(), paymentEvent("e2", "")))
}
