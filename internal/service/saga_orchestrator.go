package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// compensation undoes one completed saga step
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga records compensations for the steps of a multi-step operation and
// runs them in reverse order when a later step fails
type saga struct {
	referenceID string
	steps       []compensation
	logger      *zap.Logger
}

func newSaga(referenceID string, logger *zap.Logger) *saga {
	return &saga{referenceID: referenceID, logger: logger}
}

func (s *saga) record(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// compensate runs every recorded compensation, newest first. Failures are
// logged and do not stop the remaining compensations.
func (s *saga) compensate(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("reference_id", s.referenceID),
				zap.String("step", step.name),
				zap.Error(err))
			continue
		}
		s.logger.Info("Compensation applied",
			zap.String("reference_id", s.referenceID),
			zap.String("step", step.name))
	}
	s.steps = nil
}

// SagaOrchestrator reacts to events from other services that advance orders
type SagaOrchestrator struct {
	orders      *OrderService
	processed   IdempotencyStore
	dedupWindow time.Duration
	logger      *zap.Logger
}

// NewSagaOrchestrator creates a new saga orchestrator. processed may be nil,
// in which case redelivered events are only filtered by the order state machine.
func NewSagaOrchestrator(orders *OrderService, processed IdempotencyStore, dedupWindow time.Duration) *SagaOrchestrator {
	return &SagaOrchestrator{
		orders:      orders,
		processed:   processed,
		dedupWindow: dedupWindow,
		logger:      util.ComponentLogger("saga"),
	}
}

// HandlePaymentSucceeded marks the paid order as PAID. Events for orders that
// are missing or already past CONFIRMED are logged and acknowledged.
func (so *SagaOrchestrator) HandlePaymentSucceeded(ctx context.Context, event *models.PaymentSucceededEvent) (err error) {
	ctx, span := util.StartSpan(ctx, "SagaOrchestrator.HandlePaymentSucceeded")
	defer func() { util.FinishSpan(span, err) }()

	if event.OrderID == "" {
		so.logger.Warn("Payment event without order id", zap.String("event_id", event.EventID))
		return nil
	}

	if so.processed != nil && event.EventID != "" {
		existing, err := so.processed.ClaimIdempotencyKey(ctx, processedEventKey(event.EventID), event.EventType, so.dedupWindow)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if existing != "" {
			so.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}
	}

	so.logger.Info("Handling payment success",
		zap.String("order_id", event.OrderID),
		zap.String("tx_id", event.TxID))

	_, err = so.orders.MarkOrderAsPaid(ctx, event.OrderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrNotFound):
		so.logger.Warn("Payment event ignored",
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		return nil
	default:
		if so.processed != nil && event.EventID != "" {
			if relErr := so.processed.ReleaseIdempotencyKey(ctx, processedEventKey(event.EventID)); relErr != nil {
				so.logger.Error("Failed to release processed marker", zap.Error(relErr))
			}
		}
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
}

func processedEventKey(eventID string) string {
	return "processed:event:" + eventID
}
