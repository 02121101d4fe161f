package service

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationService manages soft holds against stock
type ReservationService struct {
	store     ReservationStore
	catalog   Catalog
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewReservationService creates a new reservation service
func NewReservationService(store ReservationStore, catalog Catalog, publisher EventPublisher) *ReservationService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ReservationService{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		logger:    util.ComponentLogger("reservations"),
		now:       time.Now,
	}
}

// CreateReservationRequest describes a new hold
type CreateReservationRequest struct {
	ProductID   string     `json:"product_id" validate:"required"`
	WarehouseID string     `json:"warehouse_id" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	ReferenceID string     `json:"reference_id" validate:"required"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Availability is physical stock minus ACTIVE reservations for one key
type Availability struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Stock       int    `json:"stock"`
	Reserved    int    `json:"reserved"`
	Available   int    `json:"available"`
}

// CreateReservation holds quantity for a reference if enough stock is
// available. The availability check and insert run under the key lock.
func (s *ReservationService) CreateReservation(ctx context.Context, req *CreateReservationRequest) (reservation *models.Reservation, err error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.CreateReservation")
	defer func() { util.FinishSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	if err := util.ValidateStruct(req); err != nil {
		util.ReservationsRejectedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}
	if err := ensureKeyExists(ctx, s.catalog, req.ProductID, req.WarehouseID); err != nil {
		util.ReservationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockStockKey(ctx, req.ProductID, req.WarehouseID); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}

		avail, err := s.availability(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return err
		}
		if req.Quantity > avail.Available {
			return &models.StockError{
				Kind:        models.ErrInsufficientAvailableStock,
				ProductID:   req.ProductID,
				WarehouseID: req.WarehouseID,
				Requested:   req.Quantity,
				Available:   avail.Available,
			}
		}

		now := s.now().UTC()
		reservation = &models.Reservation{
			ID:          uuid.New().String(),
			ProductID:   req.ProductID,
			WarehouseID: req.WarehouseID,
			Quantity:    req.Quantity,
			ReferenceID: req.ReferenceID,
			Status:      models.ReservationStatusActive,
			ExpiresAt:   req.ExpiresAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.CreateReservation(ctx, reservation); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		util.ReservationsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		s.logger.Info("Reservation rejected",
			zap.String("product_id", req.ProductID),
			zap.String("warehouse_id", req.WarehouseID),
			zap.String("reference_id", req.ReferenceID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, err
	}

	util.ReservationsCreatedTotal.Inc()
	s.logger.Info("Reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("reference_id", reservation.ReferenceID),
		zap.Int("quantity", reservation.Quantity))

	emit(ctx, func(ctx context.Context) { s.publishStatus(ctx, reservation) })
	return reservation, nil
}

// ConsumeReservation marks an ACTIVE reservation CONSUMED. Stock is not
// touched; the caller records the matching SHIPMENT transaction.
func (s *ReservationService) ConsumeReservation(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ConsumeReservation")
	defer span.End()

	return s.terminate(ctx, id, models.ReservationStatusConsumed)
}

// ReleaseReservation marks an ACTIVE reservation RELEASED
func (s *ReservationService) ReleaseReservation(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReleaseReservation")
	defer span.End()

	return s.terminate(ctx, id, models.ReservationStatusReleased)
}

// ReleaseReservationsByReference releases every ACTIVE reservation of a
// reference and returns the released ones
func (s *ReservationService) ReleaseReservationsByReference(ctx context.Context, referenceID string) (released []models.Reservation, err error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReleaseReservationsByReference")
	defer func() { util.FinishSpan(span, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		reservations, err := s.store.ListReservationsByReference(ctx, referenceID)
		if err != nil {
			return fmt.Errorf("failed to list reservations: %w", err)
		}

		for _, r := range reservations {
			if r.Status != models.ReservationStatusActive {
				continue
			}
			ok, err := s.store.UpdateReservationStatus(ctx, r.ID, models.ReservationStatusActive, models.ReservationStatusReleased)
			if err != nil {
				return fmt.Errorf("failed to release reservation %s: %w", r.ID, err)
			}
			if !ok {
				continue
			}
			r.Status = models.ReservationStatusReleased
			released = append(released, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.ReservationsTerminatedTotal.WithLabelValues(string(models.ReservationStatusReleased)).Add(float64(len(released)))
	if len(released) > 0 {
		s.logger.Info("Reservations released",
			zap.String("reference_id", referenceID),
			zap.Int("count", len(released)))
	}
	for i := range released {
		r := &released[i]
		emit(ctx, func(ctx context.Context) { s.publishStatus(ctx, r) })
	}
	return released, nil
}

// ReleaseExpiredReservations releases ACTIVE reservations whose expiry is
// before now. It runs only when called; nothing schedules it.
func (s *ReservationService) ReleaseExpiredReservations(ctx context.Context, now time.Time) (released []models.Reservation, err error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.ReleaseExpiredReservations")
	defer func() { util.FinishSpan(span, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		expired, err := s.store.ListExpiredReservations(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to list expired reservations: %w", err)
		}
		for _, r := range expired {
			ok, err := s.store.UpdateReservationStatus(ctx, r.ID, models.ReservationStatusActive, models.ReservationStatusReleased)
			if err != nil {
				return fmt.Errorf("failed to release reservation %s: %w", r.ID, err)
			}
			if ok {
				r.Status = models.ReservationStatusReleased
				released = append(released, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.ReservationsTerminatedTotal.WithLabelValues(string(models.ReservationStatusReleased)).Add(float64(len(released)))
	for i := range released {
		r := &released[i]
		emit(ctx, func(ctx context.Context) { s.publishStatus(ctx, r) })
	}
	return released, nil
}

// GetReservation returns one reservation
func (s *ReservationService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if r == nil {
		return nil, models.NewNotFound("reservation", id)
	}
	return r, nil
}

// GetReservationsByReference lists all reservations of a reference
func (s *ReservationService) GetReservationsByReference(ctx context.Context, referenceID string) ([]models.Reservation, error) {
	reservations, err := s.store.ListReservationsByReference(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// GetActiveReservationsByProductAndWarehouse lists ACTIVE reservations of a key
func (s *ReservationService) GetActiveReservationsByProductAndWarehouse(ctx context.Context, productID, warehouseID string) ([]models.Reservation, error) {
	reservations, err := s.store.ListActiveReservations(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// GetAvailableStock returns stock minus ACTIVE reservations for a key
func (s *ReservationService) GetAvailableStock(ctx context.Context, productID, warehouseID string) (*Availability, error) {
	ctx, span := util.StartSpan(ctx, "ReservationService.GetAvailableStock")
	defer span.End()

	return s.availability(ctx, productID, warehouseID)
}

func (s *ReservationService) availability(ctx context.Context, productID, warehouseID string) (*Availability, error) {
	stock, err := s.store.GetStock(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	reserved, err := s.store.SumActiveReservations(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}

	avail := &Availability{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Reserved:    reserved,
	}
	if stock != nil {
		avail.Stock = stock.Quantity
	}
	// a recount below the reserved quantity leaves nothing to offer
	avail.Available = max(avail.Stock-reserved, 0)
	return avail, nil
}

// terminate moves an ACTIVE reservation to a terminal status
func (s *ReservationService) terminate(ctx context.Context, id string, to models.ReservationStatus) (reservation *models.Reservation, err error) {
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		reservation, err = s.store.GetReservation(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get reservation: %w", err)
		}
		if reservation == nil {
			return models.NewNotFound("reservation", id)
		}

		stateErr := &models.StateError{
			Entity:  "reservation",
			ID:      id,
			Current: string(reservation.Status),
			Target:  string(to),
		}
		if reservation.Status != models.ReservationStatusActive {
			return stateErr
		}

		ok, err := s.store.UpdateReservationStatus(ctx, id, models.ReservationStatusActive, to)
		if err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		if !ok {
			return stateErr
		}
		reservation.Status = to
		reservation.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.ReservationsTerminatedTotal.WithLabelValues(string(to)).Inc()
	emit(ctx, func(ctx context.Context) { s.publishStatus(ctx, reservation) })
	return reservation, nil
}

func (s *ReservationService) publishStatus(ctx context.Context, r *models.Reservation) {
	event := &models.ReservationStatusChangedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeReservationStatusChanged),
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		WarehouseID:   r.WarehouseID,
		Quantity:      r.Quantity,
		ReferenceID:   r.ReferenceID,
		Status:        r.Status,
	}
	if err := s.publisher.PublishReservationStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReservationStatusChanged event", zap.Error(err))
	}
}
