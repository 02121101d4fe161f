package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fulfillment-service/internal/models"
)

const reservationColumns = "id, product_id, warehouse_id, quantity, reference_id, status, expires_at, created_at, updated_at"

// CreateReservation inserts a reservation
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (id, product_id, warehouse_id, quantity, reference_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID, r.ProductID, r.WarehouseID, r.Quantity, r.ReferenceID, r.Status, r.ExpiresAt, r.CreatedAt, r.UpdatedAt)
	return err
}

// GetReservation retrieves a reservation by ID, or nil if there is none
func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := "SELECT " + reservationColumns + " FROM reservations WHERE id = $1"
	if inTx(ctx) {
		query += " FOR UPDATE"
	}

	var r models.Reservation
	err := s.q(ctx).GetContext(ctx, &r, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReservationStatus moves a reservation from one status to another
func (s *Store) UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		"UPDATE reservations SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListReservationsByReference retrieves reservations for a reference in creation order
func (s *Store) ListReservationsByReference(ctx context.Context, referenceID string) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.q(ctx).SelectContext(ctx, &reservations,
		"SELECT "+reservationColumns+" FROM reservations WHERE reference_id = $1 ORDER BY seq", referenceID)
	return reservations, err
}

// ListActiveReservations retrieves ACTIVE reservations for a key
func (s *Store) ListActiveReservations(ctx context.Context, productID, warehouseID string) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.q(ctx).SelectContext(ctx, &reservations,
		"SELECT "+reservationColumns+" FROM reservations WHERE product_id = $1 AND warehouse_id = $2 AND status = $3 ORDER BY seq",
		productID, warehouseID, models.ReservationStatusActive)
	return reservations, err
}

// ListExpiredReservations retrieves ACTIVE reservations that expired before now
func (s *Store) ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.q(ctx).SelectContext(ctx, &reservations,
		"SELECT "+reservationColumns+" FROM reservations WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2 ORDER BY seq",
		models.ReservationStatusActive, now)
	return reservations, err
}
