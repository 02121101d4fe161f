package memstore

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
)

// CreateReservation inserts a reservation
func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return s.write(ctx, func(st *state) error {
		if _, exists := st.reservations[r.ID]; exists {
			return fmt.Errorf("duplicate reservation id %s", r.ID)
		}
		st.reservations[r.ID] = *r
		st.reservationIDs = append(st.reservationIDs, r.ID)
		return nil
	})
}

// GetReservation returns a reservation, or nil if there is none
func (s *Store) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var found *models.Reservation
	s.read(ctx, func(st *state) {
		if r, ok := st.reservations[id]; ok {
			found = &r
		}
	})
	return found, nil
}

// UpdateReservationStatus moves a reservation from one status to another
func (s *Store) UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) (bool, error) {
	var updated bool
	err := s.write(ctx, func(st *state) error {
		r, ok := st.reservations[id]
		if !ok || r.Status != from {
			return nil
		}
		r.Status = to
		r.UpdatedAt = time.Now().UTC()
		st.reservations[id] = r
		updated = true
		return nil
	})
	return updated, err
}

// ListReservationsByReference returns a reference's reservations in creation order
func (s *Store) ListReservationsByReference(ctx context.Context, referenceID string) ([]models.Reservation, error) {
	return s.filterReservations(ctx, func(r models.Reservation) bool {
		return r.ReferenceID == referenceID
	}), nil
}

// ListActiveReservations returns ACTIVE reservations for a key
func (s *Store) ListActiveReservations(ctx context.Context, productID, warehouseID string) ([]models.Reservation, error) {
	return s.filterReservations(ctx, func(r models.Reservation) bool {
		return r.Status == models.ReservationStatusActive && r.ProductID == productID && r.WarehouseID == warehouseID
	}), nil
}

// ListExpiredReservations returns ACTIVE reservations that expired before now
func (s *Store) ListExpiredReservations(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	return s.filterReservations(ctx, func(r models.Reservation) bool {
		return r.Status == models.ReservationStatusActive && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
	}), nil
}

func (s *Store) filterReservations(ctx context.Context, keep func(models.Reservation) bool) []models.Reservation {
	out := []models.Reservation{}
	s.read(ctx, func(st *state) {
		for _, id := range st.reservationIDs {
			if r := st.reservations[id]; keep(r) {
				out = append(out, r)
			}
		}
	})
	return out
}

// CreateTransaction appends a ledger row
func (s *Store) CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return s.write(ctx, func(st *state) error {
		st.transactions = append(st.transactions, *txn)
		return nil
	})
}

// ListTransactionsByProduct returns a product's ledger in insertion order
func (s *Store) ListTransactionsByProduct(ctx context.Context, productID string) ([]models.InventoryTransaction, error) {
	return s.filterTransactions(ctx, func(t models.InventoryTransaction) bool {
		return t.ProductID == productID
	}), nil
}

// ListTransactionsByWarehouse returns a warehouse's ledger in insertion order
func (s *Store) ListTransactionsByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryTransaction, error) {
	return s.filterTransactions(ctx, func(t models.InventoryTransaction) bool {
		return t.WarehouseID == warehouseID
	}), nil
}

// ListTransactionsByProductAndWarehouse returns one key's ledger in insertion order
func (s *Store) ListTransactionsByProductAndWarehouse(ctx context.Context, productID, warehouseID string) ([]models.InventoryTransaction, error) {
	return s.filterTransactions(ctx, func(t models.InventoryTransaction) bool {
		return t.ProductID == productID && t.WarehouseID == warehouseID
	}), nil
}

func (s *Store) filterTransactions(ctx context.Context, keep func(models.InventoryTransaction) bool) []models.InventoryTransaction {
	out := []models.InventoryTransaction{}
	s.read(ctx, func(st *state) {
		for _, t := range st.transactions {
			if keep(t) {
				out = append(out, t)
			}
		}
	})
	return out
}

// CreateOrder inserts an order with its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.write(ctx, func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return fmt.Errorf("duplicate order id %s", order.ID)
		}
		st.orders[order.ID] = order.Clone()
		st.orderIDs = append(st.orderIDs, order.ID)
		return nil
	})
}

// GetOrder returns a copy of an order, or nil if there is none
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var found *models.Order
	s.read(ctx, func(st *state) {
		if o, ok := st.orders[id]; ok {
			found = o.Clone()
		}
	})
	return found, nil
}

// ListOrdersByCustomer returns a customer's orders in creation order
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	out := []models.Order{}
	s.read(ctx, func(st *state) {
		for _, id := range st.orderIDs {
			if o := st.orders[id]; o.CustomerID == customerID {
				out = append(out, *o.Clone())
			}
		}
	})
	return out, nil
}

// UpdateOrderStatus sets status to `to` only if it is currently `from`
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	var updated bool
	err := s.write(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.Status != from {
			return nil
		}
		cp := o.Clone()
		cp.Status = to
		cp.UpdatedAt = time.Now().UTC()
		st.orders[id] = cp
		updated = true
		return nil
	})
	return updated, err
}
