// Package memstore is an in-process implementation of the service storage
// contract. A single mutex serializes transactions; a failed transaction
// restores the state captured when it began.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fulfillment-service/internal/models"
)

type stockKey struct {
	productID   string
	warehouseID string
}

type state struct {
	products     map[string]bool
	warehouses   map[string]bool
	stock        map[stockKey]models.Stock
	reservations map[string]models.Reservation
	// insertion order of reservation ids
	reservationIDs []string
	transactions   []models.InventoryTransaction
	orders         map[string]*models.Order
	orderIDs       []string
}

func newState() *state {
	return &state{
		products:     make(map[string]bool),
		warehouses:   make(map[string]bool),
		stock:        make(map[stockKey]models.Stock),
		reservations: make(map[string]models.Reservation),
		orders:       make(map[string]*models.Order),
	}
}

func (st *state) clone() *state {
	cp := newState()
	for k, v := range st.products {
		cp.products[k] = v
	}
	for k, v := range st.warehouses {
		cp.warehouses[k] = v
	}
	for k, v := range st.stock {
		cp.stock[k] = v
	}
	for k, v := range st.reservations {
		cp.reservations[k] = v
	}
	for k, v := range st.orders {
		cp.orders[k] = v.Clone()
	}
	cp.reservationIDs = append([]string(nil), st.reservationIDs...)
	cp.transactions = append([]models.InventoryTransaction(nil), st.transactions...)
	cp.orderIDs = append([]string(nil), st.orderIDs...)
	return cp
}

// Store keeps all data in memory
type Store struct {
	mu    sync.RWMutex
	state *state
}

type txKey struct{}

// New creates an empty store
func New() *Store {
	return &Store{state: newState()}
}

// AddProduct registers a product id with the catalog
func (s *Store) AddProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[id] = true
}

// AddWarehouse registers a warehouse id with the catalog
func (s *Store) AddWarehouse(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.warehouses[id] = true
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// InTx holds the write lock for the duration of fn. Nested calls join the
// outer transaction. State is restored if fn returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.held(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) held(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if !s.held(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn(s.state)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if !s.held(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

// ProductExists reports whether the product was registered
func (s *Store) ProductExists(ctx context.Context, productID string) (bool, error) {
	var ok bool
	s.read(ctx, func(st *state) { ok = st.products[productID] })
	return ok, nil
}

// WarehouseExists reports whether the warehouse was registered
func (s *Store) WarehouseExists(ctx context.Context, warehouseID string) (bool, error) {
	var ok bool
	s.read(ctx, func(st *state) { ok = st.warehouses[warehouseID] })
	return ok, nil
}

// LockStockKey checks that ctx belongs to a transaction. The transaction
// already holds the store-wide lock.
func (s *Store) LockStockKey(ctx context.Context, productID, warehouseID string) error {
	if !s.held(ctx) {
		return errors.New("stock key lock requires a transaction")
	}
	return nil
}

// GetStock returns the stock row for a key, or nil if there is none
func (s *Store) GetStock(ctx context.Context, productID, warehouseID string) (*models.Stock, error) {
	var stock *models.Stock
	s.read(ctx, func(st *state) {
		if row, ok := st.stock[stockKey{productID, warehouseID}]; ok {
			stock = &row
		}
	})
	return stock, nil
}

// ListStockByProduct returns a product's rows ordered by warehouse id
func (s *Store) ListStockByProduct(ctx context.Context, productID string) ([]models.Stock, error) {
	rows := []models.Stock{}
	s.read(ctx, func(st *state) {
		for k, row := range st.stock {
			if k.productID == productID {
				rows = append(rows, row)
			}
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].WarehouseID < rows[j].WarehouseID })
	return rows, nil
}

// UpsertStock writes the absolute quantity for a key
func (s *Store) UpsertStock(ctx context.Context, productID, warehouseID string, quantity int) (*models.Stock, error) {
	row := models.Stock{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		UpdatedAt:   time.Now().UTC(),
	}
	err := s.write(ctx, func(st *state) error {
		st.stock[stockKey{productID, warehouseID}] = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SumActiveReservations sums ACTIVE reservation quantities for a key
func (s *Store) SumActiveReservations(ctx context.Context, productID, warehouseID string) (int, error) {
	var sum int
	s.read(ctx, func(st *state) {
		for _, r := range st.reservations {
			if r.Status == models.ReservationStatusActive && r.ProductID == productID && r.WarehouseID == warehouseID {
				sum += r.Quantity
			}
		}
	})
	return sum, nil
}
