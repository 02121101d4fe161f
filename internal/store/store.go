package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const stockColumns = "product_id, warehouse_id, quantity, updated_at"

// Store is the PostgreSQL implementation of the service storage contract
type Store struct {
	db *sqlx.DB
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx
type querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type txKey struct{}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction carried by ctx. Nested calls
// reuse the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

// ProductExists checks the products table
func (s *Store) ProductExists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := s.q(ctx).GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID)
	return exists, err
}

// WarehouseExists checks the warehouses table
func (s *Store) WarehouseExists(ctx context.Context, warehouseID string) (bool, error) {
	var exists bool
	err := s.q(ctx).GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", warehouseID)
	return exists, err
}

// LockStockKey takes a transaction-scoped advisory lock on the
// (product, warehouse) key. It works before the stock row exists.
func (s *Store) LockStockKey(ctx context.Context, productID, warehouseID string) error {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return errors.New("stock key lock requires a transaction")
	}
	_, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", "stock:"+productID+"/"+warehouseID)
	return err
}

// GetStock retrieves the stock row for a key, or nil if there is none
func (s *Store) GetStock(ctx context.Context, productID, warehouseID string) (*models.Stock, error) {
	var stock models.Stock
	err := s.q(ctx).GetContext(ctx, &stock,
		"SELECT "+stockColumns+" FROM stock WHERE product_id = $1 AND warehouse_id = $2",
		productID, warehouseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// ListStockByProduct retrieves a product's stock rows across warehouses
func (s *Store) ListStockByProduct(ctx context.Context, productID string) ([]models.Stock, error) {
	stock := []models.Stock{}
	err := s.q(ctx).SelectContext(ctx, &stock,
		"SELECT "+stockColumns+" FROM stock WHERE product_id = $1 ORDER BY warehouse_id", productID)
	return stock, err
}

// UpsertStock writes the absolute quantity for a key
func (s *Store) UpsertStock(ctx context.Context, productID, warehouseID string, quantity int) (*models.Stock, error) {
	query := `
		INSERT INTO stock (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		RETURNING ` + stockColumns

	var stock models.Stock
	if err := s.q(ctx).GetContext(ctx, &stock, query, productID, warehouseID, quantity); err != nil {
		return nil, err
	}
	return &stock, nil
}

// SumActiveReservations sums ACTIVE reservation quantities for a key
func (s *Store) SumActiveReservations(ctx context.Context, productID, warehouseID string) (int, error) {
	var sum int
	err := s.q(ctx).GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE product_id = $1 AND warehouse_id = $2 AND status = $3",
		productID, warehouseID, models.ReservationStatusActive)
	return sum, err
}
