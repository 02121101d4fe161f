package service

import (
	"context"
	"fmt"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StockService is the arithmetic layer over the stock ledger. It is the only
// writer of stock rows and never lets a quantity drop below zero.
type StockService struct {
	store   ReservationStore
	catalog Catalog
	logger  *zap.Logger
}

// NewStockService creates a new stock service
func NewStockService(store ReservationStore, catalog Catalog) *StockService {
	return &StockService{
		store:   store,
		catalog: catalog,
		logger:  util.ComponentLogger("stock"),
	}
}

// StockTotal is the sum of stock for a product across warehouses
type StockTotal struct {
	ProductID  string         `json:"product_id"`
	Total      int            `json:"total"`
	Warehouses []models.Stock `json:"warehouses"`
}

// SetStock upserts the absolute quantity for a key
func (s *StockService) SetStock(ctx context.Context, productID, warehouseID string, quantity int) (stock *models.Stock, err error) {
	ctx, span := util.StartSpan(ctx, "StockService.SetStock",
		attribute.String("product_id", productID),
		attribute.String("warehouse_id", warehouseID))
	defer func() { util.FinishSpan(span, err) }()

	if quantity < 0 {
		return nil, models.NewValidation(fmt.Sprintf("quantity must be >= 0, got %d", quantity))
	}
	if err := s.ensureKeyExists(ctx, productID, warehouseID); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockStockKey(ctx, productID, warehouseID); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		stock, err = s.setQuantity(ctx, productID, warehouseID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock set",
		zap.String("product_id", productID),
		zap.String("warehouse_id", warehouseID),
		zap.Int("quantity", quantity))
	return stock, nil
}

// AdjustStock applies delta to the current quantity (missing rows count as 0).
// A negative result fails with ErrInsufficientStock. A decrement that would
// leave less than the ACTIVE reserved quantity fails with
// ErrInsufficientAvailableStock.
func (s *StockService) AdjustStock(ctx context.Context, productID, warehouseID string, delta int) (stock *models.Stock, err error) {
	ctx, span := util.StartSpan(ctx, "StockService.AdjustStock",
		attribute.String("product_id", productID),
		attribute.String("warehouse_id", warehouseID))
	defer func() { util.FinishSpan(span, err) }()

	if err := s.ensureKeyExists(ctx, productID, warehouseID); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockStockKey(ctx, productID, warehouseID); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}

		current, err := s.currentQuantity(ctx, productID, warehouseID)
		if err != nil {
			return err
		}

		next := current + delta
		if next < 0 {
			util.StockMutationsRejectedTotal.WithLabelValues("negative_stock").Inc()
			return &models.StockError{
				Kind:        models.ErrInsufficientStock,
				ProductID:   productID,
				WarehouseID: warehouseID,
				Requested:   -delta,
				Available:   current,
			}
		}

		if delta < 0 {
			reserved, err := s.store.SumActiveReservations(ctx, productID, warehouseID)
			if err != nil {
				return fmt.Errorf("failed to sum reservations: %w", err)
			}
			if next < reserved {
				util.StockMutationsRejectedTotal.WithLabelValues("reserved_stock").Inc()
				return &models.StockError{
					Kind:        models.ErrInsufficientAvailableStock,
					ProductID:   productID,
					WarehouseID: warehouseID,
					Requested:   -delta,
					Available:   current - reserved,
				}
			}
		}

		stock, err = s.store.UpsertStock(ctx, productID, warehouseID, next)
		if err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Info("Stock adjustment rejected",
			zap.String("product_id", productID),
			zap.String("warehouse_id", warehouseID),
			zap.Int("delta", delta),
			zap.Error(err))
		return nil, err
	}

	return stock, nil
}

// GetStock returns the stock row for a key
func (s *StockService) GetStock(ctx context.Context, productID, warehouseID string) (*models.Stock, error) {
	ctx, span := util.StartSpan(ctx, "StockService.GetStock")
	defer span.End()

	stock, err := s.store.GetStock(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	if stock == nil {
		return nil, models.NewNotFound("stock", productID+"/"+warehouseID)
	}
	return stock, nil
}

// GetStockByProduct lists the per-warehouse stock rows of a product
func (s *StockService) GetStockByProduct(ctx context.Context, productID string) ([]models.Stock, error) {
	rows, err := s.store.ListStockByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return rows, nil
}

// GetTotalStock sums stock for a product across all warehouses
func (s *StockService) GetTotalStock(ctx context.Context, productID string) (*StockTotal, error) {
	ctx, span := util.StartSpan(ctx, "StockService.GetTotalStock")
	defer span.End()

	rows, err := s.GetStockByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	total := &StockTotal{ProductID: productID, Warehouses: rows}
	for _, row := range rows {
		total.Total += row.Quantity
	}
	return total, nil
}

// currentQuantity reads a key's quantity, treating a missing row as 0
func (s *StockService) currentQuantity(ctx context.Context, productID, warehouseID string) (int, error) {
	stock, err := s.store.GetStock(ctx, productID, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("failed to get stock: %w", err)
	}
	if stock == nil {
		return 0, nil
	}
	return stock.Quantity, nil
}

// setQuantity overwrites a key's quantity. Callers hold the key lock. A
// recount below the ACTIVE reserved quantity is accepted and logged.
func (s *StockService) setQuantity(ctx context.Context, productID, warehouseID string, quantity int) (*models.Stock, error) {
	if quantity < 0 {
		return nil, models.NewValidation(fmt.Sprintf("quantity must be >= 0, got %d", quantity))
	}
	stock, err := s.store.UpsertStock(ctx, productID, warehouseID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to set stock: %w", err)
	}

	reserved, err := s.store.SumActiveReservations(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}
	if quantity < reserved {
		s.logger.Warn("Stock recount below reserved quantity",
			zap.String("product_id", productID),
			zap.String("warehouse_id", warehouseID),
			zap.Int("quantity", quantity),
			zap.Int("reserved", reserved))
	}
	return stock, nil
}

func (s *StockService) ensureKeyExists(ctx context.Context, productID, warehouseID string) error {
	return ensureKeyExists(ctx, s.catalog, productID, warehouseID)
}

// ensureKeyExists fails with ErrNotFound unless both sides of the key are
// registered in the catalog
func ensureKeyExists(ctx context.Context, catalog Catalog, productID, warehouseID string) error {
	ok, err := catalog.ProductExists(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to look up product: %w", err)
	}
	if !ok {
		return models.NewNotFound("product", productID)
	}

	ok, err = catalog.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("failed to look up warehouse: %w", err)
	}
	if !ok {
		return models.NewNotFound("warehouse", warehouseID)
	}
	return nil
}
