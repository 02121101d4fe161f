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

// TransactionService applies typed stock mutations and appends them to the
// inventory ledger
type TransactionService struct {
	store     TransactionStore
	stock     *StockService
	publisher EventPublisher
	logger    *zap.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(store TransactionStore, stock *StockService, publisher EventPublisher) *TransactionService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TransactionService{
		store:     store,
		stock:     stock,
		publisher: publisher,
		logger:    util.ComponentLogger("transactions"),
	}
}

// CreateTransactionRequest describes one stock mutation
type CreateTransactionRequest struct {
	ProductID   string                 `json:"product_id" validate:"required"`
	WarehouseID string                 `json:"warehouse_id" validate:"required"`
	Quantity    int                    `json:"quantity" validate:"gt=0"`
	Type        models.TransactionType `json:"type" validate:"required"`
	ReferenceID *string                `json:"reference_id,omitempty"`
}

// CreateTransaction mutates stock according to the request type and appends
// the ledger row. Both happen in one storage transaction, so a rejected
// mutation leaves no ledger entry.
//
// RECEIPT and RETURN add the quantity, SHIPMENT subtracts it and ADJUSTMENT
// overwrites stock with it.
func (s *TransactionService) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (txn *models.InventoryTransaction, err error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.CreateTransaction")
	defer func() { util.FinishSpan(span, err) }()

	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, models.NewValidation(fmt.Sprintf("unknown transaction type %q", req.Type))
	}
	if err := s.stock.ensureKeyExists(ctx, req.ProductID, req.WarehouseID); err != nil {
		return nil, err
	}

	var level *models.Stock
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if req.Type.SetsAbsolute() {
			if err := s.stock.store.LockStockKey(ctx, req.ProductID, req.WarehouseID); err != nil {
				return fmt.Errorf("failed to lock stock: %w", err)
			}
			level, err = s.stock.setQuantity(ctx, req.ProductID, req.WarehouseID, req.Quantity)
		} else {
			level, err = s.stock.AdjustStock(ctx, req.ProductID, req.WarehouseID, req.Type.StockDelta(req.Quantity))
		}
		if err != nil {
			return err
		}

		txn = &models.InventoryTransaction{
			ID:          uuid.New().String(),
			ProductID:   req.ProductID,
			WarehouseID: req.WarehouseID,
			Quantity:    req.Quantity,
			Type:        req.Type,
			ReferenceID: req.ReferenceID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.store.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.InventoryTransactionsTotal.WithLabelValues(string(txn.Type)).Inc()
	s.logger.Info("Inventory transaction recorded",
		zap.String("transaction_id", txn.ID),
		zap.String("type", string(txn.Type)),
		zap.String("product_id", txn.ProductID),
		zap.String("warehouse_id", txn.WarehouseID),
		zap.Int("quantity", txn.Quantity),
		zap.Int("stock_level", level.Quantity))

	stockLevel := level.Quantity
	emit(ctx, func(ctx context.Context) { s.publishRecorded(ctx, txn, stockLevel) })
	return txn, nil
}

// GetTransactionsByProduct lists a product's ledger in creation order
func (s *TransactionService) GetTransactionsByProduct(ctx context.Context, productID string) ([]models.InventoryTransaction, error) {
	txns, err := s.store.ListTransactionsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// GetTransactionsByWarehouse lists a warehouse's ledger in creation order
func (s *TransactionService) GetTransactionsByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryTransaction, error) {
	txns, err := s.store.ListTransactionsByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// GetTransactionsByProductAndWarehouse lists one key's ledger in creation order
func (s *TransactionService) GetTransactionsByProductAndWarehouse(ctx context.Context, productID, warehouseID string) ([]models.InventoryTransaction, error) {
	txns, err := s.store.ListTransactionsByProductAndWarehouse(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (s *TransactionService) publishRecorded(ctx context.Context, txn *models.InventoryTransaction, level int) {
	event := &models.InventoryTransactionRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeInventoryTransactionRecorded),
		TransactionID: txn.ID,
		ProductID:     txn.ProductID,
		WarehouseID:   txn.WarehouseID,
		Quantity:      txn.Quantity,
		Type:          txn.Type,
		StockLevel:    level,
	}
	if txn.ReferenceID != nil {
		event.ReferenceID = *txn.ReferenceID
	}
	if err := s.publisher.PublishInventoryTransactionRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish InventoryTransactionRecorded event", zap.Error(err))
	}
}
