package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store/memstore"
	"fulfillment-service/internal/util"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	util.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

const (
	productA   = "prod-a"
	productB   = "prod-b"
	warehouse1 = "wh-1"
	warehouse2 = "wh-2"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	orders []*models.OrderStatusChangedEvent
}

func (p *recordingPublisher) record(eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.record(event.EventType)
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.record(event.EventType)
	p.mu.Lock()
	p.orders = append(p.orders, event)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) PublishOrderItemsReturned(ctx context.Context, event *models.OrderItemsReturnedEvent) error {
	p.record(event.EventType)
	return nil
}

func (p *recordingPublisher) PublishInventoryTransactionRecorded(ctx context.Context, event *models.InventoryTransactionRecordedEvent) error {
	p.record(event.EventType)
	return nil
}

func (p *recordingPublisher) PublishReservationStatusChanged(ctx context.Context, event *models.ReservationStatusChangedEvent) error {
	p.record(event.EventType)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fakeIdempotency struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{values: make(map[string]string)}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.values[key]; ok {
		return existing, nil
	}
	f.values[key] = value
	return "", nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type testEnv struct {
	store        *memstore.Store
	publisher    *recordingPublisher
	stock        *StockService
	reservations *ReservationService
	transactions *TransactionService
	orders       *OrderService
}

func newTestEnv(t *testing.T, opts ...OrderOption) *testEnv {
	t.Helper()

	store := memstore.New()
	store.AddProduct(productA)
	store.AddProduct(productB)
	store.AddWarehouse(warehouse1)
	store.AddWarehouse(warehouse2)

	publisher := &recordingPublisher{}
	stock := NewStockService(store, store)
	reservations := NewReservationService(store, store, publisher)
	transactions := NewTransactionService(store, stock, publisher)
	orders := NewOrderService(store, reservations, transactions, publisher, opts...)

	return &testEnv{
		store:        store,
		publisher:    publisher,
		stock:        stock,
		reservations: reservations,
		transactions: transactions,
		orders:       orders,
	}
}

func (e *testEnv) setStock(t *testing.T, productID, warehouseID string, qty int) {
	t.Helper()
	_, err := e.stock.SetStock(context.Background(), productID, warehouseID, qty)
	require.NoError(t, err)
}

func (e *testEnv) quantity(t *testing.T, productID, warehouseID string) int {
	t.Helper()
	stock, err := e.stock.GetStock(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return stock.Quantity
}
