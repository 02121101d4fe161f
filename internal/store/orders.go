package store

import (
	"context"
	"database/sql"
	"errors"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	orderColumns     = "id, customer_id, status, total_amount, created_at, updated_at"
	orderItemColumns = "id, order_id, product_id, quantity, unit_price"
)

// CreateOrder inserts an order and its items atomically
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO orders (id, customer_id, status, total_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`

		if _, err := s.q(ctx).ExecContext(ctx, query,
			order.ID, order.CustomerID, order.Status, order.TotalAmount, order.CreatedAt, order.UpdatedAt); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.createOrderItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) createOrderItem(ctx context.Context, item models.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
	return err
}

// GetOrder retrieves an order with its items, or nil if there is none.
// Inside a transaction the order row is locked.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if inTx(ctx) {
		query += " FOR UPDATE"
	}

	var order models.Order
	err := s.q(ctx).GetContext(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.Items = []models.OrderItem{}
	if err := s.q(ctx).SelectContext(ctx, &order.Items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1 ORDER BY seq", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByCustomer retrieves a customer's orders with items, oldest first
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	orders := []models.Order{}
	if err := s.q(ctx).SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY seq", customerID); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	query, args, err := sqlx.In("SELECT "+orderItemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY seq", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}

	byOrder := make(map[string][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

// UpdateOrderStatus sets status to `to` only if it is currently `from`
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
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
