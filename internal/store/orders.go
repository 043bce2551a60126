package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nursery-api/internal/models"
)

const (
	orderColumns     = "id, user_id, total_amount, status, payment_status, created_at, updated_at"
	orderItemColumns = "id, order_id, product_id, quantity, price_at_purchase"
)

// orderItemRow is the flat shape of a line item joined with its product
type orderItemRow struct {
	models.OrderItem
	ProductName  string       `db:"product_name"`
	ProductPrice models.Money `db:"product_price"`
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return orders, err
}

// GetOrderItemsWithProducts retrieves all items for an order joined with product details
func (s *Store) GetOrderItemsWithProducts(ctx context.Context, orderID int64) ([]models.OrderItemDetails, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_purchase,
			p.name AS product_name, p.price AS product_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	var rows []orderItemRow
	if err := s.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, err
	}

	items := make([]models.OrderItemDetails, 0, len(rows))
	for _, r := range rows {
		items = append(items, models.OrderItemDetails{
			OrderItem: r.OrderItem,
			Product: models.ProductSnapshot{
				ID:    r.ProductID,
				Name:  r.ProductName,
				Price: r.ProductPrice,
			},
		})
	}
	return items, nil
}

// GetOrderDetails retrieves an order together with its joined line items
func (s *Store) GetOrderDetails(ctx context.Context, id int64) (*models.OrderDetails, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItemsWithProducts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", id, err)
	}

	return &models.OrderDetails{Order: *order, Items: items}, nil
}
