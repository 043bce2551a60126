package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nursery-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderTx is the set of writes and locking reads available inside a
// transaction opened by WithTx.
type OrderTx interface {
	GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	IncrementStock(ctx context.Context, productID int64, quantity int) error
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	UpdateOrderPayment(ctx context.Context, orderID int64, paymentStatus, status string) error
}

// Tx is a database transaction handle. It is only valid inside the
// function passed to WithTx.
type Tx struct {
	tx *sqlx.Tx
}

var _ OrderTx = (*Tx)(nil)

// WithTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; every other exit path rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetProductForUpdate loads a product and locks its row until the transaction ends
func (t *Tx) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}
	return &product, nil
}

// DecrementStock removes quantity units from a product's stock. Stock never
// drops below zero: an update that would do so affects no rows and errors.
func (t *Tx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("stock update for product %d affected no rows", productID)
	}
	return nil
}

// IncrementStock returns quantity units to a product's stock
func (t *Tx) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restock product %d: %w", productID, err)
	}
	return nil
}

// CreateOrder inserts an order row and fills in its id and timestamps
func (t *Tx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	if err := t.tx.GetContext(ctx, order, query,
		order.UserID, order.TotalAmount, order.Status, order.PaymentStatus); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// CreateOrderItem inserts a line item and fills in its id
func (t *Tx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// GetOrderForUpdate loads an order and locks its row
func (t *Tx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	return &order, nil
}

// GetOrderItems lists the line items of an order
func (t *Tx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := t.tx.SelectContext(ctx, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus sets an order's status
func (t *Tx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// UpdateOrderPayment sets an order's payment status and status together
func (t *Tx) UpdateOrderPayment(ctx context.Context, orderID int64, paymentStatus, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $1, status = $2, updated_at = NOW() WHERE id = $3",
		paymentStatus, status, orderID)
	return err
}
