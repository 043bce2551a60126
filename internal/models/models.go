package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the catalog
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Product represents a plant or supply in the catalog
type Product struct {
	ID         int64           `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Price      Money     `db:"price" json:"price"`
	Stock      int       `db:"stock" json:"stock"`
	CategoryID *int64    `db:"category_id" json:"category_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ProductPatch lists the product columns to change. Nil fields keep their
// stored value.
type ProductPatch struct {
	Name       *string
	Price      *Money
	Stock      *int
	CategoryID *int64
}

// Order represents a customer order
type Order struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	TotalAmount   Money     `db:"total_amount" json:"total_amount"`
	Status        string    `db:"status" json:"status"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of an order. PriceAtPurchase is a snapshot and
// never follows later product price changes.
type OrderItem struct {
	ID              int64 `db:"id" json:"id"`
	OrderID         int64 `db:"order_id" json:"order_id"`
	ProductID       int64 `db:"product_id" json:"product_id"`
	Quantity        int   `db:"quantity" json:"quantity"`
	PriceAtPurchase Money `db:"price_at_purchase" json:"price_at_purchase"`
}

// ProductSnapshot is the product data joined onto a line item for responses
type ProductSnapshot struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// OrderItemDetails is a line item with its product joined
type OrderItemDetails struct {
	OrderItem
	Product ProductSnapshot `db:"-" json:"product"`
}

// OrderDetails is an order with its line items
type OrderDetails struct {
	Order
	Items []OrderItemDetails `json:"items"`
}

// Subtotal returns quantity × captured price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// IsValidOrderStatus reports whether s is a known order status
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValidPaymentStatus reports whether s is a known payment status
func IsValidPaymentStatus(s string) bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPaid
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusCount is the number of orders in one status
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int64  `db:"count" json:"count"`
}

// DashboardSummary aggregates order and stock figures for the admin dashboard
type DashboardSummary struct {
	TotalOrders      int64         `json:"total_orders"`
	OrdersByStatus   []StatusCount `json:"orders_by_status"`
	PaidRevenue      Money         `json:"paid_revenue"`
	UnpaidAmount     Money         `json:"unpaid_amount"`
	LowStockProducts []Product     `json:"low_stock_products"`
}
