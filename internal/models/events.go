package models

import (
	"time"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderPaid          = "ORDER_PAID"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after the placement transaction commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount Money           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published when an order moves to a new status
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    int64   `json:"order_id"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	ProductIDs []int64 `json:"product_ids,omitempty"`
}

// OrderPaidEvent published when an order is marked paid
type OrderPaidEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Amount  Money  `json:"amount"`
	Status  string `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID       int64 `json:"product_id"`
	Quantity        int   `json:"quantity"`
	PriceAtPurchase Money `json:"price_at_purchase"`
}
