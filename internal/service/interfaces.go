package service

import (
	"context"
	"time"

	"nursery-api/internal/models"
	"nursery-api/internal/store"
)

// OrderStore is the persistence the order operations need. *store.Store
// implements it.
type OrderStore interface {
	WithTx(ctx context.Context, fn func(tx store.OrderTx) error) error
	GetOrderDetails(ctx context.Context, id int64) (*models.OrderDetails, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// ProductStore is the catalog persistence
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID *int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

// DashboardStore serves the accounting aggregates
type DashboardStore interface {
	GetDashboardSummary(ctx context.Context, lowStockThreshold int) (*models.DashboardSummary, error)
}

// EventStore records consumed events so redeliveries are skipped
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// EventPublisher emits order events. *broker.EventPublisher implements it.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}

// IdempotencyStore remembers which order an idempotency key produced.
// *redisclient.Client implements it.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	GetIdempotencyKey(ctx context.Context, key string) (orderID int64, pending, found bool, err error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// ProductCache is a read-through cache for single products.
// *redisclient.Client implements it.
type ProductCache interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context, productIDs ...int64) error
}
