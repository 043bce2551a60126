package service

import (
	"context"
	"fmt"

	"nursery-api/internal/models"
	"nursery-api/internal/util"

	"go.uber.org/zap"
)

// CacheInvalidator keeps the product cache in step with stock changes made
// by orders. It consumes order events, so it also sees changes made by other
// instances of the service.
type CacheInvalidator struct {
	events   EventStore
	products *ProductService
	logger   *zap.Logger
}

// NewCacheInvalidator creates a new cache invalidator
func NewCacheInvalidator(events EventStore, products *ProductService) *CacheInvalidator {
	return &CacheInvalidator{
		events:   events,
		products: products,
		logger:   util.GetLogger(),
	}
}

// HandleOrderPlaced drops cached copies of every product in the order
func (ci *CacheInvalidator) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ids := make([]int64, 0, len(event.Items))
	for _, item := range event.Items {
		ids = append(ids, item.ProductID)
	}
	return ci.handle(ctx, event.BaseEvent, event.OrderID, ids)
}

// HandleOrderStatusChanged drops cached copies of products restocked by a cancellation
func (ci *CacheInvalidator) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	if event.ToStatus != models.OrderStatusCancelled {
		return nil
	}
	return ci.handle(ctx, event.BaseEvent, event.OrderID, event.ProductIDs)
}

func (ci *CacheInvalidator) handle(ctx context.Context, base models.BaseEvent, orderID int64, productIDs []int64) error {
	ctx, span := util.StartSpan(ctx, "CacheInvalidator.handle")
	defer span.End()

	processed, err := ci.events.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ci.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	ci.products.InvalidateProducts(ctx, productIDs...)

	if err := ci.events.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		ci.logger.Error("Failed to mark event processed", zap.String("event_id", base.EventID), zap.Error(err))
	}

	ci.logger.Debug("Product cache invalidated",
		zap.Int64("order_id", orderID),
		zap.Int64s("product_ids", productIDs))
	return nil
}
