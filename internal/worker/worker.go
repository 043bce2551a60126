package worker

import (
	"context"

	"nursery-api/internal/broker"
	"nursery-api/internal/service"
	"nursery-api/internal/util"

	"go.uber.org/zap"
)

// CatalogWorker consumes order events and keeps the product cache fresh
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(
	consumer *broker.Consumer,
	invalidator *service.CacheInvalidator,
) *CatalogWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderPlaced(invalidator.HandleOrderPlaced)
	eventHandler.OnOrderStatusChanged(invalidator.HandleOrderStatusChanged)

	return &CatalogWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}
