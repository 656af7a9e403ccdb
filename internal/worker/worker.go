package worker

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CacheWorker consumes order events and keeps the Redis product cache in
// step with stock changes made by checkouts on other instances.
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        store.Store
	cache        *redisclient.Client
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer *broker.Consumer, st store.Store, cache *redisclient.Client) *CacheWorker {
	w := &CacheWorker{
		consumer: consumer,
		store:    st,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderStatusChanged(w.handleStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}

// handleOrderCreated re-caches every product touched by the order so
// storefront reads see the decremented stock promptly.
func (w *CacheWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	for _, item := range event.Items {
		product, err := w.store.GetProductByID(ctx, item.ProductID)
		if err != nil {
			w.logger.Warn("Failed to reload product for cache refresh",
				zap.Int64("product_id", item.ProductID), zap.Error(err))
			continue
		}
		if err := w.cache.CacheProduct(ctx, product); err != nil {
			w.logger.Warn("Failed to refresh product cache",
				zap.Int64("product_id", item.ProductID), zap.Error(err))
		}
	}

	w.logger.Info("Product cache refreshed for order",
		zap.Int64("order_id", event.OrderID),
		zap.Int("products", len(event.Items)))
	return nil
}

func (w *CacheWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	w.logger.Info("Order status change observed",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", event.From),
		zap.String("to", event.To))
	return nil
}
