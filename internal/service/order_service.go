package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"nursery-api/internal/models"
	"nursery-api/internal/store"
	"nursery-api/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService handles order placement and the order lifecycle
type OrderService struct {
	store          OrderStore
	eventPublisher EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency may be nil, in
// which case idempotency keys are ignored.
func NewOrderService(
	store OrderStore,
	eventPublisher EventPublisher,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// MaxItemQuantity bounds the quantity of one product in an order. It is the
// largest value the INTEGER quantity and stock columns hold.
const MaxItemQuantity = math.MaxInt32

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// PlaceOrderRequest is the body of an order placement
type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required"`
}

// normalizeItems validates the request and merges repeated product ids into
// one line, keeping the position of the first occurrence.
func normalizeItems(userID int64, items []OrderItemRequest) ([]OrderItemRequest, error) {
	if userID <= 0 {
		return nil, validationErrorf("invalid user id")
	}
	if len(items) == 0 {
		return nil, validationErrorf("order must contain at least one item")
	}

	merged := make([]OrderItemRequest, 0, len(items))
	index := make(map[int64]int, len(items))
	for i, item := range items {
		if item.ProductID <= 0 {
			return nil, validationErrorf("item %d: invalid product id %d", i, item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, validationErrorf("item %d: quantity must be a positive integer", i)
		}
		if item.Quantity > MaxItemQuantity {
			return nil, validationErrorf("item %d: quantity must not exceed %d", i, MaxItemQuantity)
		}
		if pos, ok := index[item.ProductID]; ok {
			if merged[pos].Quantity > MaxItemQuantity-item.Quantity {
				return nil, validationErrorf("product %d: total quantity must not exceed %d", item.ProductID, MaxItemQuantity)
			}
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// placeOrderTx is the body of the placement transaction. Any error it
// returns makes WithTx roll back every write it made.
func placeOrderTx(ctx context.Context, tx store.OrderTx, userID int64, lines []OrderItemRequest) (*models.OrderDetails, error) {
	total := decimal.Zero
	items := make([]models.OrderItemDetails, 0, len(lines))

	for _, line := range lines {
		product, err := tx.GetProductForUpdate(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, err
		}

		if line.Quantity > product.Stock {
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: line.Quantity,
			}
		}

		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.OrderItemDetails{
			OrderItem: models.OrderItem{
				ProductID:       product.ID,
				Quantity:        line.Quantity,
				PriceAtPurchase: product.Price,
			},
			Product: models.ProductSnapshot{ID: product.ID, Name: product.Name, Price: product.Price},
		})

		if err := tx.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
			return nil, err
		}
	}

	order := models.Order{
		UserID:        userID,
		TotalAmount:   models.NewMoney(total),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	if err := tx.CreateOrder(ctx, &order); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.CreateOrderItem(ctx, &items[i].OrderItem); err != nil {
			return nil, err
		}
	}

	return &models.OrderDetails{Order: order, Items: items}, nil
}

// PlaceOrder checks stock, decrements it and records the order with its line
// items in one transaction. Either everything commits or nothing does.
// Calling it twice with the same items places two orders.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, items []OrderItemRequest) (_ *models.OrderDetails, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer func() { util.EndSpan(span, err) }()

	lines, err := normalizeItems(userID, items)
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	start := time.Now()
	var placed *models.OrderDetails
	err = s.store.WithTx(ctx, func(tx store.OrderTx) error {
		var txErr error
		placed, txErr = placeOrderTx(ctx, tx, userID, lines)
		return txErr
	})
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		var notFound *ProductNotFoundError
		var noStock *InsufficientStockError
		switch {
		case errors.As(err, &notFound):
			util.OrdersRejectedTotal.WithLabelValues("product_not_found").Inc()
			s.logger.Info("Order rejected: product not found",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", notFound.ProductID))
			return nil, err
		case errors.As(err, &noStock):
			util.OrdersRejectedTotal.WithLabelValues("insufficient_stock").Inc()
			s.logger.Info("Order rejected: insufficient stock",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", noStock.ProductID),
				zap.Int("available", noStock.Available),
				zap.Int("requested", noStock.Requested))
			return nil, err
		}
		util.OrdersRejectedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Order placement transaction failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	util.OrderItemsPerOrder.Observe(float64(len(placed.Items)))
	s.logger.Info("Order placed",
		zap.Int64("order_id", placed.ID),
		zap.Int64("user_id", userID),
		zap.String("total_amount", placed.TotalAmount.StringFixed(2)))

	s.publishOrderPlaced(ctx, placed)

	details, err := s.store.GetOrderDetails(ctx, placed.ID)
	if err != nil {
		s.logger.Warn("Failed to reload placed order, answering from transaction data",
			zap.Int64("order_id", placed.ID),
			zap.Error(err))
		return placed, nil
	}
	return details, nil
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.OrderDetails) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderPlaced).Inc()
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// GetOrder retrieves an order with its items. Non-admin callers only see
// their own orders.
func (s *OrderService) GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*models.OrderDetails, error) {
	details, err := s.store.GetOrderDetails(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if !isAdmin && details.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return details, nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.store.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
