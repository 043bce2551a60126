package service

import (
	"context"
	"errors"
	"fmt"

	"nursery-api/internal/models"
	"nursery-api/internal/store"
	"nursery-api/internal/util"

	"go.uber.org/zap"
)

// statusChange is the outcome of a committed status transition
type statusChange struct {
	from      string
	to        string
	restocked []models.OrderItem
	unchanged bool
}

// UpdateStatus moves an order along its lifecycle. Cancelling returns the
// order's units to stock inside the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (_ *models.OrderDetails, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer func() { util.EndSpan(span, err) }()

	if !models.IsValidOrderStatus(status) {
		return nil, validationErrorf("unknown order status %q", status)
	}

	return s.transition(ctx, orderID, status, func(order *models.Order) error { return nil })
}

// CancelOrder lets a customer cancel their own pending order
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) (_ *models.OrderDetails, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer func() { util.EndSpan(span, err) }()

	return s.transition(ctx, orderID, models.OrderStatusCancelled, func(order *models.Order) error {
		if order.UserID != userID {
			return ErrOrderNotFound
		}
		if order.Status != models.OrderStatusPending {
			return &InvalidTransitionError{From: order.Status, To: models.OrderStatusCancelled}
		}
		return nil
	})
}

func (s *OrderService) transition(ctx context.Context, orderID int64, to string, check func(*models.Order) error) (*models.OrderDetails, error) {
	var change statusChange
	err := s.store.WithTx(ctx, func(tx store.OrderTx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if err := check(order); err != nil {
			return err
		}

		change = statusChange{from: order.Status, to: to}
		if order.Status == to {
			change.unchanged = true
			return nil
		}
		if !models.CanTransition(order.Status, to) {
			return &InvalidTransitionError{From: order.Status, To: to}
		}

		if to == models.OrderStatusCancelled {
			items, err := tx.GetOrderItems(ctx, orderID)
			if err != nil {
				return fmt.Errorf("failed to load order items: %w", err)
			}
			for _, item := range items {
				if err := tx.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			change.restocked = items
		}

		return tx.UpdateOrderStatus(ctx, orderID, to)
	})
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.As(err, &invalid) {
			return nil, err
		}
		s.logger.Error("Order status transaction failed",
			zap.Int64("order_id", orderID),
			zap.String("to", to),
			zap.Error(err))
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if !change.unchanged {
		s.recordStatusChange(ctx, orderID, change)
	}

	details, err := s.store.GetOrderDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order %d: %w", orderID, err)
	}
	return details, nil
}

func (s *OrderService) recordStatusChange(ctx context.Context, orderID int64, change statusChange) {
	util.OrderStatusTransitionsTotal.WithLabelValues(change.from, change.to).Inc()

	productIDs := make([]int64, 0, len(change.restocked))
	units := 0
	for _, item := range change.restocked {
		productIDs = append(productIDs, item.ProductID)
		units += item.Quantity
	}
	if units > 0 {
		util.UnitsRestockedTotal.Add(float64(units))
	}

	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", change.from),
		zap.String("to", change.to),
		zap.Int("units_restocked", units))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    orderID,
		FromStatus: change.from,
		ToStatus:   change.to,
		ProductIDs: productIDs,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderStatusChanged).Inc()
		s.logger.Error("Failed to publish OrderStatusChanged event",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}
