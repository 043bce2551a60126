package service

import (
	"context"
	"fmt"

	"nursery-api/internal/models"
	"nursery-api/internal/util"

	"go.uber.org/zap"
)

// PlaceOrderOnce places an order at most once per (user, key). A replay of a
// completed key returns the stored order with replayed set to true. An empty
// key falls through to PlaceOrder.
func (s *OrderService) PlaceOrderOnce(ctx context.Context, userID int64, key string, items []OrderItemRequest) (details *models.OrderDetails, replayed bool, err error) {
	if key == "" || s.idempotency == nil {
		details, err = s.PlaceOrder(ctx, userID, items)
		return details, false, err
	}

	scoped := fmt.Sprintf("%d:%s", userID, key)

	claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, scoped, s.idempotencyTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if !claimed {
		orderID, pending, found, err := s.idempotency.GetIdempotencyKey(ctx, scoped)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if pending || !found {
			return nil, false, ErrRequestInProgress
		}

		util.IdempotentReplaysTotal.Inc()
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", orderID))

		details, err := s.store.GetOrderDetails(ctx, orderID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load replayed order %d: %w", orderID, err)
		}
		return details, true, nil
	}

	details, err = s.PlaceOrder(ctx, userID, items)
	if err != nil {
		if relErr := s.idempotency.ReleaseIdempotencyKey(ctx, scoped); relErr != nil {
			s.logger.Warn("Failed to release idempotency key",
				zap.String("idempotency_key", key),
				zap.Error(relErr))
		}
		return nil, false, err
	}

	if err := s.idempotency.CompleteIdempotencyKey(ctx, scoped, details.ID, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to record idempotency key",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", details.ID),
			zap.Error(err))
	}
	return details, false, nil
}
