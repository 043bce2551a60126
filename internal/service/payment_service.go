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

// PaymentService records payment status changes on orders
type PaymentService struct {
	store          OrderStore
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store OrderStore, eventPublisher EventPublisher) *PaymentService {
	return &PaymentService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// UpdatePayment sets an order's payment status. Only unpaid to paid is
// allowed; paying a pending order also confirms it.
func (ps *PaymentService) UpdatePayment(ctx context.Context, orderID int64, paymentStatus string) (_ *models.OrderDetails, err error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.UpdatePayment")
	defer func() { util.EndSpan(span, err) }()

	if !models.IsValidPaymentStatus(paymentStatus) {
		return nil, validationErrorf("unknown payment status %q", paymentStatus)
	}

	var (
		paid    *models.Order
		changed bool
	)
	err = ps.store.WithTx(ctx, func(tx store.OrderTx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if order.PaymentStatus == paymentStatus {
			return nil
		}
		if paymentStatus != models.PaymentStatusPaid {
			return &InvalidTransitionError{From: order.PaymentStatus, To: paymentStatus}
		}
		if order.Status == models.OrderStatusCancelled {
			return &InvalidTransitionError{From: order.Status, To: models.PaymentStatusPaid}
		}

		status := order.Status
		if status == models.OrderStatusPending {
			status = models.OrderStatusConfirmed
		}
		if err := tx.UpdateOrderPayment(ctx, orderID, models.PaymentStatusPaid, status); err != nil {
			return err
		}

		order.PaymentStatus = models.PaymentStatusPaid
		order.Status = status
		paid = order
		changed = true
		return nil
	})
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.As(err, &invalid) {
			return nil, err
		}
		ps.logger.Error("Payment update transaction failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	if changed {
		util.OrdersPaidTotal.Inc()
		ps.logger.Info("Order paid",
			zap.Int64("order_id", orderID),
			zap.String("status", paid.Status))

		event := &models.OrderPaidEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderPaid),
			OrderID:   orderID,
			Amount:    paid.TotalAmount,
			Status:    paid.Status,
		}
		if err := ps.eventPublisher.PublishOrderPaid(ctx, event); err != nil {
			util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderPaid).Inc()
			ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
		}
	}

	details, err := ps.store.GetOrderDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order %d: %w", orderID, err)
	}
	return details, nil
}
