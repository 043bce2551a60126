package service

import (
	"context"
	"errors"
	"testing"

	"nursery-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeTestOrder(t *testing.T, svc *OrderService, userID int64) *models.OrderDetails {
	t.Helper()
	order, err := svc.PlaceOrder(context.Background(), userID, []OrderItemRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	return order
}

func newStatusFixture() *memStore {
	st := newMemStore()
	st.addProduct(1, "Peace Lily", "12.00", 10)
	st.addProduct(2, "Watering Can", "9.00", 5)
	return st
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	st := newStatusFixture()
	svc, pub := newTestOrderService(st)
	order := placeTestOrder(t, svc, 1)
	ctx := context.Background()

	for _, status := range []string{models.OrderStatusConfirmed, models.OrderStatusShipped, models.OrderStatusDelivered} {
		updated, err := svc.UpdateStatus(ctx, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
	assert.Len(t, pub.statusChanged, 3)
	assert.Equal(t, 8, st.stock(1))
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []string
		to   string
	}{
		{"pending to shipped", nil, models.OrderStatusShipped},
		{"pending to delivered", nil, models.OrderStatusDelivered},
		{"confirmed to cancelled", []string{models.OrderStatusConfirmed}, models.OrderStatusCancelled},
		{"confirmed to pending", []string{models.OrderStatusConfirmed}, models.OrderStatusPending},
		{"shipped to cancelled", []string{models.OrderStatusConfirmed, models.OrderStatusShipped}, models.OrderStatusCancelled},
		{"cancelled to confirmed", []string{models.OrderStatusCancelled}, models.OrderStatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStatusFixture()
			svc, _ := newTestOrderService(st)
			order := placeTestOrder(t, svc, 1)
			ctx := context.Background()

			for _, step := range tt.path {
				_, err := svc.UpdateStatus(ctx, order.ID, step)
				require.NoError(t, err)
			}

			_, err := svc.UpdateStatus(ctx, order.ID, tt.to)
			var invalid *InvalidTransitionError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, tt.to, invalid.To)
		})
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	st := newStatusFixture()
	svc, _ := newTestOrderService(st)
	order := placeTestOrder(t, svc, 1)

	_, err := svc.UpdateStatus(context.Background(), order.ID, "lost")

	var invalid *ValidationError
	assert.True(t, errors.As(err, &invalid))
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	svc, _ := newTestOrderService(newStatusFixture())

	_, err := svc.UpdateStatus(context.Background(), 77, models.OrderStatusConfirmed)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	st := newStatusFixture()
	svc, pub := newTestOrderService(st)
	order := placeTestOrder(t, svc, 1)
	require.Equal(t, 8, st.stock(1))
	require.Equal(t, 4, st.stock(2))

	cancelled, err := svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, st.stock(1))
	assert.Equal(t, 5, st.stock(2))

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, st.stock(1))

	require.Len(t, pub.statusChanged, 1)
	assert.ElementsMatch(t, []int64{1, 2}, pub.statusChanged[0].ProductIDs)
}

func TestCancelOrderByCustomer(t *testing.T) {
	st := newStatusFixture()
	svc, _ := newTestOrderService(st)
	order := placeTestOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.CancelOrder(ctx, 2, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 8, st.stock(1))

	cancelled, err := svc.CancelOrder(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, st.stock(1))

	_, err = svc.CancelOrder(ctx, 1, order.ID)
	var invalid *InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, 10, st.stock(1))
}

func TestCancelOrderOnlyWhilePending(t *testing.T) {
	st := newStatusFixture()
	svc, _ := newTestOrderService(st)
	order := placeTestOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, 1, order.ID)
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, models.OrderStatusConfirmed, invalid.From)
	assert.Equal(t, 8, st.stock(1))
}

func TestUpdatePaymentConfirmsPendingOrder(t *testing.T) {
	st := newStatusFixture()
	orders, _ := newTestOrderService(st)
	pub := &recordingPublisher{}
	payments := NewPaymentService(st, pub)
	order := placeTestOrder(t, orders, 1)

	paid, err := payments.UpdatePayment(context.Background(), order.ID, models.PaymentStatusPaid)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, paid.Status)
	require.Len(t, pub.paid, 1)
	assert.True(t, order.TotalAmount.Equal(pub.paid[0].Amount.Decimal))

	again, err := payments.UpdatePayment(context.Background(), order.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, again.PaymentStatus)
	assert.Len(t, pub.paid, 1)
}

func TestUpdatePaymentKeepsLaterStatus(t *testing.T) {
	st := newStatusFixture()
	orders, _ := newTestOrderService(st)
	payments := NewPaymentService(st, &recordingPublisher{})
	order := placeTestOrder(t, orders, 1)
	ctx := context.Background()

	_, err := orders.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = orders.UpdateStatus(ctx, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	paid, err := payments.UpdatePayment(ctx, order.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, paid.Status)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
}

func TestUpdatePaymentRejections(t *testing.T) {
	st := newStatusFixture()
	orders, _ := newTestOrderService(st)
	payments := NewPaymentService(st, &recordingPublisher{})
	ctx := context.Background()

	cancelled := placeTestOrder(t, orders, 1)
	_, err := orders.CancelOrder(ctx, 1, cancelled.ID)
	require.NoError(t, err)
	_, err = payments.UpdatePayment(ctx, cancelled.ID, models.PaymentStatusPaid)
	var invalid *InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))

	paid := placeTestOrder(t, orders, 1)
	_, err = payments.UpdatePayment(ctx, paid.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	_, err = payments.UpdatePayment(ctx, paid.ID, models.PaymentStatusUnpaid)
	assert.True(t, errors.As(err, &invalid))

	_, err = payments.UpdatePayment(ctx, paid.ID, "refunded")
	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = payments.UpdatePayment(ctx, 999, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
