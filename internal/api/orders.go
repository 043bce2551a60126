package api

import (
	"net/http"

	"nursery-api/internal/service"

	"github.com/gin-gonic/gin"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// createOrder handles order placement. A repeated Idempotency-Key replays
// the original order with 200.
func (h *Handler) createOrder(c *gin.Context) {
	var req service.PlaceOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userID := currentUserID(c)
	key := c.GetHeader("Idempotency-Key")

	if key == "" {
		order, err := h.orders.PlaceOrder(c.Request.Context(), userID, req.Items)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
		return
	}

	order, replayed, err := h.orders.PlaceOrderOnce(c.Request.Context(), userID, key, req.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if replayed {
		c.JSON(http.StatusOK, order)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), currentUserID(c), isAdmin(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), currentUserID(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderPayment(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.payments.UpdatePayment(c.Request.Context(), orderID, req.PaymentStatus)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
