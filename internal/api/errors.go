package api

import (
	"errors"
	"net/http"

	"nursery-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		noStock    *service.InsufficientStockError
		invalid    *service.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &noStock):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      noStock.Error(),
			"product_id": noStock.ProductID,
			"available":  noStock.Available,
			"requested":  noStock.Requested,
		})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
	case errors.Is(err, service.ErrRequestInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
