package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"nursery-api/internal/models"
	"nursery-api/internal/service"
	"nursery-api/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is the order side of the service layer
type OrderAPI interface {
	PlaceOrder(ctx context.Context, userID int64, items []service.OrderItemRequest) (*models.OrderDetails, error)
	PlaceOrderOnce(ctx context.Context, userID int64, key string, items []service.OrderItemRequest) (*models.OrderDetails, bool, error)
	GetOrder(ctx context.Context, userID int64, isAdmin bool, orderID int64) (*models.OrderDetails, error)
	ListOrders(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*models.OrderDetails, error)
	CancelOrder(ctx context.Context, userID, orderID int64) (*models.OrderDetails, error)
}

type PaymentAPI interface {
	UpdatePayment(ctx context.Context, orderID int64, paymentStatus string) (*models.OrderDetails, error)
}

type ProductAPI interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID *int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, req *service.CreateProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *service.UpdateProductRequest) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, req *service.CreateCategoryRequest) (*models.Category, error)
}

type DashboardAPI interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderAPI
	payments  PaymentAPI
	products  ProductAPI
	dashboard DashboardAPI
	db        Pinger
	jwtSecret []byte
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders OrderAPI,
	payments PaymentAPI,
	products ProductAPI,
	dashboard DashboardAPI,
	db Pinger,
	jwtSecret string,
) *Handler {
	return &Handler{
		orders:    orders,
		payments:  payments,
		products:  products,
		dashboard: dashboard,
		db:        db,
		jwtSecret: []byte(jwtSecret),
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.listCategories)
	}

	authed := v1.Group("", h.authMiddleware())
	{
		authed.POST("/orders", h.createOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.POST("/orders/:id/cancel", h.cancelOrder)
	}

	admin := authed.Group("/admin", requireAdmin())
	{
		admin.POST("/categories", h.createCategory)
		admin.POST("/products", h.createProduct)
		admin.PATCH("/products/:id", h.updateProduct)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		admin.PATCH("/orders/:id/payment", h.updateOrderPayment)
		admin.GET("/dashboard", h.getDashboard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getDashboard(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid id",
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
