package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	stock        *service.StockService
	reservations *service.ReservationService
	transactions *service.TransactionService
	orders       *service.OrderService
	dependencies map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	stock *service.StockService,
	reservations *service.ReservationService,
	transactions *service.TransactionService,
	orders *service.OrderService,
	dependencies map[string]Pinger,
) *Handler {
	return &Handler{
		stock:        stock,
		reservations: reservations,
		transactions: transactions,
		orders:       orders,
		dependencies: dependencies,
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
		products := v1.Group("/products/:productId")
		products.GET("/stock", h.getTotalStock)
		products.GET("/transactions", h.getTransactionsByProduct)

		key := products.Group("/warehouses/:warehouseId")
		key.PUT("/stock", h.setStock)
		key.POST("/stock/adjust", h.adjustStock)
		key.GET("/stock", h.getStock)
		key.GET("/availability", h.getAvailability)
		key.GET("/reservations", h.getActiveReservations)
		key.GET("/transactions", h.getTransactionsByKey)

		v1.GET("/warehouses/:warehouseId/transactions", h.getTransactionsByWarehouse)
		v1.POST("/transactions", h.createTransaction)

		v1.POST("/reservations", h.createReservation)
		v1.POST("/reservations/release-expired", h.releaseExpiredReservations)
		v1.GET("/reservations/:id", h.getReservation)
		v1.POST("/reservations/:id/consume", h.consumeReservation)
		v1.POST("/reservations/:id/release", h.releaseReservation)

		v1.GET("/references/:referenceId/reservations", h.getReservationsByReference)
		v1.POST("/references/:referenceId/reservations/release", h.releaseReservationsByReference)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/pay", h.payOrder)
		v1.POST("/orders/:id/ship", h.shipOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/complete", h.completeOrder)
		v1.POST("/orders/:id/returns", h.returnOrderItems)
		v1.GET("/customers/:customerId/orders", h.getOrdersByCustomer)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
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
