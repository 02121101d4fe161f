package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

type setStockRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type adjustStockRequest struct {
	Delta *int `json:"delta" binding:"required"`
}

type releaseExpiredRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// setStock handles absolute stock updates
func (h *Handler) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	stock, err := h.stock.SetStock(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"), *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// adjustStock handles relative stock updates
func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	stock, err := h.stock.AdjustStock(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"), *req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) getStock(c *gin.Context) {
	stock, err := h.stock.GetStock(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) getTotalStock(c *gin.Context) {
	total, err := h.stock.GetTotalStock(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, total)
}

func (h *Handler) getAvailability(c *gin.Context) {
	avail, err := h.reservations.GetAvailableStock(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

func (h *Handler) getActiveReservations(c *gin.Context) {
	reservations, err := h.reservations.GetActiveReservationsByProductAndWarehouse(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

func (h *Handler) createTransaction(c *gin.Context) {
	var req service.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	txn, err := h.transactions.CreateTransaction(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *Handler) getTransactionsByProduct(c *gin.Context) {
	txns, err := h.transactions.GetTransactionsByProduct(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *Handler) getTransactionsByWarehouse(c *gin.Context) {
	txns, err := h.transactions.GetTransactionsByWarehouse(c.Request.Context(), c.Param("warehouseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *Handler) getTransactionsByKey(c *gin.Context) {
	txns, err := h.transactions.GetTransactionsByProductAndWarehouse(c.Request.Context(), c.Param("productId"), c.Param("warehouseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

func (h *Handler) createReservation(c *gin.Context) {
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reservation, err := h.reservations.CreateReservation(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

func (h *Handler) getReservation(c *gin.Context) {
	reservation, err := h.reservations.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *Handler) consumeReservation(c *gin.Context) {
	reservation, err := h.reservations.ConsumeReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *Handler) releaseReservation(c *gin.Context) {
	reservation, err := h.reservations.ReleaseReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// releaseExpiredReservations releases reservations expired at the given
// instant, defaulting to the current time when the body is empty
func (h *Handler) releaseExpiredReservations(c *gin.Context) {
	var req releaseExpiredRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	now := time.Now().UTC()
	if req.Now != nil {
		now = *req.Now
	}

	released, err := h.reservations.ReleaseExpiredReservations(c.Request.Context(), now)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

func (h *Handler) getReservationsByReference(c *gin.Context) {
	reservations, err := h.reservations.GetReservationsByReference(c.Request.Context(), c.Param("referenceId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

func (h *Handler) releaseReservationsByReference(c *gin.Context) {
	released, err := h.reservations.ReleaseReservationsByReference(c.Request.Context(), c.Param("referenceId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}
