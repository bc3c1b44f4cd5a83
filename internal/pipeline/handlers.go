package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rchauhan/fraudlens/internal/fraud"
	"github.com/rchauhan/fraudlens/internal/transactions"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBatchSize     = 100
)

// Handler provides HTTP endpoints for transaction ingestion and lookup.
type Handler struct {
	processor *Processor
	store     transactions.Store
	queue     *Queue
}

// NewHandler creates a new pipeline handler.
func NewHandler(processor *Processor, store transactions.Store) *Handler {
	return &Handler{processor: processor, store: store}
}

// SetQueue wires the async ingest queue backing the batch endpoint.
func (h *Handler) SetQueue(q *Queue) {
	h.queue = q
}

// RegisterRoutes sets up transaction routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.IngestTransaction)
	r.POST("/transactions/batch", h.IngestBatch)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/:id", h.GetTransaction)
}

// IngestTransaction handles POST /transactions
func (h *Handler) IngestTransaction(c *gin.Context) {
	var txn fraud.Transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid transaction body",
		})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), &txn)
	switch {
	case errors.Is(err, ErrMissingTransactionID),
		errors.Is(err, ErrMissingAccountID),
		errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_transaction",
			"message": err.Error(),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "processing_failed",
			"message": err.Error(),
		})
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"result": result})
}

// BatchRequest carries transactions for asynchronous scoring.
type BatchRequest struct {
	Transactions []fraud.Transaction `json:"transactions" binding:"required"`
}

// IngestBatch handles POST /transactions/batch. Transactions are queued
// for background scoring; the response reports how many were accepted.
func (h *Handler) IngestBatch(c *gin.Context) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ingest_unavailable",
			"message": "Batch ingestion is not enabled",
		})
		return
	}

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid batch body",
		})
		return
	}
	if len(req.Transactions) == 0 || len(req.Transactions) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_batch",
			"message": fmt.Sprintf("Batch must contain between 1 and %d transactions", maxBatchSize),
		})
		return
	}

	accepted, dropped := 0, 0
	for i := range req.Transactions {
		txn := req.Transactions[i]
		if h.queue.Enqueue(&txn) {
			accepted++
		} else {
			dropped++
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"accepted": accepted,
		"dropped":  dropped,
	})
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := defaultListLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}

	list, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": list,
		"count":        len(list),
	})
}

// GetTransaction handles GET /transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": rec})
}
