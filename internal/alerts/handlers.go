package alerts

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler provides HTTP endpoints for the alert queue.
type Handler struct {
	manager *Manager

	// onReviewed, when set, is called after a successful review so the
	// server can fan the event out (websocket, webhooks).
	onReviewed func(*Alert)

	// txnCount, when set, supplies the ledger size for stats alertRate.
	txnCount func(ctx context.Context) (int, error)
}

// NewHandler creates a new alerts handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// OnReviewed registers a callback invoked after each successful review.
func (h *Handler) OnReviewed(fn func(*Alert)) {
	h.onReviewed = fn
}

// SetTransactionCounter wires the transaction ledger size into GetStats.
func (h *Handler) SetTransactionCounter(fn func(ctx context.Context) (int, error)) {
	h.txnCount = fn
}

// RegisterRoutes sets up alert routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.ListAlerts)
	r.GET("/alerts/:id", h.GetAlert)
	r.PUT("/alerts/:id", h.ReviewAlert)
	r.GET("/stats", h.GetStats)
}

// ListAlerts handles GET /alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	limit := defaultListLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}
	filter := Filter(c.DefaultQuery("filter", string(FilterAll)))
	search := c.Query("search")

	list, err := h.manager.List(c.Request.Context(), filter, search, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"count":  len(list),
	})
}

// GetAlert handles GET /alerts/:id
func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.manager.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Alert not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// ReviewRequest carries a reviewer verdict.
type ReviewRequest struct {
	Action     Action `json:"action" binding:"required"`
	AssignedTo string `json:"assignedTo"`
	Comments   string `json:"comments"`
}

// ReviewAlert handles PUT /alerts/:id
func (h *Handler) ReviewAlert(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	alert, err := h.manager.Review(c.Request.Context(), c.Param("id"), req.Action, req.AssignedTo, req.Comments)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Alert not found",
		})
		return
	case errors.Is(err, ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_reviewed",
			"message": "Alert has already been reviewed",
		})
		return
	case errors.Is(err, ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_action",
			"message": "Action must be APPROVED, BLOCKED, or ESCALATED",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "review_failed",
			"message": err.Error(),
		})
		return
	}

	if h.onReviewed != nil {
		h.onReviewed(alert)
	}

	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// GetStats handles GET /stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.manager.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "stats_failed",
			"message": err.Error(),
		})
		return
	}

	if h.txnCount != nil {
		if n, err := h.txnCount(c.Request.Context()); err == nil {
			stats.TotalTransactions = n
			if n > 0 {
				stats.AlertRate = roundScore(float64(stats.Total) / float64(n))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
