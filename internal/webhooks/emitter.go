package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rchauhan/fraudlens/internal/alerts"
	"github.com/rchauhan/fraudlens/internal/idgen"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudlens",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudlens",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter wraps a Dispatcher to emit alert lifecycle events.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

func (e *Emitter) emit(eventType EventType, data map[string]interface{}) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.Dispatch(ctx, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook emit failed", "event", eventType, "error", err)
	}
}

// AlertCreated emits an alert.created event.
func (e *Emitter) AlertCreated(alert *alerts.Alert) {
	e.emit(EventAlertCreated, map[string]interface{}{
		"alertId":       alert.ID,
		"transactionId": alert.TransactionID,
		"accountId":     alert.AccountID,
		"amount":        alert.Amount,
		"merchant":      alert.Merchant,
		"score":         alert.Score,
		"riskLevel":     string(alert.RiskLevel),
		"status":        string(alert.Status),
	})
}

// AlertReviewed emits an alert.reviewed event.
func (e *Emitter) AlertReviewed(alert *alerts.Alert) {
	e.emit(EventAlertReviewed, map[string]interface{}{
		"alertId":       alert.ID,
		"transactionId": alert.TransactionID,
		"accountId":     alert.AccountID,
		"score":         alert.Score,
		"riskLevel":     string(alert.RiskLevel),
		"status":        string(alert.Status),
		"action":        string(alert.Action),
		"assignedTo":    alert.AssignedTo,
	})
}
