// Package alerts manages the reviewer-facing alert queue. Alerts are created
// by the scoring pipeline when a transaction's score crosses the alert
// threshold, start PENDING, and move exactly once to a terminal reviewer
// verdict (APPROVED, BLOCKED, or ESCALATED).
package alerts

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rchauhan/fraudlens/internal/fraud"
	"github.com/rchauhan/fraudlens/internal/idgen"
)

var (
	ErrNotFound        = errors.New("alert not found")
	ErrAlreadyReviewed = errors.New("alert already reviewed")
	ErrInvalidAction   = errors.New("invalid review action")
)

// Status tracks alert lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusBlocked   Status = "BLOCKED"
	StatusEscalated Status = "ESCALATED"
)

// Action is a reviewer verdict on a pending alert. The vocabulary matches
// the terminal statuses the verdict produces.
type Action string

const (
	ActionApprove  Action = "APPROVED"
	ActionBlock    Action = "BLOCKED"
	ActionEscalate Action = "ESCALATED"
)

// statusFor maps a reviewer action to its terminal status.
func statusFor(action Action) (Status, bool) {
	switch action {
	case ActionApprove:
		return StatusApproved, true
	case ActionBlock:
		return StatusBlocked, true
	case ActionEscalate:
		return StatusEscalated, true
	default:
		return "", false
	}
}

// Alert is a review case for one suspicious transaction.
type Alert struct {
	ID            string             `json:"id"`
	TransactionID string             `json:"transactionId"`
	AccountID     string             `json:"accountId"`
	Amount        float64            `json:"amount"`
	Merchant      string             `json:"merchant"`
	Score         float64            `json:"score"`
	RiskLevel     fraud.RiskLevel    `json:"riskLevel"`
	Reasons       []fraud.ReasonCode `json:"reasons"`
	Status        Status             `json:"status"`
	Action        Action             `json:"action,omitempty"`
	AssignedTo    string             `json:"assignedTo,omitempty"`
	Comments      string             `json:"comments,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	ReviewedAt    *time.Time         `json:"reviewedAt,omitempty"`
}

// Reviewed reports whether the alert has reached a terminal status.
func (a *Alert) Reviewed() bool {
	return a.Status != StatusPending
}

// Filter selects alerts for listing. A zero Filter matches everything.
type Filter string

const (
	FilterAll      Filter = "ALL"
	FilterPending  Filter = "PENDING"
	FilterReviewed Filter = "REVIEWED"
	FilterHigh     Filter = "HIGH"
	FilterCritical Filter = "CRITICAL"
)

// Matches reports whether the alert passes the filter.
func (f Filter) Matches(a *Alert) bool {
	switch f {
	case "", FilterAll:
		return true
	case FilterPending:
		return a.Status == StatusPending
	case FilterReviewed:
		return a.Status != StatusPending
	case FilterHigh:
		return a.RiskLevel == fraud.RiskHigh
	case FilterCritical:
		return a.RiskLevel == fraud.RiskCritical
	default:
		return false
	}
}

// Stats is the aggregate view over the alert queue. TotalTransactions and
// AlertRate are filled in at the API layer from the transaction ledger.
type Stats struct {
	Total             int     `json:"total"`
	Pending           int     `json:"pending"`
	Approved          int     `json:"approved"`
	Blocked           int     `json:"blocked"`
	Escalated         int     `json:"escalated"`
	Critical          int     `json:"critical"`
	High              int     `json:"high"`
	BlockedAmount     float64 `json:"blockedAmount"`
	AvgScore          float64 `json:"avgScore"`
	TotalTransactions int     `json:"totalTransactions"`
	AlertRate         float64 `json:"alertRate"`
}

// Store persists alerts.
type Store interface {
	Create(ctx context.Context, a *Alert) error
	Get(ctx context.Context, id string) (*Alert, error)

	// List returns matching alerts, newest first, up to limit.
	List(ctx context.Context, filter Filter, limit int) ([]*Alert, error)

	// Update persists a reviewed alert. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, a *Alert) error

	Stats(ctx context.Context) (*Stats, error)
	DeleteAll(ctx context.Context) error
}

// Manager drives alert creation and the review state machine.
type Manager struct {
	store     Store
	threshold float64
}

// NewManager creates an alert manager. Transactions scoring at or above
// threshold with level MEDIUM or higher open an alert.
func NewManager(store Store, threshold float64) *Manager {
	return &Manager{store: store, threshold: threshold}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Threshold returns the configured alert threshold.
func (m *Manager) Threshold() float64 {
	return m.threshold
}

// Evaluate opens an alert for the scored transaction if it qualifies.
// Returns nil with no error when the transaction does not alert.
func (m *Manager) Evaluate(ctx context.Context, txn *fraud.Transaction, result fraud.ScoreResult, reasons []fraud.ReasonCode) (*Alert, error) {
	level := fraud.RiskLevelFor(result.Score)
	if result.Score < m.threshold || level == fraud.RiskLow {
		return nil, nil
	}

	alert := &Alert{
		ID:            idgen.WithPrefix("alt_"),
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Amount:        txn.Amount,
		Merchant:      txn.Merchant,
		Score:         result.Score,
		RiskLevel:     level,
		Reasons:       reasons,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.Create(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Review applies a reviewer verdict to a pending alert. Terminal states
// reject further transitions with ErrAlreadyReviewed.
func (m *Manager) Review(ctx context.Context, id string, action Action, assignedTo, comments string) (*Alert, error) {
	status, ok := statusFor(action)
	if !ok {
		return nil, ErrInvalidAction
	}

	alert, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Reviewed() {
		return nil, ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	alert.Status = status
	alert.Action = action
	alert.AssignedTo = assignedTo
	alert.Comments = comments
	alert.ReviewedAt = &now

	if err := m.store.Update(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// maxSearchScan bounds how many alerts a free-text search scans.
const maxSearchScan = 500

// List returns filtered alerts, newest first. A non-empty search narrows the
// result to alerts whose transaction ID, account ID, or merchant contains the
// term, case-insensitive.
func (m *Manager) List(ctx context.Context, filter Filter, search string, limit int) ([]*Alert, error) {
	if search == "" {
		return m.store.List(ctx, filter, limit)
	}

	candidates, err := m.store.List(ctx, filter, maxSearchScan)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(search)
	matched := make([]*Alert, 0, limit)
	for _, a := range candidates {
		if strings.Contains(strings.ToLower(a.TransactionID), term) ||
			strings.Contains(strings.ToLower(a.AccountID), term) ||
			strings.Contains(strings.ToLower(a.Merchant), term) {
			matched = append(matched, a)
			if len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}

// Stats aggregates the current alert queue.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	return m.store.Stats(ctx)
}

// roundScore keeps aggregate scores at 3 decimals like individual scores.
func roundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}
