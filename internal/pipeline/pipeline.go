// Package pipeline orchestrates transaction processing: validate, dedupe,
// extract features, score, persist, open alerts, and update the account
// profile. Transactions for different accounts process concurrently;
// transactions for the same account serialize on a sharded lock so the
// read-extract-write cycle over account state never interleaves.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rchauhan/fraudlens/internal/alerts"
	"github.com/rchauhan/fraudlens/internal/fraud"
	"github.com/rchauhan/fraudlens/internal/metrics"
	"github.com/rchauhan/fraudlens/internal/profile"
	"github.com/rchauhan/fraudlens/internal/retry"
	"github.com/rchauhan/fraudlens/internal/syncutil"
	"github.com/rchauhan/fraudlens/internal/traces"
	"github.com/rchauhan/fraudlens/internal/transactions"
)

var (
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrMissingAccountID     = errors.New("account id is required")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

const (
	storeMaxAttempts = 3
	storeBaseDelay   = 50 * time.Millisecond
)

// Broadcaster fans processing events out to live subscribers.
type Broadcaster interface {
	BroadcastScore(data map[string]interface{})
	BroadcastAlert(data map[string]interface{})
}

// AlertNotifier delivers alert events to external subscribers.
type AlertNotifier interface {
	AlertCreated(alert *alerts.Alert)
}

// Result is the outcome of processing one transaction.
type Result struct {
	Record    *transactions.Record `json:"record"`
	Features  fraud.FeatureVector  `json:"features"`
	Reasons   []fraud.ReasonCode   `json:"reasons"`
	Alert     *alerts.Alert        `json:"alert,omitempty"`
	Duplicate bool                 `json:"duplicate"`
}

// Processor runs the scoring pipeline.
type Processor struct {
	patterns  fraud.Patterns
	extractor *fraud.Extractor
	scorer    *fraud.Scorer
	txns      transactions.Store
	profiles  profile.Store
	alerts    *alerts.Manager
	logger    *slog.Logger

	locks   syncutil.ShardedMutex
	breaker *gobreaker.CircuitBreaker

	hub      Broadcaster
	notifier AlertNotifier
}

// NewProcessor creates a processor over the given stores and alert manager.
func NewProcessor(patterns fraud.Patterns, txns transactions.Store, profiles profile.Store, manager *alerts.Manager, logger *slog.Logger) *Processor {
	p := &Processor{
		patterns:  patterns,
		extractor: fraud.NewExtractor(patterns),
		scorer:    fraud.NewScorer(patterns),
		txns:      txns,
		profiles:  profiles,
		alerts:    manager,
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "store",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.StoreBreakerState.Set(breakerStateValue(to))
		},
	})
	return p
}

// SetBroadcaster wires the realtime hub. Optional.
func (p *Processor) SetBroadcaster(hub Broadcaster) {
	p.hub = hub
}

// SetNotifier wires the webhook emitter. Optional.
func (p *Processor) SetNotifier(n AlertNotifier) {
	p.notifier = n
}

// Patterns returns the pattern set the processor scores against.
func (p *Processor) Patterns() fraud.Patterns {
	return p.patterns
}

// Process runs one transaction through the pipeline. Replays of an
// already-processed transaction ID return the stored record with
// Duplicate set and no side effects.
func (p *Processor) Process(ctx context.Context, txn *fraud.Transaction) (*Result, error) {
	if err := p.validate(txn); err != nil {
		return nil, err
	}
	txn.Normalize()
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}

	ctx, span := traces.StartSpan(ctx, "pipeline.process",
		traces.TransactionID(txn.ID),
		traces.AccountID(txn.AccountID),
	)
	defer span.End()

	timer := time.Now()
	defer func() {
		metrics.ScoringDuration.Observe(time.Since(timer).Seconds())
	}()

	unlock := p.locks.Lock(txn.AccountID)
	defer unlock()

	// Dedupe before any side effect.
	if existing, err := p.txns.Get(ctx, txn.ID); err == nil {
		metrics.TransactionsRejectedTotal.WithLabelValues("duplicate").Inc()
		return &Result{Record: existing, Duplicate: true}, nil
	}

	history, err := p.txns.RecentByAccount(ctx, txn.AccountID, txn.Timestamp, p.patterns.VelocityWindow)
	if err != nil {
		return nil, err
	}

	var state fraud.AccountState
	prof, err := p.profiles.Get(ctx, txn.AccountID)
	switch {
	case err == nil:
		state = prof.State()
	case errors.Is(err, profile.ErrNotFound):
		prof = &profile.Profile{AccountID: txn.AccountID}
	default:
		return nil, err
	}

	features := p.extractor.Extract(txn, history, state)
	score, reasons := p.scorer.Score(txn, features)
	level := fraud.RiskLevelFor(score.Score)
	span.SetAttributes(traces.Score(score.Score), traces.RiskLevel(string(level)))

	rec := &transactions.Record{
		Transaction:   *txn,
		Score:         score.Score,
		RiskLevel:     level,
		Contributions: score.Contributions,
		ModelVersion:  score.ModelVersion,
		ProcessedAt:   time.Now().UTC(),
	}

	if err := p.writeThroughBreaker(ctx, func() error {
		err := p.txns.Insert(ctx, rec)
		if errors.Is(err, transactions.ErrDuplicate) {
			return retry.Permanent(err)
		}
		return err
	}); err != nil {
		if errors.Is(err, transactions.ErrDuplicate) {
			// Lost a race with a replay on another shard key; treat as dedupe.
			existing, getErr := p.txns.Get(ctx, txn.ID)
			if getErr == nil {
				return &Result{Record: existing, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	result := &Result{Record: rec, Features: features, Reasons: reasons}

	alert, err := p.alerts.Evaluate(ctx, txn, score, reasons)
	if err != nil {
		// The score is already durable; losing the alert is logged, not fatal.
		p.logger.Error("alert creation failed",
			"transaction_id", txn.ID, "score", score.Score, "error", err)
	} else {
		result.Alert = alert
	}

	prof.Apply(txn)
	if err := p.writeThroughBreaker(ctx, func() error {
		return p.profiles.Put(ctx, prof)
	}); err != nil {
		p.logger.Error("profile update failed", "account_id", txn.AccountID, "error", err)
	}

	p.publish(result)
	metrics.TransactionsProcessedTotal.WithLabelValues(string(level)).Inc()
	metrics.RiskScore.Observe(score.Score)
	if result.Alert != nil {
		metrics.AlertsCreatedTotal.WithLabelValues(string(level)).Inc()
	}

	p.logger.Info("transaction scored",
		"transaction_id", txn.ID,
		"account_id", txn.AccountID,
		"score", score.Score,
		"risk_level", level,
		"reasons", len(reasons),
		"alerted", result.Alert != nil,
	)
	return result, nil
}

func (p *Processor) validate(txn *fraud.Transaction) error {
	switch {
	case txn.ID == "":
		metrics.TransactionsRejectedTotal.WithLabelValues("missing_id").Inc()
		return ErrMissingTransactionID
	case txn.AccountID == "":
		metrics.TransactionsRejectedTotal.WithLabelValues("missing_account").Inc()
		return ErrMissingAccountID
	case txn.Amount <= 0:
		metrics.TransactionsRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return ErrInvalidAmount
	}
	return nil
}

// writeThroughBreaker runs a store write with bounded retries behind the
// shared circuit breaker.
func (p *Processor) writeThroughBreaker(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, storeMaxAttempts, storeBaseDelay, func() error {
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (p *Processor) publish(result *Result) {
	if p.hub != nil {
		p.hub.BroadcastScore(map[string]interface{}{
			"transactionId": result.Record.Transaction.ID,
			"accountId":     result.Record.Transaction.AccountID,
			"amount":        result.Record.Transaction.Amount,
			"score":         result.Record.Score,
			"riskLevel":     string(result.Record.RiskLevel),
		})
		if result.Alert != nil {
			p.hub.BroadcastAlert(map[string]interface{}{
				"alertId":       result.Alert.ID,
				"transactionId": result.Alert.TransactionID,
				"accountId":     result.Alert.AccountID,
				"score":         result.Alert.Score,
				"riskLevel":     string(result.Alert.RiskLevel),
			})
		}
	}
	if p.notifier != nil && result.Alert != nil {
		p.notifier.AlertCreated(result.Alert)
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
