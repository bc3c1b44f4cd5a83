// Package transactions is the immutable transaction ledger. Insert is
// idempotent on transaction ID so replays and at-least-once delivery never
// produce duplicate rows, and RecentByAccount serves the extractor's
// velocity-window query.
package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

var (
	// ErrDuplicate is returned when a transaction ID has already been stored.
	ErrDuplicate = errors.New("transaction already exists")

	// ErrNotFound is returned when no transaction matches the given ID.
	ErrNotFound = errors.New("transaction not found")
)

// Record is a stored transaction together with its scoring outcome.
type Record struct {
	Transaction   fraud.Transaction  `json:"transaction"`
	Score         float64            `json:"score"`
	RiskLevel     fraud.RiskLevel    `json:"riskLevel"`
	Contributions map[string]float64 `json:"contributions,omitempty"`
	ModelVersion  string             `json:"modelVersion"`
	ProcessedAt   time.Time          `json:"processedAt"`
}

// Stats is the aggregate view over the ledger.
type Stats struct {
	Total    int                     `json:"total"`
	AvgScore float64                 `json:"avgScore"`
	ByLevel  map[fraud.RiskLevel]int `json:"byLevel"`
}

// Store persists scored transactions.
type Store interface {
	// Insert stores a scored transaction. Returns ErrDuplicate if the
	// transaction ID is already present.
	Insert(ctx context.Context, rec *Record) error

	// Get returns one record by transaction ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// RecentByAccount returns the account's transactions with timestamps in
	// (before-window, before], oldest first. This is the velocity-window
	// query: callers pass the incoming transaction's timestamp as before.
	RecentByAccount(ctx context.Context, accountID string, before time.Time, window time.Duration) ([]*fraud.Transaction, error)

	// List returns the most recent records, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Stats aggregates counts and the mean score over all records.
	Stats(ctx context.Context) (*Stats, error)

	// DeleteAll wipes the ledger. Admin-only.
	DeleteAll(ctx context.Context) error
}
