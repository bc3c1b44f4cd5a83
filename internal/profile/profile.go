// Package profile maintains per-account rolling state: transaction count,
// total volume, running average amount, and the last known location. The
// pipeline reads the profile before scoring and writes it back after, so the
// profile a transaction is scored against never includes that transaction.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// ErrNotFound is returned when no profile exists for an account.
var ErrNotFound = errors.New("profile not found")

// Profile is the rolling state for one account. Updated last-write-wins,
// exactly once per processed transaction.
type Profile struct {
	AccountID        string          `json:"accountId"`
	TransactionCount int             `json:"transactionCount"`
	TotalAmount      float64         `json:"totalAmount"`
	AvgAmount        float64         `json:"avgAmount"`
	LastLocation     *fraud.Location `json:"lastLocation,omitempty"`
	LastSeen         time.Time       `json:"lastSeen"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Apply folds a processed transaction into the profile.
func (p *Profile) Apply(txn *fraud.Transaction) {
	p.TransactionCount++
	p.TotalAmount += txn.Amount
	p.AvgAmount = p.TotalAmount / float64(p.TransactionCount)
	loc := txn.Location
	p.LastLocation = &loc
	p.LastSeen = txn.Timestamp
	p.UpdatedAt = time.Now().UTC()
}

// State projects the profile into the extractor's view of the account.
func (p *Profile) State() fraud.AccountState {
	if p == nil {
		return fraud.AccountState{}
	}
	return fraud.AccountState{
		LastLocation: p.LastLocation,
		LastSeen:     p.LastSeen,
	}
}

// Store persists account profiles.
type Store interface {
	// Get returns the profile for an account, or ErrNotFound.
	Get(ctx context.Context, accountID string) (*Profile, error)

	// Put upserts the profile (last-write-wins).
	Put(ctx context.Context, p *Profile) error

	// Count returns the number of distinct account profiles.
	Count(ctx context.Context) (int, error)

	// DeleteAll wipes every profile. Admin-only.
	DeleteAll(ctx context.Context) error
}
