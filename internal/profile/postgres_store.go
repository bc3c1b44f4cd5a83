package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// PostgresStore persists account profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed profile store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the account_profiles table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS account_profiles (
			account_id         VARCHAR(64) PRIMARY KEY,
			transaction_count  INTEGER NOT NULL DEFAULT 0,
			total_amount       NUMERIC(18,2) NOT NULL DEFAULT 0,
			avg_amount         NUMERIC(18,2) NOT NULL DEFAULT 0,
			last_location      JSONB,
			last_seen          TIMESTAMPTZ,
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, accountID string) (*Profile, error) {
	var p Profile
	var locJSON []byte
	var lastSeen sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, transaction_count, total_amount, avg_amount, last_location, last_seen, updated_at
		FROM account_profiles
		WHERE account_id = $1
	`, accountID).Scan(&p.AccountID, &p.TransactionCount, &p.TotalAmount, &p.AvgAmount, &locJSON, &lastSeen, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if lastSeen.Valid {
		p.LastSeen = lastSeen.Time
	}
	if len(locJSON) > 0 {
		var loc fraud.Location
		if err := json.Unmarshal(locJSON, &loc); err == nil {
			p.LastLocation = &loc
		}
	}
	return &p, nil
}

func (s *PostgresStore) Put(ctx context.Context, p *Profile) error {
	var locJSON []byte
	if p.LastLocation != nil {
		var err error
		locJSON, err = json.Marshal(p.LastLocation)
		if err != nil {
			return fmt.Errorf("failed to marshal location: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_profiles (account_id, transaction_count, total_amount, avg_amount, last_location, last_seen, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			transaction_count = EXCLUDED.transaction_count,
			total_amount      = EXCLUDED.total_amount,
			avg_amount        = EXCLUDED.avg_amount,
			last_location     = EXCLUDED.last_location,
			last_seen         = EXCLUDED.last_seen,
			updated_at        = EXCLUDED.updated_at
	`, p.AccountID, p.TransactionCount, p.TotalAmount, p.AvgAmount, locJSON, nullTime(p.LastSeen), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM account_profiles`); err != nil {
		return fmt.Errorf("failed to delete profiles: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
