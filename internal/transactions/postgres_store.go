package transactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// PostgresStore persists scored transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id                VARCHAR(64) PRIMARY KEY,
			account_id        VARCHAR(64) NOT NULL,
			amount            NUMERIC(18,2) NOT NULL,
			merchant          TEXT NOT NULL,
			category          TEXT NOT NULL,
			location          JSONB NOT NULL DEFAULT '{}',
			occurred_at       TIMESTAMPTZ NOT NULL,
			device            TEXT NOT NULL DEFAULT 'Unknown',
			browser           TEXT NOT NULL DEFAULT 'Unknown',
			is_vpn            BOOLEAN NOT NULL DEFAULT FALSE,
			is_tor            BOOLEAN NOT NULL DEFAULT FALSE,
			cvv_match         BOOLEAN NOT NULL DEFAULT TRUE,
			avs_match         BOOLEAN NOT NULL DEFAULT TRUE,
			previous_declines INTEGER NOT NULL DEFAULT 0,
			account_age_days  INTEGER NOT NULL DEFAULT 0,
			score             NUMERIC(4,3) NOT NULL CHECK (score >= 0 AND score <= 1),
			risk_level        VARCHAR(10) NOT NULL CHECK (risk_level IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
			contributions     JSONB NOT NULL DEFAULT '{}',
			model_version     VARCHAR(16) NOT NULL,
			processed_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_account_time
			ON transactions (account_id, occurred_at DESC);

		CREATE INDEX IF NOT EXISTS idx_transactions_processed
			ON transactions (processed_at DESC);
	`)
	return err
}

func (s *PostgresStore) Insert(ctx context.Context, rec *Record) error {
	locJSON, err := json.Marshal(rec.Transaction.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	contribJSON, err := json.Marshal(rec.Contributions)
	if err != nil {
		return fmt.Errorf("failed to marshal contributions: %w", err)
	}

	txn := rec.Transaction
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, account_id, amount, merchant, category, location, occurred_at,
			device, browser, is_vpn, is_tor, cvv_match, avs_match,
			previous_declines, account_age_days,
			score, risk_level, contributions, model_version, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		txn.ID, txn.AccountID, txn.Amount, txn.Merchant, txn.Category, locJSON, txn.Timestamp,
		txn.Device, txn.Browser, txn.IsVPN, txn.IsTor, txn.CVVMatch, txn.AVSMatch,
		txn.PreviousDeclines, txn.AccountAge,
		rec.Score, string(rec.RiskLevel), contribJSON, rec.ModelVersion, rec.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) RecentByAccount(ctx context.Context, accountID string, before time.Time, window time.Duration) ([]*fraud.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE account_id = $1
		  AND occurred_at > $2
		  AND occurred_at <= $3
		ORDER BY occurred_at ASC
	`, accountID, before.Add(-window), before)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*fraud.Transaction
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		txn := rec.Transaction
		result = append(result, &txn)
	}
	return result, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		ORDER BY processed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*), COALESCE(AVG(score), 0)
		FROM transactions
		GROUP BY risk_level
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &Stats{ByLevel: make(map[fraud.RiskLevel]int)}
	var weightedSum float64
	for rows.Next() {
		var level string
		var count int
		var avg float64
		if err := rows.Scan(&level, &count, &avg); err != nil {
			continue
		}
		stats.ByLevel[fraud.RiskLevel(level)] = count
		stats.Total += count
		weightedSum += avg * float64(count)
	}
	if stats.Total > 0 {
		stats.AvgScore = math.Round(weightedSum/float64(stats.Total)*1000) / 1000
	}
	return stats, rows.Err()
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, account_id, amount, merchant, category, location, occurred_at,
	       device, browser, is_vpn, is_tor, cvv_match, avs_match,
	       previous_declines, account_age_days,
	       score, risk_level, contributions, model_version, processed_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var locJSON, contribJSON []byte
	var level string

	err := row.Scan(
		&rec.Transaction.ID, &rec.Transaction.AccountID, &rec.Transaction.Amount,
		&rec.Transaction.Merchant, &rec.Transaction.Category, &locJSON, &rec.Transaction.Timestamp,
		&rec.Transaction.Device, &rec.Transaction.Browser,
		&rec.Transaction.IsVPN, &rec.Transaction.IsTor,
		&rec.Transaction.CVVMatch, &rec.Transaction.AVSMatch,
		&rec.Transaction.PreviousDeclines, &rec.Transaction.AccountAge,
		&rec.Score, &level, &contribJSON, &rec.ModelVersion, &rec.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.RiskLevel = fraud.RiskLevel(level)
	_ = json.Unmarshal(locJSON, &rec.Transaction.Location)
	rec.Contributions = make(map[string]float64)
	_ = json.Unmarshal(contribJSON, &rec.Contributions)
	return &rec, nil
}
