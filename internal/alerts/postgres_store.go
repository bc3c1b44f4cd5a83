package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// PostgresStore persists alerts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed alert store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the alerts table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id             VARCHAR(36) PRIMARY KEY,
			transaction_id VARCHAR(64) NOT NULL,
			account_id     VARCHAR(64) NOT NULL,
			amount         NUMERIC(18,2) NOT NULL,
			merchant       TEXT NOT NULL,
			score          NUMERIC(4,3) NOT NULL CHECK (score >= 0 AND score <= 1),
			risk_level     VARCHAR(10) NOT NULL CHECK (risk_level IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
			reasons        JSONB NOT NULL DEFAULT '[]',
			status         VARCHAR(10) NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'BLOCKED', 'ESCALATED')),
			action         VARCHAR(10) CHECK (action IN ('APPROVED', 'BLOCKED', 'ESCALATED')),
			assigned_to    TEXT,
			comments       TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reviewed_at    TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_created
			ON alerts (created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_alerts_pending
			ON alerts (created_at DESC) WHERE status = 'PENDING';
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, a *Alert) error {
	reasonsJSON, err := json.Marshal(a.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, transaction_id, account_id, amount, merchant, score, risk_level, reasons, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.TransactionID, a.AccountID, a.Amount, a.Merchant, a.Score, string(a.RiskLevel), reasonsJSON, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, selectAlert+` WHERE id = $1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, limit int) ([]*Alert, error) {
	query := selectAlert
	switch filter {
	case FilterPending:
		query += ` WHERE status = 'PENDING'`
	case FilterReviewed:
		query += ` WHERE status <> 'PENDING'`
	case FilterHigh:
		query += ` WHERE risk_level = 'HIGH'`
	case FilterCritical:
		query += ` WHERE risk_level = 'CRITICAL'`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			continue
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, a *Alert) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2, action = $3, assigned_to = $4, comments = $5, reviewed_at = $6
		WHERE id = $1
	`, a.ID, string(a.Status), string(a.Action), a.AssignedTo, a.Comments, a.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'PENDING'),
		       COUNT(*) FILTER (WHERE status = 'APPROVED'),
		       COUNT(*) FILTER (WHERE status = 'BLOCKED'),
		       COUNT(*) FILTER (WHERE status = 'ESCALATED'),
		       COUNT(*) FILTER (WHERE risk_level = 'CRITICAL'),
		       COUNT(*) FILTER (WHERE risk_level = 'HIGH'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'BLOCKED'), 0),
		       COALESCE(AVG(score), 0)
		FROM alerts
	`).Scan(&stats.Total, &stats.Pending, &stats.Approved, &stats.Blocked, &stats.Escalated,
		&stats.Critical, &stats.High, &stats.BlockedAmount, &stats.AvgScore)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alerts: %w", err)
	}
	stats.AvgScore = roundScore(stats.AvgScore)
	return stats, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

const selectAlert = `
	SELECT id, transaction_id, account_id, amount, merchant, score, risk_level,
	       reasons, status, action, assigned_to, comments, created_at, reviewed_at
	FROM alerts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	var reasonsJSON []byte
	var level, status string
	var action, assignedTo, comments sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(&a.ID, &a.TransactionID, &a.AccountID, &a.Amount, &a.Merchant, &a.Score,
		&level, &reasonsJSON, &status, &action, &assignedTo, &comments, &a.CreatedAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	a.RiskLevel = fraud.RiskLevel(level)
	a.Status = Status(status)
	a.Action = Action(action.String)
	a.AssignedTo = assignedTo.String
	a.Comments = comments.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		a.ReviewedAt = &t
	}
	_ = json.Unmarshal(reasonsJSON, &a.Reasons)
	return &a, nil
}
