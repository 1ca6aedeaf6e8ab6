package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	"fecguard/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in PostgreSQL.
// This store is pure I/O plus the atomic conditional append; all other domain
// logic belongs in the services.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL this store expects. Applied by deploy tooling; exposed so
// integration tests can bootstrap containers.
const Schema = `
CREATE TABLE IF NOT EXISTS contributions (
	id UUID PRIMARY KEY,
	donor_id TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	occurred_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	transaction_code TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS contributions_pair_confirmed_idx
	ON contributions (donor_id, campaign_id) WHERE status = 'confirmed';
CREATE UNIQUE INDEX IF NOT EXISTS contributions_txn_code_idx
	ON contributions (transaction_code) WHERE transaction_code <> '';
`

// EnsureSchema applies the ledger DDL. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, contribution *models.Contribution) error {
	if err := contribution.Validate(); err != nil {
		return err
	}
	err := s.insert(ctx, s.db, contribution)
	if err != nil {
		return fmt.Errorf("append contribution: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendWithinCap(ctx context.Context, contribution *models.Contribution, cap decimal.Decimal) error {
	if err := contribution.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conditional append: %w", err)
	}
	defer tx.Rollback()

	// Per-pair advisory lock serializes the sum-then-insert sequence for one
	// (donor, campaign) pair without blocking unrelated pairs.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
		contribution.DonorID.String(), contribution.CampaignID.String())
	if err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}

	if contribution.Status == models.StatusConfirmed {
		var total decimal.Decimal
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount), 0)
			FROM contributions
			WHERE donor_id = $1 AND campaign_id = $2 AND status = 'confirmed'
		`, contribution.DonorID.String(), contribution.CampaignID.String()).Scan(&total)
		if err != nil {
			return fmt.Errorf("sum confirmed contributions: %w", err)
		}
		if total.Add(contribution.Amount).GreaterThan(cap) {
			return sentinel.ErrCapExceeded
		}
	}

	if err := s.insert(ctx, tx, contribution); err != nil {
		return fmt.Errorf("conditional append: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conditional append: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) insert(ctx context.Context, db execer, c *models.Contribution) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contributions (id, donor_id, campaign_id, amount, occurred_at, status, idempotency_key, transaction_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID.String(), c.DonorID.String(), c.CampaignID.String(), c.Amount, c.OccurredAt, c.Status.String(), c.IdempotencyKey, c.TransactionCode)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicate
	}
	return err
}

func (s *PostgresStore) CumulativeTotal(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM contributions
		WHERE donor_id = $1 AND campaign_id = $2 AND status = 'confirmed'
	`, donorID.String(), campaignID.String()).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cumulative total: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Confirm(ctx context.Context, contributionID id.ContributionID) error {
	return s.transition(ctx, contributionID, models.StatusPending, models.StatusConfirmed)
}

func (s *PostgresStore) Void(ctx context.Context, contributionID id.ContributionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin void: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM contributions WHERE id = $1 FOR UPDATE`,
		contributionID.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("void contribution: %w", err)
	}
	if models.ContributionStatus(status) == models.StatusVoid {
		return sentinel.ErrAlreadyVoid
	}

	if _, err := tx.ExecContext(ctx, `UPDATE contributions SET status = 'void' WHERE id = $1`,
		contributionID.String()); err != nil {
		return fmt.Errorf("void contribution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit void: %w", err)
	}
	return nil
}

func (s *PostgresStore) transition(ctx context.Context, contributionID id.ContributionID, from, to models.ContributionStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM contributions WHERE id = $1 FOR UPDATE`,
		contributionID.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("load contribution: %w", err)
	}
	switch models.ContributionStatus(status) {
	case from:
		// proceed
	case models.StatusVoid:
		return sentinel.ErrAlreadyVoid
	default:
		return sentinel.ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `UPDATE contributions SET status = $2 WHERE id = $1`,
		contributionID.String(), to.String()); err != nil {
		return fmt.Errorf("transition contribution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTransactionCode(ctx context.Context, code string) (*models.Contribution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, donor_id, campaign_id, amount, occurred_at, status, idempotency_key, transaction_code
		FROM contributions
		WHERE transaction_code = $1
	`, code)
	contribution, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find by transaction code: %w", err)
	}
	return contribution, nil
}

func scanContribution(row *sql.Row) (*models.Contribution, error) {
	var (
		c         models.Contribution
		rawID     string
		rawStatus string
	)
	err := row.Scan(&rawID, (*string)(&c.DonorID), (*string)(&c.CampaignID), &c.Amount,
		&c.OccurredAt, &rawStatus, &c.IdempotencyKey, &c.TransactionCode)
	if err != nil {
		return nil, err
	}
	parsedID, err := id.ParseContributionID(rawID)
	if err != nil {
		return nil, err
	}
	c.ID = parsedID
	c.Status = models.ContributionStatus(rawStatus)
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
