// Package ports defines shared interfaces for the contribution module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	"fecguard/pkg/platform/audit"
)

// AuditPublisher emits audit events for compliance-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LedgerStore is the durable, append-only record of contributions and the
// source of truth for cumulative totals. Implementations must serialize
// appends per (donor, campaign) pair; different pairs proceed in parallel.
type LedgerStore interface {
	// Append stores a new contribution. Returns sentinel.ErrDuplicate when the
	// idempotency key was already submitted. Atomic: no partial writes are
	// observable.
	Append(ctx context.Context, contribution *models.Contribution) error

	// AppendWithinCap atomically appends only if the post-append confirmed
	// total for the (donor, campaign) pair stays within cap. Returns
	// sentinel.ErrCapExceeded otherwise. This is the store-level guard against
	// the check-then-act race between a limit check and an append.
	AppendWithinCap(ctx context.Context, contribution *models.Contribution, cap decimal.Decimal) error

	// CumulativeTotal sums confirmed contributions only. Reflects all
	// previously committed appends at call time.
	CumulativeTotal(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID) (decimal.Decimal, error)

	// Confirm transitions a pending contribution to confirmed. Returns
	// sentinel.ErrNotFound for unknown ids and sentinel.ErrInvalidState when
	// the record is not pending.
	Confirm(ctx context.Context, contributionID id.ContributionID) error

	// Void marks a record void without deleting it (audit retention). Returns
	// sentinel.ErrNotFound for unknown ids and sentinel.ErrAlreadyVoid for
	// repeated voids.
	Void(ctx context.Context, contributionID id.ContributionID) error

	// FindByTransactionCode looks up a contribution by its receipt code.
	// Returns sentinel.ErrNotFound when the code is unknown.
	FindByTransactionCode(ctx context.Context, code string) (*models.Contribution, error)
}

// SettlementRequest is handed to the external settlement collaborator.
type SettlementRequest struct {
	DonorID    id.DonorID
	CampaignID id.CampaignID
	Amount     decimal.Decimal
	// IdempotencyKey makes the settlement call safe against duplicate
	// submission; the gateway never retries without it.
	IdempotencyKey string
}

// SettlementResult is the collaborator's declared outcome.
type SettlementResult struct {
	TransactionCode string
	Status          string
}

// SettlementGateway invokes the external payment/crypto rail. Implementations
// must distinguish declared failure (sentinel.ErrUnavailable) from an unknown
// outcome (sentinel.ErrTimeout) and must not retry on their own.
type SettlementGateway interface {
	Settle(ctx context.Context, req SettlementRequest) (*SettlementResult, error)
}

// LogAudit is a shared helper for recording audit events across contribution
// services. It logs to both the structured logger and the audit publisher if
// available.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event) {
	if logger != nil {
		logger.InfoContext(ctx, "audit",
			"event", event.Action,
			"donor_id", event.DonorID,
			"campaign_id", event.CampaignID,
			"amount", event.Amount,
			"decision", event.Decision,
			"reason", event.Reason,
		)
	}
	if publisher != nil {
		if err := publisher.Emit(ctx, event); err != nil && logger != nil {
			logger.ErrorContext(ctx, "audit emit failed",
				"event", event.Action,
				"error", err,
			)
		}
	}
}
