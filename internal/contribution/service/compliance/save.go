package compliance

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/ports"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
	"fecguard/pkg/platform/audit"
	"fecguard/pkg/platform/sentinel"
)

// SaveRequest describes one contribution to settle and record.
type SaveRequest struct {
	DonorID    id.DonorID
	CampaignID id.CampaignID
	Amount     decimal.Decimal
	// OccurredAt defaults to the current time when zero.
	OccurredAt time.Time
}

// SaveResult is the saved contribution's receipt.
type SaveResult struct {
	Success         bool                      `json:"success"`
	TransactionCode string                    `json:"transaction_code"`
	ContributionID  id.ContributionID         `json:"contribution_id"`
	Status          models.ContributionStatus `json:"status"`
}

// SaveContribution orchestrates limit check, external settlement, and the
// ledger append. The limit check fails fast before any settlement attempt.
// Settlement failure and settlement timeout are surfaced distinctly, both
// without a ledger write. The final append is conditional on the cap, so a
// concurrent contribution that exhausted the headroom after our check
// surfaces as a limit error carrying the transaction code for reconciliation.
func (s *Service) SaveContribution(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.save_contribution",
		trace.WithAttributes(
			attribute.String("donor_id", req.DonorID.String()),
			attribute.String("campaign_id", req.CampaignID.String()),
		))
	defer span.End()
	start := time.Now()

	state, err := s.checker.Check(ctx, req.DonorID, req.CampaignID, req.Amount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLimitCheck(state.CanContribute, start)
	}
	if !state.CanContribute {
		ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:   audit.CategoryCompliance,
			DonorID:    req.DonorID,
			CampaignID: req.CampaignID,
			Action:     string(audit.EventLimitCheckDenied),
			Amount:     req.Amount,
			Decision:   "denied",
			Reason:     state.Message,
		})
		return nil, dErrors.New(dErrors.CodeLimitExceeded, state.Message)
	}

	// The engine mints the transaction code up front; it doubles as the
	// settlement idempotency key so an ambiguous outcome can be reconciled.
	txnCode := models.NewTransactionCode()

	result, err := s.gateway.Settle(ctx, ports.SettlementRequest{
		DonorID:        req.DonorID,
		CampaignID:     req.CampaignID,
		Amount:         req.Amount,
		IdempotencyKey: txnCode,
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.settlementError(ctx, req, txnCode, err)
	}
	s.logger.InfoContext(ctx, "settlement completed",
		"transaction_code", txnCode,
		"settlement_reference", result.TransactionCode,
		"status", result.Status,
	)

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	contribution := &models.Contribution{
		ID:              id.NewContributionID(),
		DonorID:         req.DonorID,
		CampaignID:      req.CampaignID,
		Amount:          req.Amount,
		OccurredAt:      occurredAt,
		Status:          models.StatusConfirmed,
		IdempotencyKey:  txnCode,
		TransactionCode: txnCode,
	}

	err = s.store.AppendWithinCap(ctx, contribution, s.policy.CapFor(req.CampaignID))
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, sentinel.ErrCapExceeded):
			// The money settled but a concurrent contribution took the
			// remaining headroom. Surfaced for caller-side reconciliation
			// against the transaction code, never silently truncated.
			ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
				Category:        audit.CategoryCompliance,
				DonorID:         req.DonorID,
				CampaignID:      req.CampaignID,
				Action:          string(audit.EventLimitCheckDenied),
				Amount:          req.Amount,
				TransactionCode: txnCode,
				Decision:        "denied",
				Reason:          "remaining capacity exhausted after settlement",
			})
			return nil, dErrors.Newf(dErrors.CodeLimitExceeded,
				"remaining capacity was exhausted by a concurrent contribution; reconcile settlement %s", txnCode)
		case errors.Is(err, sentinel.ErrDuplicate):
			return nil, dErrors.New(dErrors.CodeConflict, "contribution was already recorded")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append contribution")
		}
	}

	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Category:        audit.CategoryCompliance,
		DonorID:         req.DonorID,
		CampaignID:      req.CampaignID,
		Action:          string(audit.EventContributionRecorded),
		Amount:          req.Amount,
		TransactionCode: txnCode,
		Decision:        "recorded",
	})
	if s.metrics != nil {
		s.metrics.RecordSave(start)
	}

	return &SaveResult{
		Success:         true,
		TransactionCode: txnCode,
		ContributionID:  contribution.ID,
		Status:          contribution.Status,
	}, nil
}

func (s *Service) settlementError(ctx context.Context, req SaveRequest, txnCode string, err error) error {
	if errors.Is(err, sentinel.ErrTimeout) {
		if s.metrics != nil {
			s.metrics.RecordSettlementFailure("timeout")
		}
		ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:        audit.CategoryOperations,
			DonorID:         req.DonorID,
			CampaignID:      req.CampaignID,
			Action:          string(audit.EventSettlementTimeout),
			Amount:          req.Amount,
			TransactionCode: txnCode,
			Reason:          "settlement outcome unknown",
		})
		return dErrors.Newf(dErrors.CodeTimeout,
			"settlement outcome unknown; reconcile with idempotency key %s before retrying", txnCode)
	}

	if s.metrics != nil {
		s.metrics.RecordSettlementFailure("failed")
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Category:        audit.CategoryOperations,
		DonorID:         req.DonorID,
		CampaignID:      req.CampaignID,
		Action:          string(audit.EventSettlementFailed),
		Amount:          req.Amount,
		TransactionCode: txnCode,
		Reason:          err.Error(),
	})
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "settlement failed")
}

// VoidContribution marks a recorded contribution void. The record is retained
// for audit and stops counting toward cumulative totals.
func (s *Service) VoidContribution(ctx context.Context, contributionID id.ContributionID) error {
	ctx, span := s.tracer.Start(ctx, "compliance.void_contribution")
	defer span.End()

	if contributionID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "contribution id is required")
	}

	err := s.store.Void(ctx, contributionID)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "contribution not found")
	case errors.Is(err, sentinel.ErrAlreadyVoid):
		return dErrors.New(dErrors.CodeConflict, "contribution is already void")
	default:
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to void contribution")
	}

	ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Category: audit.CategoryCompliance,
		Action:   string(audit.EventContributionVoided),
		Decision: "voided",
		Reason:   contributionID.String(),
	})
	if s.metrics != nil {
		s.metrics.ContributionsVoided.Inc()
	}
	return nil
}

// ContributionByTransactionCode looks up the receipt for a transaction code.
func (s *Service) ContributionByTransactionCode(ctx context.Context, code string) (*models.Contribution, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transaction code is required")
	}

	contribution, err := s.store.FindByTransactionCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no contribution for transaction code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up contribution")
	}
	return contribution, nil
}
