// Package limits decides whether a proposed contribution fits under the
// donor's remaining aggregate capacity for a campaign.
package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/ports"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

// Checker computes limit decisions. It is read-only; appending to the ledger
// is the caller's responsibility and only the store's conditional append can
// make the final admission decision under concurrency.
type Checker struct {
	store  ports.LedgerStore
	policy *policy.Policy
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger used for decision logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a limit checker.
func New(store ports.LedgerStore, pol *policy.Policy, opts ...Option) (*Checker, error) {
	if store == nil {
		return nil, errors.New("limits: ledger store is required")
	}
	if pol == nil {
		return nil, errors.New("limits: policy is required")
	}
	c := &Checker{
		store:  store,
		policy: pol,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Check recomputes the donor's limit state from the ledger. The state is
// never cached; staleness under concurrent writes is resolved by the store's
// conditional append, not here.
func (c *Checker) Check(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal) (*models.LimitState, error) {
	if donorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "donor id is required")
	}
	if campaignID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "campaign id is required")
	}
	if !proposedAmount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proposed amount must be positive")
	}

	currentTotal, err := c.store.CumulativeTotal(ctx, donorID, campaignID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute cumulative total")
	}

	cap := c.policy.CapFor(campaignID)
	remaining := cap.Sub(currentTotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	state := &models.LimitState{
		CurrentTotal:      currentTotal,
		RemainingCapacity: remaining,
		ProposedAmount:    proposedAmount,
		CanContribute:     proposedAmount.LessThanOrEqual(remaining),
	}
	if state.CanContribute {
		state.Message = fmt.Sprintf("within limits: %s remaining after this contribution",
			remaining.Sub(proposedAmount))
	} else {
		state.Message = fmt.Sprintf("would exceed limit by %s", proposedAmount.Sub(remaining))
	}

	c.logger.DebugContext(ctx, "limit check",
		"donor_id", donorID.String(),
		"campaign_id", campaignID.String(),
		"proposed", proposedAmount.String(),
		"remaining", remaining.String(),
		"can_contribute", state.CanContribute,
	)
	return state, nil
}
