package compliance

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/ports"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
	"fecguard/pkg/platform/audit"

	"github.com/shopspring/decimal"
)

// CheckContributionLimits recomputes the donor's limit state. When a recurring
// plan is supplied, the state carries the projected series for that plan on
// top of the donor's current total.
func (s *Service) CheckContributionLimits(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, plan *models.RecurringPlan) (*models.LimitState, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.check_contribution_limits",
		trace.WithAttributes(
			attribute.String("donor_id", donorID.String()),
			attribute.String("campaign_id", campaignID.String()),
		))
	defer span.End()
	start := time.Now()

	state, err := s.checker.Check(ctx, donorID, campaignID, proposedAmount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLimitCheck(state.CanContribute, start)
	}

	if plan != nil {
		proj, err := s.calculator.Calculate(plan, state.CurrentTotal, s.policy.CapFor(campaignID))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		state.Projection = proj
		if proj.WillExceedLimit {
			if s.metrics != nil {
				s.metrics.AutoCancelProjected.Inc()
			}
			ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
				Category:   audit.CategoryOperations,
				DonorID:    donorID,
				CampaignID: campaignID,
				Action:     string(audit.EventAutoCancelProjected),
				Amount:     plan.PerPaymentAmount,
				Decision:   "auto_cancel",
				Reason:     "projected series would breach the aggregate cap",
			})
		}
	}

	if !state.CanContribute {
		ports.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:   audit.CategoryCompliance,
			DonorID:    donorID,
			CampaignID: campaignID,
			Action:     string(audit.EventLimitCheckDenied),
			Amount:     proposedAmount,
			Decision:   "denied",
			Reason:     state.Message,
		})
	}
	return state, nil
}

// CalculateRecurringProjection projects the plan's payment series against the
// donor's current confirmed total.
func (s *Service) CalculateRecurringProjection(ctx context.Context, plan *models.RecurringPlan) (*models.Projection, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.calculate_recurring_projection")
	defer span.End()

	if plan == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recurring plan is required")
	}

	currentTotal, err := s.store.CumulativeTotal(ctx, plan.DonorID, plan.CampaignID)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute cumulative total")
	}
	return s.calculator.Calculate(plan, currentTotal, s.policy.CapFor(plan.CampaignID))
}

// RecurringSchedule expands the plan into the dated payments that will
// actually be attempted.
func (s *Service) RecurringSchedule(ctx context.Context, plan *models.RecurringPlan) ([]models.ScheduledPayment, error) {
	if plan == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recurring plan is required")
	}

	currentTotal, err := s.store.CumulativeTotal(ctx, plan.DonorID, plan.CampaignID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute cumulative total")
	}
	return s.calculator.Schedule(plan, currentTotal, s.policy.CapFor(plan.CampaignID))
}
