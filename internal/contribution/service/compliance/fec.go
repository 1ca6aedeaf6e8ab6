package compliance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

// ComplianceResult aggregates the outcome of a full FEC compliance check.
// Errors block the contribution; warnings accompany an otherwise compliant one.
type ComplianceResult struct {
	IsCompliant bool     `json:"is_compliant"`
	Warnings    []string `json:"warnings"`
	Errors      []string `json:"errors"`
}

// CheckFECCompliance combines the limit check with attestation presence
// checks. Attestation truthfulness is the KYC collaborator's problem; this
// engine only requires that every flag is affirmed. A recurring plan that
// projects an auto-cancellation is a warning, not an error.
func (s *Service) CheckFECCompliance(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, attestations models.Attestations, plan *models.RecurringPlan) (*ComplianceResult, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.check_fec_compliance")
	defer span.End()

	state, err := s.CheckContributionLimits(ctx, donorID, campaignID, proposedAmount, plan)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &ComplianceResult{}
	if !state.CanContribute {
		result.Errors = append(result.Errors, state.Message)
	}
	for _, missing := range attestations.Missing() {
		result.Errors = append(result.Errors, fmt.Sprintf("missing attestation: %s", missing))
	}
	if proposedAmount.GreaterThan(decimal.NewFromInt(itemizationThreshold)) {
		result.Warnings = append(result.Warnings,
			"contribution exceeds the itemization threshold; employer and occupation will be reported")
	}
	if state.Projection != nil && state.Projection.WillExceedLimit {
		result.Warnings = append(result.Warnings,
			"recurring plan will be auto-cancelled before breaching the aggregate cap")
	}

	result.IsCompliant = len(result.Errors) == 0
	return result, nil
}

// CheckFECComplianceWithToken resolves attestations from a signed KYC token
// before running the compliance check.
func (s *Service) CheckFECComplianceWithToken(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, token string, plan *models.RecurringPlan) (*ComplianceResult, error) {
	if s.verifier == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "attestation verifier is not configured")
	}
	attestations, err := s.verifier.Verify(token, donorID)
	if err != nil {
		return nil, err
	}
	return s.CheckFECCompliance(ctx, donorID, campaignID, proposedAmount, attestations, plan)
}
