package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

// planRequest is the wire shape of a recurring plan. Amounts travel as
// decimal strings, never floats.
type planRequest struct {
	PerPaymentAmount    string    `json:"per_payment_amount"`
	IntervalDays        int       `json:"interval_days"`
	StartDate           time.Time `json:"start_date"`
	PlannedPaymentCount int       `json:"planned_payment_count,omitempty"`
}

func (p *planRequest) toPlan(donorID id.DonorID, campaignID id.CampaignID) (*models.RecurringPlan, error) {
	perPayment, err := parseAmount(p.PerPaymentAmount, "per_payment_amount")
	if err != nil {
		return nil, err
	}
	return &models.RecurringPlan{
		DonorID:             donorID,
		CampaignID:          campaignID,
		PerPaymentAmount:    perPayment,
		IntervalDays:        p.IntervalDays,
		StartDate:           p.StartDate,
		PlannedPaymentCount: p.PlannedPaymentCount,
		Status:              models.PlanActive,
	}, nil
}

type checkLimitsRequest struct {
	DonorID    string       `json:"donor_id"`
	CampaignID string       `json:"campaign_id"`
	Amount     string       `json:"amount"`
	Plan       *planRequest `json:"plan,omitempty"`
}

type projectionRequest struct {
	DonorID         string `json:"donor_id"`
	CampaignID      string `json:"campaign_id"`
	planRequest
	IncludeSchedule bool `json:"include_schedule,omitempty"`
}

type saveContributionRequest struct {
	DonorID    string     `json:"donor_id"`
	CampaignID string     `json:"campaign_id"`
	Amount     string     `json:"amount"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

type complianceCheckRequest struct {
	DonorID          string               `json:"donor_id"`
	CampaignID       string               `json:"campaign_id"`
	Amount           string               `json:"amount"`
	Attestations     *models.Attestations `json:"attestations,omitempty"`
	AttestationToken string               `json:"attestation_token,omitempty"`
	Plan             *planRequest         `json:"plan,omitempty"`
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", field)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a decimal number", field)
	}
	return amount, nil
}

func parseIdentity(donor, campaign string) (id.DonorID, id.CampaignID, error) {
	donorID, err := id.ParseDonorID(donor)
	if err != nil {
		return "", "", err
	}
	campaignID, err := id.ParseCampaignID(campaign)
	if err != nil {
		return "", "", err
	}
	return donorID, campaignID, nil
}
