package models

import (
	"crypto/rand"
	"time"

	"github.com/shopspring/decimal"

	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

// ContributionStatus tracks the settlement lifecycle of a ledger record.
// Only confirmed contributions count toward cumulative totals; void records
// are kept for audit and never count.
type ContributionStatus string

const (
	StatusPending   ContributionStatus = "pending"
	StatusConfirmed ContributionStatus = "confirmed"
	StatusVoid      ContributionStatus = "void"
)

// IsValid checks if the status is one of the supported enum values.
func (s ContributionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusVoid:
		return true
	}
	return false
}

// String returns the string representation.
func (s ContributionStatus) String() string {
	return string(s)
}

// Contribution is an immutable ledger record. Once confirmed, its amount and
// identity never change; corrections are modeled as a void plus a new record.
type Contribution struct {
	ID              id.ContributionID  `json:"id"`
	DonorID         id.DonorID         `json:"donor_id"`
	CampaignID      id.CampaignID      `json:"campaign_id"`
	Amount          decimal.Decimal    `json:"amount"`
	OccurredAt      time.Time          `json:"occurred_at"`
	Status          ContributionStatus `json:"status"`
	IdempotencyKey  string             `json:"idempotency_key"`
	TransactionCode string             `json:"transaction_code"`
}

// Validate enforces the record-level invariants before a ledger write.
func (c *Contribution) Validate() error {
	if c.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "contribution id is required")
	}
	if c.DonorID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "donor id is required")
	}
	if c.CampaignID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "campaign id is required")
	}
	if !c.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "contribution amount must be positive")
	}
	if !c.Status.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid contribution status %q", c.Status)
	}
	if c.IdempotencyKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "idempotency key is required")
	}
	return nil
}

// PlanStatus tracks the lifecycle of a recurring plan.
type PlanStatus string

const (
	PlanActive        PlanStatus = "active"
	PlanAutoCancelled PlanStatus = "auto_cancelled"
	PlanCompleted     PlanStatus = "completed"
	PlanUserCancelled PlanStatus = "user_cancelled"
)

// IsValid checks if the plan status is one of the supported enum values.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanActive, PlanAutoCancelled, PlanCompleted, PlanUserCancelled:
		return true
	}
	return false
}

// RecurringPlan is a projection input, not itself a ledger entry. Only the
// individual payments it generates become Contribution records over time.
type RecurringPlan struct {
	DonorID          id.DonorID      `json:"donor_id"`
	CampaignID       id.CampaignID   `json:"campaign_id"`
	PerPaymentAmount decimal.Decimal `json:"per_payment_amount"`
	IntervalDays     int             `json:"interval_days"`
	StartDate        time.Time       `json:"start_date"`
	// PlannedPaymentCount bounds the nominal series when positive; zero means
	// an open series bounded by the projection horizon.
	PlannedPaymentCount int        `json:"planned_payment_count,omitempty"`
	Status              PlanStatus `json:"status"`
}

// Validate enforces plan-level invariants before projection.
func (p *RecurringPlan) Validate() error {
	if p.DonorID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "donor id is required")
	}
	if p.CampaignID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "campaign id is required")
	}
	if !p.PerPaymentAmount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "per payment amount must be positive")
	}
	if p.IntervalDays <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "interval days must be positive")
	}
	if p.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "start date is required")
	}
	if p.PlannedPaymentCount < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "planned payment count cannot be negative")
	}
	return nil
}

// LimitState is the read-model returned by the limit checker. It is always
// recomputed from the ledger, never cached across calls, to avoid staleness
// under concurrent writes.
type LimitState struct {
	CurrentTotal      decimal.Decimal `json:"current_total"`
	RemainingCapacity decimal.Decimal `json:"remaining_capacity"`
	ProposedAmount    decimal.Decimal `json:"proposed_amount"`
	CanContribute     bool            `json:"can_contribute"`
	Message           string          `json:"message"`
	Projection        *Projection     `json:"projection,omitempty"`
}

// Projection describes the full future trajectory of a recurring plan
// assuming no external changes.
type Projection struct {
	// PaymentCount is the number of payments that will actually be attempted.
	PaymentCount       int             `json:"payment_count"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	WillExceedLimit    bool            `json:"will_exceed_limit"`
	AutoCancelDate     *time.Time      `json:"auto_cancel_date,omitempty"`
	FinalPaymentAmount decimal.Decimal `json:"final_payment_amount"`
}

// ScheduledPayment is one dated entry of an expanded recurring series.
type ScheduledPayment struct {
	PaymentNumber int             `json:"payment_number"`
	Amount        decimal.Decimal `json:"amount"`
	ScheduledDate time.Time       `json:"scheduled_date"`
}

// Attestations are eligibility flags supplied by the external KYC
// collaborator. The engine checks presence, not truthfulness.
type Attestations struct {
	Citizenship   bool `json:"citizenship"`
	OwnFunds      bool `json:"own_funds"`
	NotCorporate  bool `json:"not_corporate"`
	NotContractor bool `json:"not_contractor"`
	Age           bool `json:"age"`
}

// Missing lists the attestations that are not affirmed, in a stable order.
func (a Attestations) Missing() []string {
	var missing []string
	if !a.Citizenship {
		missing = append(missing, "citizenship")
	}
	if !a.OwnFunds {
		missing = append(missing, "own_funds")
	}
	if !a.NotCorporate {
		missing = append(missing, "not_corporate")
	}
	if !a.NotContractor {
		missing = append(missing, "not_contractor")
	}
	if !a.Age {
		missing = append(missing, "age")
	}
	return missing
}

const txnCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewTransactionCode generates a receipt code in the TXN-XXXXXXXX-XXXX shape
// used on donor receipts. Codes double as settlement idempotency keys.
func NewTransactionCode() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	code := make([]byte, 0, 17)
	code = append(code, "TXN-"...)
	for i, b := range buf {
		if i == 8 {
			code = append(code, '-')
		}
		code = append(code, txnCodeChars[int(b)%len(txnCodeChars)])
	}
	return string(code)
}
