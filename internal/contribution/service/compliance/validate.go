package compliance

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationFields is the donor form input checked independently of limits.
type ValidationFields struct {
	DonorID    string `json:"donor_id"`
	CampaignID string `json:"campaign_id"`
	Amount     string `json:"amount"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Employer   string `json:"employer"`
	Occupation string `json:"occupation"`
}

// FieldError names one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult carries structured field errors. Ordinary invalid input is
// reported here, not as a Go error.
type ValidationResult struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors"`
}

// ValidateContribution performs field-level checks on the donor form.
func (s *Service) ValidateContribution(fields ValidationFields) ValidationResult {
	var errs []FieldError
	addError := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if fields.DonorID == "" {
		addError("donor_id", "donor id is required")
	}
	if fields.CampaignID == "" {
		addError("campaign_id", "campaign id is required")
	}
	if fields.Name == "" {
		addError("name", "name is required")
	}
	if fields.Email == "" {
		addError("email", "email is required")
	} else if !emailPattern.MatchString(fields.Email) {
		addError("email", "email is not a valid address")
	}

	amount, amountValid := s.validateAmount(fields.Amount, addError)

	// FEC itemized reporting applies above the threshold.
	if amountValid && amount.GreaterThan(decimal.NewFromInt(itemizationThreshold)) {
		if fields.Employer == "" {
			addError("employer", "employer is required for contributions above the itemization threshold")
		}
		if fields.Occupation == "" {
			addError("occupation", "occupation is required for contributions above the itemization threshold")
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func (s *Service) validateAmount(raw string, addError func(field, message string)) (decimal.Decimal, bool) {
	if raw == "" {
		addError("amount", "amount is required")
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		addError("amount", "amount must be a decimal number")
		return decimal.Zero, false
	}
	if !amount.IsPositive() {
		addError("amount", "amount must be positive")
		return decimal.Zero, false
	}
	if amount.LessThan(s.policy.MinContribution()) {
		addError("amount", fmt.Sprintf("amount must be at least %s", s.policy.MinContribution()))
		return decimal.Zero, false
	}
	if amount.Exponent() < -2 {
		addError("amount", "amount cannot have sub-cent precision")
		return decimal.Zero, false
	}
	return amount, true
}
