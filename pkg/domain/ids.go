package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "fecguard/pkg/domain-errors"
)

// DonorID is the opaque partition key for a donor's ledger. The engine never
// interprets it as PII.
//
// Usage: construct via ParseDonorID at trust boundaries; direct casting
// bypasses validation.
type DonorID string

// CampaignID identifies the legal entity/election the aggregate cap applies
// to. Limits are always scoped per (DonorID, CampaignID) pair.
type CampaignID string

// ContributionID uniquely identifies a ledger record.
type ContributionID uuid.UUID

// ParseDonorID constructs a DonorID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or blank.
func ParseDonorID(s string) (DonorID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "donor id cannot be empty")
	}
	return DonorID(s), nil
}

// ParseCampaignID constructs a CampaignID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or blank.
func ParseCampaignID(s string) (CampaignID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "campaign id cannot be empty")
	}
	return CampaignID(s), nil
}

// ParseContributionID constructs a ContributionID from external input.
//
// Errors: returns CodeInvalidInput on empty, malformed, or nil UUIDs.
func ParseContributionID(s string) (ContributionID, error) {
	if s == "" {
		return ContributionID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "contribution id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ContributionID(uuid.Nil), dErrors.Wrap(err, dErrors.CodeInvalidInput, "contribution id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return ContributionID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "contribution id cannot be nil")
	}
	return ContributionID(parsed), nil
}

// NewContributionID generates a fresh ContributionID.
func NewContributionID() ContributionID {
	return ContributionID(uuid.New())
}

// IsNil reports whether the donor id is empty.
func (d DonorID) IsNil() bool { return d == "" }

// String returns the string representation.
func (d DonorID) String() string { return string(d) }

// IsNil reports whether the campaign id is empty.
func (c CampaignID) IsNil() bool { return c == "" }

// String returns the string representation.
func (c CampaignID) String() string { return string(c) }

// IsNil reports whether the contribution id is the nil UUID.
func (c ContributionID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

// String returns the canonical UUID string.
func (c ContributionID) String() string { return uuid.UUID(c).String() }

// MarshalText encodes the id as its canonical UUID string.
func (c ContributionID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the id from its canonical UUID string.
func (c *ContributionID) UnmarshalText(text []byte) error {
	parsed, err := ParseContributionID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
