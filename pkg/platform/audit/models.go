package audit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	id "fecguard/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years
	// for FEC record keeping).
	// Examples: contributions recorded or voided, limit denials.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	// Examples: settlement failures, projection evaluations.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category        EventCategory   `json:"category"`
	Timestamp       time.Time       `json:"timestamp"`
	DonorID         id.DonorID      `json:"donor_id"`
	CampaignID      id.CampaignID   `json:"campaign_id"`
	Action          string          `json:"action"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	Decision        string          `json:"decision,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
}

// AuditEvent names the actions this engine records.
type AuditEvent string

const (
	EventContributionRecorded AuditEvent = "contribution_recorded"
	EventContributionVoided   AuditEvent = "contribution_voided"
	EventLimitCheckDenied     AuditEvent = "limit_check_denied"
	EventAutoCancelProjected  AuditEvent = "auto_cancel_projected"
	EventSettlementFailed     AuditEvent = "settlement_failed"
	EventSettlementTimeout    AuditEvent = "settlement_timeout"
)

// Store persists audit events. Sinks that only forward (e.g. Kafka) implement
// Append and reject reads.
type Store interface {
	Append(ctx context.Context, event Event) error
}
