// Package compliance is the single entry point composing validation, limit
// checking, projection, settlement, and the ledger for callers that do not
// want to orchestrate sub-components directly.
package compliance

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"fecguard/internal/contribution/attestation"
	"fecguard/internal/contribution/metrics"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/ports"
	"fecguard/internal/contribution/service/limits"
	"fecguard/internal/contribution/service/projection"
)

// Contributions above this amount require employer and occupation for FEC
// itemized reporting.
const itemizationThreshold = 200

// Service composes the contribution sub-components behind the stable call
// shapes consumed by the transport layer. Each call is an explicit
// context-carrying function; there is no shared global engine.
type Service struct {
	store      ports.LedgerStore
	checker    *limits.Checker
	calculator *projection.Calculator
	policy     *policy.Policy
	gateway    ports.SettlementGateway
	verifier   *attestation.Verifier
	publisher  ports.AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for facade operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditPublisher enables audit event emission.
func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAttestationVerifier enables token-based attestation input.
func WithAttestationVerifier(verifier *attestation.Verifier) Option {
	return func(s *Service) {
		s.verifier = verifier
	}
}

// New constructs the compliance facade.
func New(
	store ports.LedgerStore,
	checker *limits.Checker,
	calculator *projection.Calculator,
	pol *policy.Policy,
	gateway ports.SettlementGateway,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("compliance: ledger store is required")
	}
	if checker == nil {
		return nil, errors.New("compliance: limit checker is required")
	}
	if calculator == nil {
		return nil, errors.New("compliance: projection calculator is required")
	}
	if pol == nil {
		return nil, errors.New("compliance: policy is required")
	}
	if gateway == nil {
		return nil, errors.New("compliance: settlement gateway is required")
	}
	s := &Service{
		store:      store,
		checker:    checker,
		calculator: calculator,
		policy:     pol,
		gateway:    gateway,
		logger:     slog.Default(),
		tracer:     otel.Tracer("fecguard/contribution/compliance"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}
