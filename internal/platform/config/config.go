package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Server captures process level configuration.
type Server struct {
	Addr string

	// DatabaseURL selects the PostgreSQL ledger store when set.
	DatabaseURL string

	// Redis selects the Redis ledger store when DatabaseURL is unset.
	Redis RedisConfig

	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// ContributionCap is the statutory per-donor per-campaign aggregate cap.
	ContributionCap decimal.Decimal
	// MinContribution is the smallest accepted single contribution.
	MinContribution decimal.Decimal
	// AllowPartialFinal permits a sub-cap partial final payment on recurring
	// plans instead of skipping the breaching payment entirely.
	AllowPartialFinal bool

	// AttestationKey verifies KYC attestation tokens.
	AttestationKey string

	// SettlementURL is the settlement collaborator endpoint.
	SettlementURL string
	// SettlementTimeout bounds a single settlement call.
	SettlementTimeout time.Duration
}

// RedisConfig captures Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("FECGUARD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	cap := decimal.NewFromInt(3300) // FEC individual limit per election
	if raw := os.Getenv("CONTRIBUTION_CAP"); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil && parsed.IsPositive() {
			cap = parsed
		}
	}

	min := decimal.NewFromInt(1)
	if raw := os.Getenv("MIN_CONTRIBUTION"); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil && parsed.IsPositive() {
			min = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "fecguard.audit"
	}

	attestationKey := os.Getenv("ATTESTATION_KEY")
	if attestationKey == "" {
		// Use a default for development - should be overridden in production
		attestationKey = "dev-attestation-key-change-in-production"
	}

	settlementTimeout := 10 * time.Second
	if raw := os.Getenv("SETTLEMENT_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			settlementTimeout = parsed
		}
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:      brokers,
		AuditTopic:        auditTopic,
		ContributionCap:   cap,
		MinContribution:   min,
		AllowPartialFinal: os.Getenv("ALLOW_PARTIAL_FINAL") == "true",
		AttestationKey:    attestationKey,
		SettlementURL:     os.Getenv("SETTLEMENT_URL"),
		SettlementTimeout: settlementTimeout,
	}
}
