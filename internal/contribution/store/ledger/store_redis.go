package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	"fecguard/pkg/platform/sentinel"
)

const (
	// Redis key prefixes for the ledger.
	contributionKeyPrefix = "ledger:contribution:"
	idempotencyKeyPrefix  = "ledger:idem:"
	totalKeyPrefix        = "ledger:total:"
	txnCodeKeyPrefix      = "ledger:txn:"
)

// Running totals are kept as integer cents so the Lua scripts can use INCRBY
// without floating-point drift.
var appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return "duplicate"
end
local cap = tonumber(ARGV[1])
if ARGV[8] == "confirmed" and cap >= 0 then
	local total = tonumber(redis.call("GET", KEYS[3]) or "0")
	if total + tonumber(ARGV[2]) > cap then
		return "cap"
	end
end
redis.call("HSET", KEYS[1],
	"id", ARGV[3], "donor_id", ARGV[4], "campaign_id", ARGV[5],
	"amount", ARGV[6], "occurred_at", ARGV[7], "status", ARGV[8],
	"idempotency_key", ARGV[9], "transaction_code", ARGV[10], "cents", ARGV[2])
redis.call("SET", KEYS[2], ARGV[3])
if ARGV[8] == "confirmed" then
	redis.call("INCRBY", KEYS[3], ARGV[2])
end
if ARGV[10] ~= "" then
	redis.call("SET", KEYS[4], ARGV[3])
end
return "ok"
`)

var confirmScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "missing"
end
local status = redis.call("HGET", KEYS[1], "status")
if status == "void" then
	return "void"
end
if status ~= "pending" then
	return "state"
end
redis.call("HSET", KEYS[1], "status", "confirmed")
redis.call("INCRBY", KEYS[2], redis.call("HGET", KEYS[1], "cents"))
return "ok"
`)

var voidScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return "missing"
end
local status = redis.call("HGET", KEYS[1], "status")
if status == "void" then
	return "void"
end
redis.call("HSET", KEYS[1], "status", "void")
if status == "confirmed" then
	redis.call("DECRBY", KEYS[2], redis.call("HGET", KEYS[1], "cents"))
end
return "ok"
`)

// RedisLedgerStore keeps the ledger in Redis. Contributions live in hashes,
// per-pair confirmed totals in integer-cent counters, and the conditional
// append runs as a single Lua script so the check and the write cannot be
// interleaved by another appender.
type RedisLedgerStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed ledger store.
func NewRedis(client *redis.Client) *RedisLedgerStore {
	return &RedisLedgerStore{client: client}
}

func (s *RedisLedgerStore) Append(ctx context.Context, contribution *models.Contribution) error {
	return s.append(ctx, contribution, decimal.NewFromInt(-1))
}

func (s *RedisLedgerStore) AppendWithinCap(ctx context.Context, contribution *models.Contribution, cap decimal.Decimal) error {
	return s.append(ctx, contribution, cap)
}

func (s *RedisLedgerStore) append(ctx context.Context, c *models.Contribution, cap decimal.Decimal) error {
	if err := c.Validate(); err != nil {
		return err
	}

	keys := []string{
		contributionKeyPrefix + c.ID.String(),
		idempotencyKeyPrefix + c.IdempotencyKey,
		totalKey(c.DonorID, c.CampaignID),
		txnCodeKeyPrefix + c.TransactionCode,
	}
	argv := []any{
		cents(cap),
		cents(c.Amount),
		c.ID.String(),
		c.DonorID.String(),
		c.CampaignID.String(),
		c.Amount.String(),
		c.OccurredAt.Format(time.RFC3339Nano),
		c.Status.String(),
		c.IdempotencyKey,
		c.TransactionCode,
	}

	res, err := appendScript.Run(ctx, s.client, keys, argv...).Text()
	if err != nil {
		return fmt.Errorf("append contribution: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "duplicate":
		return sentinel.ErrDuplicate
	case "cap":
		return sentinel.ErrCapExceeded
	default:
		return fmt.Errorf("append contribution: unexpected script result %q", res)
	}
}

func (s *RedisLedgerStore) CumulativeTotal(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID) (decimal.Decimal, error) {
	raw, err := s.client.Get(ctx, totalKey(donorID, campaignID)).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("cumulative total: %w", err)
	}
	return decimal.New(raw, -2), nil
}

func (s *RedisLedgerStore) Confirm(ctx context.Context, contributionID id.ContributionID) error {
	contribution, err := s.load(ctx, contributionID)
	if err != nil {
		return err
	}

	keys := []string{
		contributionKeyPrefix + contributionID.String(),
		totalKey(contribution.DonorID, contribution.CampaignID),
	}
	res, err := confirmScript.Run(ctx, s.client, keys).Text()
	if err != nil {
		return fmt.Errorf("confirm contribution: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "missing":
		return sentinel.ErrNotFound
	case "void":
		return sentinel.ErrAlreadyVoid
	case "state":
		return sentinel.ErrInvalidState
	default:
		return fmt.Errorf("confirm contribution: unexpected script result %q", res)
	}
}

func (s *RedisLedgerStore) Void(ctx context.Context, contributionID id.ContributionID) error {
	contribution, err := s.load(ctx, contributionID)
	if err != nil {
		return err
	}

	keys := []string{
		contributionKeyPrefix + contributionID.String(),
		totalKey(contribution.DonorID, contribution.CampaignID),
	}
	res, err := voidScript.Run(ctx, s.client, keys).Text()
	if err != nil {
		return fmt.Errorf("void contribution: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "missing":
		return sentinel.ErrNotFound
	case "void":
		return sentinel.ErrAlreadyVoid
	default:
		return fmt.Errorf("void contribution: unexpected script result %q", res)
	}
}

func (s *RedisLedgerStore) FindByTransactionCode(ctx context.Context, code string) (*models.Contribution, error) {
	rawID, err := s.client.Get(ctx, txnCodeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by transaction code: %w", err)
	}
	contributionID, err := id.ParseContributionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("find by transaction code: %w", err)
	}
	return s.load(ctx, contributionID)
}

func (s *RedisLedgerStore) load(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	fields, err := s.client.HGetAll(ctx, contributionKeyPrefix+contributionID.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("load contribution: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}

	amount, err := decimal.NewFromString(fields["amount"])
	if err != nil {
		return nil, fmt.Errorf("load contribution: parse amount: %w", err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, fields["occurred_at"])
	if err != nil {
		return nil, fmt.Errorf("load contribution: parse occurred_at: %w", err)
	}

	return &models.Contribution{
		ID:              contributionID,
		DonorID:         id.DonorID(fields["donor_id"]),
		CampaignID:      id.CampaignID(fields["campaign_id"]),
		Amount:          amount,
		OccurredAt:      occurredAt,
		Status:          models.ContributionStatus(fields["status"]),
		IdempotencyKey:  fields["idempotency_key"],
		TransactionCode: fields["transaction_code"],
	}, nil
}

func totalKey(donorID id.DonorID, campaignID id.CampaignID) string {
	return totalKeyPrefix + donorID.String() + ":" + campaignID.String()
}

func cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
