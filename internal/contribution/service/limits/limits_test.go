package limits_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/service/limits"
	"fecguard/internal/contribution/store/ledger"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

func confirmedContribution(donor, campaign string, amount int64) *models.Contribution {
	return &models.Contribution{
		ID:              id.NewContributionID(),
		DonorID:         id.DonorID(donor),
		CampaignID:      id.CampaignID(campaign),
		Amount:          decimal.NewFromInt(amount),
		OccurredAt:      time.Now().UTC(),
		Status:          models.StatusConfirmed,
		IdempotencyKey:  models.NewTransactionCode(),
		TransactionCode: models.NewTransactionCode(),
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	store := ledger.NewInMemory()
	pol := policy.Default()

	t.Run("missing store", func(t *testing.T) {
		_, err := limits.New(nil, pol)
		assert.Error(t, err)
	})

	t.Run("missing policy", func(t *testing.T) {
		_, err := limits.New(store, nil)
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		checker, err := limits.New(store, pol)
		require.NoError(t, err)
		assert.NotNil(t, checker)
	})
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh donor has full headroom", func(t *testing.T) {
		checker, err := limits.New(ledger.NewInMemory(), policy.Default())
		require.NoError(t, err)

		state, err := checker.Check(ctx, "donor-1", "campaign-1", decimal.NewFromInt(100))
		require.NoError(t, err)

		assert.True(t, state.CanContribute)
		assert.True(t, state.CurrentTotal.IsZero())
		assert.True(t, state.RemainingCapacity.Equal(decimal.NewFromInt(3300)))
		assert.Contains(t, state.Message, "within limits")
		assert.Contains(t, state.Message, "3200")
	})

	t.Run("denies when the cap would be breached", func(t *testing.T) {
		store := ledger.NewInMemory()
		require.NoError(t, store.Append(ctx, confirmedContribution("donor-1", "campaign-1", 3250)))

		checker, err := limits.New(store, policy.Default())
		require.NoError(t, err)

		state, err := checker.Check(ctx, "donor-1", "campaign-1", decimal.NewFromInt(100))
		require.NoError(t, err)

		assert.False(t, state.CanContribute)
		assert.True(t, state.CurrentTotal.Equal(decimal.NewFromInt(3250)))
		assert.True(t, state.RemainingCapacity.Equal(decimal.NewFromInt(50)))
		assert.Contains(t, state.Message, "would exceed limit by 50")
	})

	t.Run("exact fill of remaining capacity is allowed", func(t *testing.T) {
		store := ledger.NewInMemory()
		require.NoError(t, store.Append(ctx, confirmedContribution("donor-1", "campaign-1", 3250)))

		checker, err := limits.New(store, policy.Default())
		require.NoError(t, err)

		state, err := checker.Check(ctx, "donor-1", "campaign-1", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.True(t, state.CanContribute)
	})

	t.Run("remaining capacity never goes negative", func(t *testing.T) {
		store := ledger.NewInMemory()
		pol := policy.Default(policy.WithCap(decimal.NewFromInt(100)))
		require.NoError(t, store.Append(ctx, confirmedContribution("donor-1", "campaign-1", 90)))
		require.NoError(t, store.Append(ctx, confirmedContribution("donor-1", "campaign-2", 500)))

		checker, err := limits.New(store, pol)
		require.NoError(t, err)

		// campaign-2 is over a retroactively lowered cap
		state, err := checker.Check(ctx, "donor-1", "campaign-2", decimal.NewFromInt(1))
		require.NoError(t, err)
		assert.False(t, state.CanContribute)
		assert.True(t, state.RemainingCapacity.IsZero())
	})

	t.Run("per-campaign cap override", func(t *testing.T) {
		pol := policy.Default(policy.WithCampaignCap("campaign-special", decimal.NewFromInt(5000)))
		checker, err := limits.New(ledger.NewInMemory(), pol)
		require.NoError(t, err)

		state, err := checker.Check(ctx, "donor-1", "campaign-special", decimal.NewFromInt(4000))
		require.NoError(t, err)
		assert.True(t, state.CanContribute)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		checker, err := limits.New(ledger.NewInMemory(), policy.Default())
		require.NoError(t, err)

		for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
			_, err := checker.Check(ctx, "donor-1", "campaign-1", amount)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("rejects blank identity keys", func(t *testing.T) {
		checker, err := limits.New(ledger.NewInMemory(), policy.Default())
		require.NoError(t, err)

		_, err = checker.Check(ctx, "", "campaign-1", decimal.NewFromInt(10))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = checker.Check(ctx, "donor-1", "", decimal.NewFromInt(10))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("headroom is non-increasing as appends land", func(t *testing.T) {
		store := ledger.NewInMemory()
		checker, err := limits.New(store, policy.Default())
		require.NoError(t, err)

		previous := decimal.NewFromInt(3300)
		for i := 0; i < 10; i++ {
			require.NoError(t, store.Append(ctx, confirmedContribution("donor-1", "campaign-1", 200)))

			state, err := checker.Check(ctx, "donor-1", "campaign-1", decimal.NewFromInt(1))
			require.NoError(t, err)
			assert.True(t, state.RemainingCapacity.LessThanOrEqual(previous),
				"headroom grew from %s to %s", previous, state.RemainingCapacity)
			assert.False(t, state.RemainingCapacity.IsNegative())
			previous = state.RemainingCapacity
		}
	})
}
