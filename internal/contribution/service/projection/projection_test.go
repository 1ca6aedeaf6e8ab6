package projection_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/service/projection"
	dErrors "fecguard/pkg/domain-errors"
)

func newCalculator(t *testing.T, opts ...policy.Option) *projection.Calculator {
	t.Helper()
	calc, err := projection.New(policy.Default(opts...))
	require.NoError(t, err)
	return calc
}

func monthlyPlan(perPayment int64, payments int) *models.RecurringPlan {
	return &models.RecurringPlan{
		DonorID:             "donor-1",
		CampaignID:          "campaign-1",
		PerPaymentAmount:    decimal.NewFromInt(perPayment),
		IntervalDays:        30,
		StartDate:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PlannedPaymentCount: payments,
		Status:              models.PlanActive,
	}
}

func TestNewRequiresPolicy(t *testing.T) {
	_, err := projection.New(nil)
	assert.Error(t, err)
}

func TestCalculate(t *testing.T) {
	cap := decimal.NewFromInt(3300)

	t.Run("series that never breaches", func(t *testing.T) {
		calc := newCalculator(t)
		proj, err := calc.Calculate(monthlyPlan(100, 12), decimal.Zero, cap)
		require.NoError(t, err)

		assert.Equal(t, 12, proj.PaymentCount)
		assert.True(t, proj.TotalAmount.Equal(decimal.NewFromInt(1200)), "total = %s", proj.TotalAmount)
		assert.False(t, proj.WillExceedLimit)
		assert.Nil(t, proj.AutoCancelDate)
		assert.True(t, proj.FinalPaymentAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("first payment already breaches", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(300, 12)
		proj, err := calc.Calculate(plan, decimal.NewFromInt(3100), cap)
		require.NoError(t, err)

		assert.True(t, proj.WillExceedLimit)
		assert.Equal(t, 0, proj.PaymentCount)
		require.NotNil(t, proj.AutoCancelDate)
		assert.True(t, plan.StartDate.Equal(*proj.AutoCancelDate))
		assert.True(t, proj.TotalAmount.IsZero())
		assert.True(t, proj.FinalPaymentAmount.IsZero())
	})

	t.Run("breach mid-series skips the breaching payment", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(500, 12)
		proj, err := calc.Calculate(plan, decimal.Zero, cap)
		require.NoError(t, err)

		// 6 payments of 500 reach 3000; the 7th would hit 3500.
		assert.True(t, proj.WillExceedLimit)
		assert.Equal(t, 6, proj.PaymentCount)
		assert.True(t, proj.TotalAmount.Equal(decimal.NewFromInt(3000)))
		assert.True(t, proj.FinalPaymentAmount.Equal(decimal.NewFromInt(500)))
		require.NotNil(t, proj.AutoCancelDate)
		seventh := plan.StartDate.AddDate(0, 0, 6*plan.IntervalDays)
		assert.True(t, seventh.Equal(*proj.AutoCancelDate))
	})

	t.Run("partial final fills remaining capacity when allowed", func(t *testing.T) {
		calc := newCalculator(t, policy.WithPartialFinal(true))
		plan := monthlyPlan(500, 12)
		proj, err := calc.Calculate(plan, decimal.Zero, cap)
		require.NoError(t, err)

		// 6 full payments plus a partial 7th of 300 lands exactly on 3300.
		assert.True(t, proj.WillExceedLimit)
		assert.Equal(t, 7, proj.PaymentCount)
		assert.True(t, proj.TotalAmount.Equal(decimal.NewFromInt(3300)))
		assert.True(t, proj.FinalPaymentAmount.Equal(decimal.NewFromInt(300)))
		require.NotNil(t, proj.AutoCancelDate)
	})

	t.Run("partial final below floor is skipped", func(t *testing.T) {
		calc := newCalculator(t, policy.WithPartialFinal(true))
		plan := monthlyPlan(300, 12)
		proj, err := calc.Calculate(plan, decimal.RequireFromString("3299.50"), cap)
		require.NoError(t, err)

		// Only fifty cents of capacity remains, under the one dollar floor.
		assert.True(t, proj.WillExceedLimit)
		assert.Equal(t, 0, proj.PaymentCount)
	})

	t.Run("open series is bounded by the horizon", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(10, 0)
		proj, err := calc.Calculate(plan, decimal.Zero, cap)
		require.NoError(t, err)

		// 30-day interval: payments at day 0, 30, ..., 360 fit in one year.
		assert.Equal(t, 13, proj.PaymentCount)
		assert.False(t, proj.WillExceedLimit)
	})

	t.Run("open series respects the payment bound", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(10, 0)
		plan.IntervalDays = 1
		proj, err := calc.Calculate(plan, decimal.Zero, cap)
		require.NoError(t, err)

		assert.Equal(t, 100, proj.PaymentCount)
		assert.True(t, proj.TotalAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(275, 24)
		total := decimal.NewFromInt(1000)

		first, err := calc.Calculate(plan, total, cap)
		require.NoError(t, err)
		second, err := calc.Calculate(plan, total, cap)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("invalid plan is rejected", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(100, 12)
		plan.IntervalDays = 0
		_, err := calc.Calculate(plan, decimal.Zero, cap)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil plan is rejected", func(t *testing.T) {
		calc := newCalculator(t)
		_, err := calc.Calculate(nil, decimal.Zero, cap)
		assert.Error(t, err)
	})
}

func TestSchedule(t *testing.T) {
	cap := decimal.NewFromInt(3300)

	t.Run("expands dated payments", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(100, 3)
		schedule, err := calc.Schedule(plan, decimal.Zero, cap)
		require.NoError(t, err)

		require.Len(t, schedule, 3)
		for i, payment := range schedule {
			assert.Equal(t, i+1, payment.PaymentNumber)
			assert.True(t, payment.Amount.Equal(decimal.NewFromInt(100)))
			expected := plan.StartDate.AddDate(0, 0, i*plan.IntervalDays)
			assert.True(t, expected.Equal(payment.ScheduledDate))
		}
	})

	t.Run("truncates at the auto-cancel point", func(t *testing.T) {
		calc := newCalculator(t)
		plan := monthlyPlan(500, 12)
		schedule, err := calc.Schedule(plan, decimal.Zero, cap)
		require.NoError(t, err)

		require.Len(t, schedule, 6)
		assert.True(t, schedule[5].Amount.Equal(decimal.NewFromInt(500)))
	})

	t.Run("includes the partial final payment", func(t *testing.T) {
		calc := newCalculator(t, policy.WithPartialFinal(true))
		plan := monthlyPlan(500, 12)
		schedule, err := calc.Schedule(plan, decimal.Zero, cap)
		require.NoError(t, err)

		require.Len(t, schedule, 7)
		assert.True(t, schedule[6].Amount.Equal(decimal.NewFromInt(300)))
	})
}
