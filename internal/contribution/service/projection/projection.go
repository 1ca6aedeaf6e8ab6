// Package projection expands recurring plans into their projected payment
// series and derives the auto-cancellation point where a series would breach
// the aggregate cap.
package projection

import (
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/policy"
)

const (
	// Open-ended series are projected over at most one year of payments.
	projectionHorizonDays = 365
	// Hard bound on projected payments regardless of interval.
	maxProjectedPayments = 100
)

// Calculator is a pure projection engine. It holds no mutable state and may
// be shared across any number of goroutines.
type Calculator struct {
	policy *policy.Policy
	logger *slog.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a projection calculator bound to a limit policy.
func New(pol *policy.Policy, opts ...Option) (*Calculator, error) {
	if pol == nil {
		return nil, errors.New("projection: policy is required")
	}
	c := &Calculator{
		policy: pol,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Calculate walks the plan's payment series against the cap, starting from
// currentTotal, and reports how far the series actually runs. The result is a
// deterministic function of the inputs.
func (c *Calculator) Calculate(plan *models.RecurringPlan, currentTotal, cap decimal.Decimal) (*models.Projection, error) {
	proj, _, err := c.walk(plan, currentTotal, cap, false)
	return proj, err
}

// Schedule expands the plan into the dated payments that will actually be
// attempted, including a partial final payment when policy allows one.
func (c *Calculator) Schedule(plan *models.RecurringPlan, currentTotal, cap decimal.Decimal) ([]models.ScheduledPayment, error) {
	_, schedule, err := c.walk(plan, currentTotal, cap, true)
	return schedule, err
}

func (c *Calculator) walk(plan *models.RecurringPlan, currentTotal, cap decimal.Decimal, keepSchedule bool) (*models.Projection, []models.ScheduledPayment, error) {
	if plan == nil {
		return nil, nil, errors.New("projection: plan is required")
	}
	if err := plan.Validate(); err != nil {
		return nil, nil, err
	}

	nominal := plan.PlannedPaymentCount
	openSeries := nominal == 0
	if openSeries {
		nominal = maxProjectedPayments
	}
	horizon := plan.StartDate.AddDate(0, 0, projectionHorizonDays)

	proj := &models.Projection{
		TotalAmount:        decimal.Zero,
		FinalPaymentAmount: decimal.Zero,
	}
	var schedule []models.ScheduledPayment

	running := currentTotal
	per := plan.PerPaymentAmount

	for i := 1; i <= nominal; i++ {
		date := plan.StartDate.AddDate(0, 0, (i-1)*plan.IntervalDays)
		if openSeries && date.After(horizon) {
			break
		}

		if running.Add(per).GreaterThan(cap) {
			proj.WillExceedLimit = true
			proj.AutoCancelDate = timePtr(date)

			remaining := cap.Sub(running)
			if c.policy.AllowPartialFinal() && remaining.GreaterThanOrEqual(c.policy.MinContribution()) {
				// The breaching payment is charged partially, filling the
				// remaining capacity, and the plan cancels afterward.
				proj.PaymentCount = i
				proj.TotalAmount = proj.TotalAmount.Add(remaining)
				proj.FinalPaymentAmount = remaining
				if keepSchedule {
					schedule = append(schedule, models.ScheduledPayment{
						PaymentNumber: i,
						Amount:        remaining,
						ScheduledDate: date,
					})
				}
				return proj, schedule, nil
			}

			// Default policy: the breaching payment is skipped entirely and
			// the series stops before it.
			proj.PaymentCount = i - 1
			if i > 1 {
				proj.FinalPaymentAmount = per
			}
			return proj, schedule, nil
		}

		running = running.Add(per)
		proj.PaymentCount = i
		proj.TotalAmount = proj.TotalAmount.Add(per)
		if keepSchedule {
			schedule = append(schedule, models.ScheduledPayment{
				PaymentNumber: i,
				Amount:        per,
				ScheduledDate: date,
			})
		}
	}

	if proj.PaymentCount > 0 {
		proj.FinalPaymentAmount = per
	}
	return proj, schedule, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
