package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fecguard/internal/contribution/attestation"
	"fecguard/internal/contribution/handler"
	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/ports"
	"fecguard/internal/contribution/service/compliance"
	"fecguard/internal/contribution/service/limits"
	"fecguard/internal/contribution/service/projection"
	"fecguard/internal/contribution/store/ledger"
	"fecguard/internal/platform/logger"
	id "fecguard/pkg/domain"
	"fecguard/pkg/platform/sentinel"
)

// stubGateway settles everything successfully unless err is set.
type stubGateway struct {
	err error
}

func (g *stubGateway) Settle(_ context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &ports.SettlementResult{TransactionCode: req.IdempotencyKey, Status: "completed"}, nil
}

type fixture struct {
	router  chi.Router
	store   *ledger.InMemoryLedgerStore
	gateway *stubGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pol := policy.Default()
	store := ledger.NewInMemory()
	gateway := &stubGateway{}

	checker, err := limits.New(store, pol)
	require.NoError(t, err)
	calculator, err := projection.New(pol)
	require.NoError(t, err)
	svc, err := compliance.New(store, checker, calculator, pol, gateway,
		compliance.WithAttestationVerifier(attestation.NewVerifier("test-key", "kyc")),
	)
	require.NoError(t, err)

	router := chi.NewRouter()
	handler.New(svc, logger.New()).Register(router)

	return &fixture{router: router, store: store, gateway: gateway}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func (f *fixture) seedConfirmed(t *testing.T, donor, campaign string, amount int64) {
	t.Helper()
	err := f.store.Append(context.Background(), &models.Contribution{
		ID:              id.NewContributionID(),
		DonorID:         id.DonorID(donor),
		CampaignID:      id.CampaignID(campaign),
		Amount:          decimal.NewFromInt(amount),
		OccurredAt:      time.Now().UTC(),
		Status:          models.StatusConfirmed,
		IdempotencyKey:  models.NewTransactionCode(),
		TransactionCode: models.NewTransactionCode(),
	})
	require.NoError(t, err)
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), v))
}

func TestCheckLimitsEndpoint(t *testing.T) {
	t.Run("within limits", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/check-limits", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var state struct {
			CanContribute     bool   `json:"can_contribute"`
			CurrentTotal      string `json:"current_total"`
			RemainingCapacity string `json:"remaining_capacity"`
			Message           string `json:"message"`
		}
		decodeBody(t, recorder, &state)
		assert.True(t, state.CanContribute)
		assert.Equal(t, "0", state.CurrentTotal)
		assert.Equal(t, "3300", state.RemainingCapacity)
		assert.Contains(t, state.Message, "within limits")
	})

	t.Run("denial carries the excess", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(t, "donor-1", "campaign-1", 3250)

		recorder := f.do(t, http.MethodPost, "/contributions/check-limits", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var state struct {
			CanContribute bool   `json:"can_contribute"`
			Message       string `json:"message"`
		}
		decodeBody(t, recorder, &state)
		assert.False(t, state.CanContribute)
		assert.Contains(t, state.Message, "would exceed limit by 50")
	})

	t.Run("embedded plan projection", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(t, "donor-1", "campaign-1", 3100)

		recorder := f.do(t, http.MethodPost, "/contributions/check-limits", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "300",
			"plan": map[string]any{
				"per_payment_amount":    "300",
				"interval_days":         30,
				"start_date":            "2026-09-01T00:00:00Z",
				"planned_payment_count": 12,
			},
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var state struct {
			Projection *struct {
				PaymentCount    int    `json:"payment_count"`
				WillExceedLimit bool   `json:"will_exceed_limit"`
				AutoCancelDate  string `json:"auto_cancel_date"`
			} `json:"projection"`
		}
		decodeBody(t, recorder, &state)
		require.NotNil(t, state.Projection)
		assert.True(t, state.Projection.WillExceedLimit)
		assert.Equal(t, 0, state.Projection.PaymentCount)
		assert.NotEmpty(t, state.Projection.AutoCancelDate)
	})

	t.Run("malformed amount", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/check-limits", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "lots",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/check-limits", map[string]any{
			"amount": "100",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestProjectionEndpoint(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/contributions/projection", map[string]any{
		"donor_id":              "donor-1",
		"campaign_id":           "campaign-1",
		"per_payment_amount":    "100",
		"interval_days":         30,
		"start_date":            "2026-09-01T00:00:00Z",
		"planned_payment_count": 12,
		"include_schedule":      true,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp struct {
		Projection struct {
			PaymentCount    int    `json:"payment_count"`
			TotalAmount     string `json:"total_amount"`
			WillExceedLimit bool   `json:"will_exceed_limit"`
		} `json:"projection"`
		Schedule []struct {
			PaymentNumber int    `json:"payment_number"`
			Amount        string `json:"amount"`
		} `json:"schedule"`
	}
	decodeBody(t, recorder, &resp)
	assert.Equal(t, 12, resp.Projection.PaymentCount)
	assert.Equal(t, "1200", resp.Projection.TotalAmount)
	assert.False(t, resp.Projection.WillExceedLimit)
	require.Len(t, resp.Schedule, 12)
	assert.Equal(t, 1, resp.Schedule[0].PaymentNumber)
	assert.Equal(t, "100", resp.Schedule[0].Amount)
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/contributions/validate", map[string]any{
		"donor_id":    "donor-1",
		"campaign_id": "campaign-1",
		"amount":      "250",
		"email":       "donor@example.com",
		"name":        "Pat Donor",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		IsValid bool `json:"is_valid"`
		Errors  []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}
	decodeBody(t, recorder, &result)
	assert.False(t, result.IsValid)

	fields := make([]string, 0, len(result.Errors))
	for _, fieldErr := range result.Errors {
		fields = append(fields, fieldErr.Field)
	}
	assert.ElementsMatch(t, []string{"employer", "occupation"}, fields)
}

func TestComplianceCheckEndpoint(t *testing.T) {
	attestations := map[string]any{
		"citizenship":    true,
		"own_funds":      true,
		"not_corporate":  true,
		"not_contractor": true,
		"age":            true,
	}

	t.Run("compliant with explicit flags", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/compliance-check", map[string]any{
			"donor_id":     "donor-1",
			"campaign_id":  "campaign-1",
			"amount":       "100",
			"attestations": attestations,
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var result struct {
			IsCompliant bool     `json:"is_compliant"`
			Errors      []string `json:"errors"`
		}
		decodeBody(t, recorder, &result)
		assert.True(t, result.IsCompliant)
	})

	t.Run("missing attestation flags", func(t *testing.T) {
		f := newFixture(t)
		partial := map[string]any{"citizenship": true}
		recorder := f.do(t, http.MethodPost, "/contributions/compliance-check", map[string]any{
			"donor_id":     "donor-1",
			"campaign_id":  "campaign-1",
			"amount":       "100",
			"attestations": partial,
		})
		require.Equal(t, http.StatusOK, recorder.Code)

		var result struct {
			IsCompliant bool     `json:"is_compliant"`
			Errors      []string `json:"errors"`
		}
		decodeBody(t, recorder, &result)
		assert.False(t, result.IsCompliant)
		assert.Contains(t, result.Errors, "missing attestation: own_funds")
	})

	t.Run("token input", func(t *testing.T) {
		f := newFixture(t)
		verifier := attestation.NewVerifier("test-key", "kyc")
		token, err := verifier.Issue("donor-1", models.Attestations{
			Citizenship: true, OwnFunds: true, NotCorporate: true, NotContractor: true, Age: true,
		}, time.Hour)
		require.NoError(t, err)

		recorder := f.do(t, http.MethodPost, "/contributions/compliance-check", map[string]any{
			"donor_id":          "donor-1",
			"campaign_id":       "campaign-1",
			"amount":            "100",
			"attestation_token": token,
		})
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("bad token is unauthorized", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/compliance-check", map[string]any{
			"donor_id":          "donor-1",
			"campaign_id":       "campaign-1",
			"amount":            "100",
			"attestation_token": "garbage",
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("neither flags nor token", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions/compliance-check", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestSaveEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(t, http.MethodPost, "/contributions", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		require.Equal(t, http.StatusCreated, recorder.Code)

		var result struct {
			Success         bool   `json:"success"`
			TransactionCode string `json:"transaction_code"`
			ContributionID  string `json:"contribution_id"`
			Status          string `json:"status"`
		}
		decodeBody(t, recorder, &result)
		assert.True(t, result.Success)
		assert.Regexp(t, `^TXN-[A-Z0-9]{8}-[A-Z0-9]{4}$`, result.TransactionCode)
		assert.Equal(t, "confirmed", result.Status)
		assert.NotEmpty(t, result.ContributionID)

		// lookup round-trip
		lookup := f.do(t, http.MethodGet, "/contributions/"+result.TransactionCode, nil)
		require.Equal(t, http.StatusOK, lookup.Code)

		var found struct {
			ID     string `json:"id"`
			Amount string `json:"amount"`
		}
		decodeBody(t, lookup, &found)
		assert.Equal(t, result.ContributionID, found.ID)
		assert.Equal(t, "100", found.Amount)
	})

	t.Run("limit exceeded maps to 422", func(t *testing.T) {
		f := newFixture(t)
		f.seedConfirmed(t, "donor-1", "campaign-1", 3250)

		recorder := f.do(t, http.MethodPost, "/contributions", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "limit_exceeded")
	})

	t.Run("settlement failure maps to 502", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.err = sentinel.ErrUnavailable

		recorder := f.do(t, http.MethodPost, "/contributions", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		assert.Equal(t, http.StatusBadGateway, recorder.Code)
	})

	t.Run("settlement timeout maps to 504", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.err = sentinel.ErrTimeout

		recorder := f.do(t, http.MethodPost, "/contributions", map[string]any{
			"donor_id":    "donor-1",
			"campaign_id": "campaign-1",
			"amount":      "100",
		})
		assert.Equal(t, http.StatusGatewayTimeout, recorder.Code)
	})
}

func TestVoidEndpoint(t *testing.T) {
	f := newFixture(t)

	saved := f.do(t, http.MethodPost, "/contributions", map[string]any{
		"donor_id":    "donor-1",
		"campaign_id": "campaign-1",
		"amount":      "100",
	})
	require.Equal(t, http.StatusCreated, saved.Code)

	var result struct {
		ContributionID string `json:"contribution_id"`
	}
	decodeBody(t, saved, &result)

	voidPath := fmt.Sprintf("/contributions/%s/void", result.ContributionID)
	recorder := f.do(t, http.MethodPost, voidPath, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	// second void conflicts
	recorder = f.do(t, http.MethodPost, voidPath, nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	// unknown id
	recorder = f.do(t, http.MethodPost, fmt.Sprintf("/contributions/%s/void", id.NewContributionID()), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// malformed id
	recorder = f.do(t, http.MethodPost, "/contributions/not-a-uuid/void", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLookupUnknownTransactionCode(t *testing.T) {
	f := newFixture(t)
	recorder := f.do(t, http.MethodGet, "/contributions/TXN-UNKNOWN0-0000", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
