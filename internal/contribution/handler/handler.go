// Package handler exposes the contribution compliance engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	"fecguard/internal/contribution/service/compliance"
	"fecguard/internal/platform/middleware"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
	"fecguard/pkg/platform/httputil"
)

// Service defines the facade operations the HTTP layer consumes.
type Service interface {
	CheckContributionLimits(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, plan *models.RecurringPlan) (*models.LimitState, error)
	CalculateRecurringProjection(ctx context.Context, plan *models.RecurringPlan) (*models.Projection, error)
	RecurringSchedule(ctx context.Context, plan *models.RecurringPlan) ([]models.ScheduledPayment, error)
	ValidateContribution(fields compliance.ValidationFields) compliance.ValidationResult
	CheckFECCompliance(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, attestations models.Attestations, plan *models.RecurringPlan) (*compliance.ComplianceResult, error)
	CheckFECComplianceWithToken(ctx context.Context, donorID id.DonorID, campaignID id.CampaignID, proposedAmount decimal.Decimal, token string, plan *models.RecurringPlan) (*compliance.ComplianceResult, error)
	SaveContribution(ctx context.Context, req compliance.SaveRequest) (*compliance.SaveResult, error)
	VoidContribution(ctx context.Context, contributionID id.ContributionID) error
	ContributionByTransactionCode(ctx context.Context, code string) (*models.Contribution, error)
}

// Handler handles contribution endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a contribution Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers the contribution routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	router.Post("/contributions/check-limits", h.handleCheckLimits)
	router.Post("/contributions/projection", h.handleProjection)
	router.Post("/contributions/validate", h.handleValidate)
	router.Post("/contributions/compliance-check", h.handleComplianceCheck)
	router.Post("/contributions", h.handleSave)
	router.Post("/contributions/{id}/void", h.handleVoid)
	router.Get("/contributions/{transactionCode}", h.handleLookup)

	r.Mount("/", router)
}

func (h *Handler) handleCheckLimits(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[checkLimitsRequest](w, r)
	if !ok {
		return
	}

	donorID, campaignID, err := parseIdentity(req.DonorID, req.CampaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var plan *models.RecurringPlan
	if req.Plan != nil {
		plan, err = req.Plan.toPlan(donorID, campaignID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	state, err := h.service.CheckContributionLimits(r.Context(), donorID, campaignID, amount, plan)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleProjection(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[projectionRequest](w, r)
	if !ok {
		return
	}

	donorID, campaignID, err := parseIdentity(req.DonorID, req.CampaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	plan, err := req.toPlan(donorID, campaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	proj, err := h.service.CalculateRecurringProjection(r.Context(), plan)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := projectionResponse{Projection: proj}
	if req.IncludeSchedule {
		schedule, err := h.service.RecurringSchedule(r.Context(), plan)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp.Schedule = schedule
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[compliance.ValidationFields](w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.ValidateContribution(req))
}

func (h *Handler) handleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[complianceCheckRequest](w, r)
	if !ok {
		return
	}

	donorID, campaignID, err := parseIdentity(req.DonorID, req.CampaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var plan *models.RecurringPlan
	if req.Plan != nil {
		plan, err = req.Plan.toPlan(donorID, campaignID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	var result *compliance.ComplianceResult
	switch {
	case req.AttestationToken != "":
		result, err = h.service.CheckFECComplianceWithToken(r.Context(), donorID, campaignID, amount, req.AttestationToken, plan)
	case req.Attestations != nil:
		result, err = h.service.CheckFECCompliance(r.Context(), donorID, campaignID, amount, *req.Attestations, plan)
	default:
		err = dErrors.New(dErrors.CodeInvalidInput, "attestations or attestation_token is required")
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[saveContributionRequest](w, r)
	if !ok {
		return
	}

	donorID, campaignID, err := parseIdentity(req.DonorID, req.CampaignID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	saveReq := compliance.SaveRequest{
		DonorID:    donorID,
		CampaignID: campaignID,
		Amount:     amount,
	}
	if req.OccurredAt != nil {
		saveReq.OccurredAt = *req.OccurredAt
	}

	result, err := h.service.SaveContribution(r.Context(), saveReq)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	contributionID, err := id.ParseContributionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.VoidContribution(r.Context(), contributionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, voidResponse{Voided: true, ContributionID: contributionID})
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	contribution, err := h.service.ContributionByTransactionCode(r.Context(), chi.URLParam(r, "transactionCode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contribution)
}
