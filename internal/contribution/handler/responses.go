package handler

import (
	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
)

type projectionResponse struct {
	Projection *models.Projection        `json:"projection"`
	Schedule   []models.ScheduledPayment `json:"schedule,omitempty"`
}

type voidResponse struct {
	Voided         bool              `json:"voided"`
	ContributionID id.ContributionID `json:"contribution_id"`
}
