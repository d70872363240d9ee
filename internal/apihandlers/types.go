package apihandlers

import (
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/scheduler"
)

// SubmitJobRequest is the body of POST /api/v1/jobs. Only Type is required;
// the other fields override the standard sync policy.
type SubmitJobRequest struct {
	Type        string           `json:"type" binding:"required"`
	Expedited   *bool            `json:"expedited,omitempty"`
	Fallback    job.Fallback     `json:"fallback,omitempty"`
	Constraints []job.Constraint `json:"constraints,omitempty"`
}

type SubmitJobResponse struct {
	Handle scheduler.AttemptHandle `json:"handle"`
	Job    job.Descriptor          `json:"job"`
}

type JobStatusResponse struct {
	Status scheduler.Status `json:"status"`
	Report *models.Report   `json:"report,omitempty"`
}
