// Package transport defines the HTTP request/response shapes for the batch module.
package transport

import (
	"time"

	"presales_backend/internal/batch/repository"

	"github.com/google/uuid"
)

// SubmitBatchRequest is the payload for scheduling a batch of calls.
type SubmitBatchRequest struct {
	Name                string      `json:"name" validate:"required,min=1,max=200"`
	LeadIDs             []uuid.UUID `json:"leadIds" validate:"required,min=1,max=10000"`
	StartAt             time.Time   `json:"startAt" validate:"required"`
	WaveSize            int         `json:"waveSize" validate:"required,min=1"`
	WaveIntervalSeconds int         `json:"waveIntervalSeconds" validate:"omitempty,min=1"`
}

// JobResponse is the API view of a batch job. EstimatedCompletionAt is
// when the last wave fires: startAt plus one pacing interval per
// remaining wave.
type JobResponse struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	State                 string    `json:"state"`
	StartAt               time.Time `json:"startAt"`
	EstimatedCompletionAt time.Time `json:"estimatedCompletionAt"`
	WaveSize              int       `json:"waveSize"`
	WaveIntervalSeconds   int       `json:"waveIntervalSeconds"`
	TotalLeads            int       `json:"totalLeads"`
	TotalWaves            int       `json:"totalWaves"`
	DispatchedWaves       int       `json:"dispatchedWaves"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ToJobResponse maps a repository job to its API view.
func ToJobResponse(j repository.Job) JobResponse {
	return JobResponse{
		ID:                    j.ID,
		Name:                  j.Name,
		State:                 string(j.State),
		StartAt:               j.StartAt,
		EstimatedCompletionAt: j.StartAt.Add(time.Duration(j.TotalWaves-1) * j.WaveInterval),
		WaveSize:              j.WaveSize,
		WaveIntervalSeconds:   int(j.WaveInterval / time.Second),
		TotalLeads:            j.TotalLeads,
		TotalWaves:            j.TotalWaves,
		DispatchedWaves:       j.DispatchedWaves,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}
}

// FailedLeadResponse reports one lead whose dispatch failed.
type FailedLeadResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	Wave   int       `json:"wave"`
	Error  string    `json:"error"`
}

// JobDetailResponse extends the job view with per-lead dispatch failures.
type JobDetailResponse struct {
	JobResponse
	FailedLeads []FailedLeadResponse `json:"failedLeads"`
}

// ToJobDetailResponse maps a job and its failed members to the detail view.
func ToJobDetailResponse(j repository.Job, failed []repository.Member) JobDetailResponse {
	out := JobDetailResponse{
		JobResponse: ToJobResponse(j),
		FailedLeads: make([]FailedLeadResponse, 0, len(failed)),
	}
	for _, m := range failed {
		f := FailedLeadResponse{LeadID: m.LeadID, Wave: m.Wave}
		if m.DispatchError != nil {
			f.Error = *m.DispatchError
		}
		out.FailedLeads = append(out.FailedLeads, f)
	}
	return out
}

// ToJobResponses maps a slice of jobs.
func ToJobResponses(jobs []repository.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobResponse(j))
	}
	return out
}
