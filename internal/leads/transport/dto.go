// Package transport defines the HTTP request/response shapes for the leads module.
package transport

import (
	"encoding/json"
	"time"

	"presales_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest is the payload for registering a new lead.
type CreateLeadRequest struct {
	Name   string  `json:"name" validate:"required,min=1,max=200"`
	Phone  string  `json:"phone" validate:"required,min=5,max=32"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Source *string `json:"source,omitempty" validate:"omitempty,max=100"`
}

// LeadResponse is the API view of a lead.
type LeadResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone"`
	Email             *string         `json:"email,omitempty"`
	Source            *string         `json:"source,omitempty"`
	State             string          `json:"state"`
	Attempts          int             `json:"attempts"`
	NextAttemptAt     *time.Time      `json:"nextAttemptAt,omitempty"`
	LastAttemptAt     *time.Time      `json:"lastAttemptAt,omitempty"`
	LastCallID        *string         `json:"lastCallId,omitempty"`
	LastEndReason     *string         `json:"lastEndReason,omitempty"`
	ChatSentAt        *time.Time      `json:"chatSentAt,omitempty"`
	EmailSentAt       *time.Time      `json:"emailSentAt,omitempty"`
	CallbackAt        *time.Time      `json:"callbackAt,omitempty"`
	Summary           *string         `json:"summary,omitempty"`
	SuccessEvaluation *string         `json:"successEvaluation,omitempty"`
	StructuredData    json.RawMessage `json:"structuredData,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ToLeadResponse maps a repository lead to its API view.
func ToLeadResponse(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                l.ID,
		Name:              l.Name,
		Phone:             l.Phone,
		Email:             l.Email,
		Source:            l.Source,
		State:             string(l.State),
		Attempts:          l.Attempts,
		NextAttemptAt:     l.NextAttemptAt,
		LastAttemptAt:     l.LastAttemptAt,
		LastCallID:        l.LastCallID,
		LastEndReason:     l.LastEndReason,
		ChatSentAt:        l.ChatSentAt,
		EmailSentAt:       l.EmailSentAt,
		CallbackAt:        l.CallbackAt,
		Summary:           l.Summary,
		SuccessEvaluation: l.SuccessEvaluation,
		StructuredData:    l.StructuredData,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// ToLeadResponses maps a slice of leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}
