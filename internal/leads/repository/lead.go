// Package repository provides persistence for the leads bounded context.
package repository

import (
	"encoding/json"
	"time"

	"presales_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Lead is the persisted engagement record for a single contact.
type Lead struct {
	ID                uuid.UUID
	Name              string
	Phone             string
	Email             *string
	Source            *string
	State             domain.State
	Attempts          int
	NextAttemptAt     *time.Time
	LastAttemptAt     *time.Time
	LastCallID        *string
	LastEndReason     *string
	ChatSentAt        *time.Time
	EmailSentAt       *time.Time
	CallbackAt        *time.Time
	Summary           *string
	SuccessEvaluation *string
	StructuredData    json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateParams holds the fields needed to register a new lead.
type CreateParams struct {
	Name   string
	Phone  string
	Email  *string
	Source *string
}

// ListFilter narrows the List query.
type ListFilter struct {
	State  *domain.State
	Limit  int
	Offset int
}

// CallReport holds the analysis payload from an end-of-call report.
type CallReport struct {
	Summary           *string
	SuccessEvaluation *string
	StructuredData    json.RawMessage
	EndReason         *string
}
