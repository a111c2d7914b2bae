// Package service provides lead registration and inspection.
package service

import (
	"context"

	"presales_backend/internal/events"
	"presales_backend/internal/leads/domain"
	"presales_backend/internal/leads/repository"
	"presales_backend/platform/apperr"
	"presales_backend/platform/phone"

	"github.com/google/uuid"
)

// Service handles lead CRUD on top of the repository. Engagement execution
// lives in the orchestrator.
type Service struct {
	repo     repository.LeadsRepository
	eventBus events.Bus
}

// New creates the leads service.
func New(repo repository.LeadsRepository, eventBus events.Bus) *Service {
	return &Service{repo: repo, eventBus: eventBus}
}

// Create registers a new lead in the pending state. The phone number is
// normalized to E.164; an undiallable number is rejected up front.
func (s *Service) Create(ctx context.Context, p repository.CreateParams) (repository.Lead, error) {
	if !phone.IsDiallable(p.Phone) {
		return repository.Lead{}, apperr.Validation("phone number is not diallable")
	}
	p.Phone = phone.NormalizeE164(p.Phone)

	lead, err := s.repo.Create(ctx, p)
	if err != nil {
		return repository.Lead{}, err
	}

	evt := events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Name:      lead.Name,
		Phone:     lead.Phone,
	}
	if lead.Email != nil {
		evt.Email = *lead.Email
	}
	if lead.Source != nil {
		evt.Source = *lead.Source
	}
	s.eventBus.Publish(ctx, evt)

	return lead, nil
}

// Get returns a lead by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats returns the number of leads in each engagement state.
func (s *Service) Stats(ctx context.Context) (map[domain.State]int, error) {
	return s.repo.CountByState(ctx)
}

// List returns leads, optionally filtered by state.
func (s *Service) List(ctx context.Context, state string, limit, offset int) ([]repository.Lead, error) {
	f := repository.ListFilter{Limit: limit, Offset: offset}
	if state != "" {
		st := domain.State(state)
		if !domain.IsKnownState(st) {
			return nil, apperr.Validation("unknown state filter: " + state)
		}
		f.State = &st
	}
	return s.repo.List(ctx, f)
}
