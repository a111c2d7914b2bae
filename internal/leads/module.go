// Package leads provides the lead engagement bounded context module.
// This file defines the module that encapsulates setup and route registration.
package leads

import (
	"presales_backend/internal/events"
	apphttp "presales_backend/internal/http"
	"presales_backend/internal/leads/handler"
	"presales_backend/internal/leads/repository"
	"presales_backend/internal/leads/service"
	"presales_backend/platform/logger"
	"presales_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	orchestrator *Orchestrator
}

// NewModule creates and initializes the leads module. The orchestrator's
// external collaborators (dialer, notifiers, callback scheduler) are passed
// through OrchestratorParams by the composition root.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, params OrchestratorParams, log *logger.Logger) *Module {
	repo := repository.New(pool)

	params.Repo = repo
	params.EventBus = eventBus
	params.Log = log
	orchestrator := NewOrchestrator(params)

	svc := service.New(repo, eventBus)
	h := handler.New(svc, orchestrator, val)

	return &Module{
		handler:      h,
		orchestrator: orchestrator,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Orchestrator returns the engagement orchestrator for the scheduler and
// batch dispatcher.
func (m *Module) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.V1.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
