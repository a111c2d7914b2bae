// Package batch provides the batch call scheduling bounded context module.
package batch

import (
	"presales_backend/internal/batch/handler"
	"presales_backend/internal/batch/repository"
	"presales_backend/internal/batch/service"
	"presales_backend/internal/events"
	apphttp "presales_backend/internal/http"
	"presales_backend/platform/config"
	"presales_backend/platform/logger"
	"presales_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the batch bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the batch module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, waves service.WaveScheduler, caller service.CallTrigger, cfg config.BatchConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, waves, caller, cfg, eventBus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "batch"
}

// Service returns the batch service for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts batch routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	batchGroup := ctx.V1.Group("/batches")
	m.handler.RegisterRoutes(batchGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
