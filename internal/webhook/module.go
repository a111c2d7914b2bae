// Package webhook provides the call event ingestion bounded context module.
// This file defines the module that encapsulates setup and route registration.
package webhook

import (
	apphttp "presales_backend/internal/http"
	"presales_backend/platform/config"
	"presales_backend/platform/httpkit"
	"presales_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule creates and initializes the webhook module.
func NewModule(pool *pgxpool.Pool, driver EngagementDriver, archiver Archiver, cfg config.WebhookConfig, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, driver, archiver, log)

	return &Module{
		handler: NewHandler(svc),
		cfg:     cfg,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the gateway event endpoint. Shared-secret auth
// plus a per-IP rate limit guard the public surface.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 60, m.log)

	group := ctx.Engine.Group("/webhook")
	group.Use(limiter.RateLimit(), httpkit.WebhookAuth(m.cfg))
	group.POST("/call", m.handler.HandleCallEvent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
