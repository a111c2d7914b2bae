package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presales_backend/internal/adapters/storage"
	"presales_backend/internal/batch"
	"presales_backend/internal/callgateway"
	"presales_backend/internal/email"
	"presales_backend/internal/events"
	apphttp "presales_backend/internal/http"
	"presales_backend/internal/http/router"
	"presales_backend/internal/leads"
	"presales_backend/internal/leads/domain"
	"presales_backend/internal/observability"
	"presales_backend/internal/scheduler"
	"presales_backend/internal/webhook"
	"presales_backend/internal/whatsapp"
	"presales_backend/migrations"
	"presales_backend/platform/config"
	"presales_backend/platform/db"
	"presales_backend/platform/logger"
	"presales_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	observability.Register(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Durable trigger client (asynq). The worker runs in the orchestrator
	// binary; the API only enqueues.
	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()

	// ========================================================================
	// External Collaborators
	// ========================================================================

	dialer := callgateway.NewClient(cfg, log)
	if dialer == nil {
		log.Warn("call gateway not configured; call placement disabled")
	}
	chatClient := whatsapp.NewClient(cfg, log)
	if chatClient == nil {
		log.Warn("whatsapp bridge not configured; chat fallback disabled")
	}
	mailSender := email.NewSender(cfg)
	if mailSender == nil {
		log.Warn("smtp not configured; email fallback disabled")
	}

	archiver := initCallArchive(ctx, cfg, log)

	// ========================================================================
	// Domain Modules
	// ========================================================================

	policy, chatEnabled, emailEnabled := loadEngagementPolicy(cfg, log)
	leadsModule := leads.NewModule(pool, eventBus, val, leads.OrchestratorParams{
		Dialer:          dialer,
		Chat:            chatClient,
		Mail:            mailSender,
		Callbacks:       schedClient,
		Policy:          policy,
		ChatEnabled:     chatEnabled,
		EmailEnabled:    emailEnabled,
		CallbackHorizon: cfg.GetCallbackMaxHorizon(),
		Concurrency:     cfg.GetAsynqConcurrency(),
	}, log)

	batchModule := batch.NewModule(pool, eventBus, val, schedClient, leadsModule.Orchestrator(), cfg, log)

	webhookModule := webhook.NewModule(pool, leadsModule.Orchestrator(), archiver, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			batchModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// loadEngagementPolicy layers the optional YAML policy file over the
// environment defaults.
func loadEngagementPolicy(cfg *config.Config, log *logger.Logger) (policy domain.RetryPolicy, chatEnabled, emailEnabled bool) {
	base := domain.RetryPolicy{
		MaxAttempts: cfg.GetMaxCallAttempts(),
		Delays:      cfg.GetRetryDelays(),
	}
	chatEnabled = cfg.IsWhatsAppEnabled()
	emailEnabled = cfg.IsEmailEnabled()

	path := cfg.GetEngagementPolicyFile()
	if path == "" {
		return base, chatEnabled, emailEnabled
	}

	filePolicy, err := domain.LoadPolicyFile(path)
	if err != nil {
		log.Error("failed to load engagement policy file, using defaults", "error", err, "path", path)
		return base, chatEnabled, emailEnabled
	}
	if filePolicy.ChatEnabled != nil {
		chatEnabled = chatEnabled && *filePolicy.ChatEnabled
	}
	if filePolicy.EmailEnabled != nil {
		emailEnabled = emailEnabled && *filePolicy.EmailEnabled
	}
	log.Info("engagement policy file loaded", "path", path)
	return filePolicy.RetryPolicy(base), chatEnabled, emailEnabled
}

// initCallArchive wires the MinIO-backed call event archive when object
// storage is configured.
func initCallArchive(ctx context.Context, cfg *config.Config, log *logger.Logger) webhook.Archiver {
	if !cfg.IsMinIOEnabled() {
		log.Warn("minio not configured; call event archiving disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return nil
	}

	bucket := cfg.GetMinIOBucketCallArtifacts()
	if err := withRetry(ctx, log, "ensure call artifacts bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure call artifacts bucket exists", "error", err, "bucket", bucket)
		return nil
	}

	return storage.NewCallArchive(storageSvc, bucket)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
