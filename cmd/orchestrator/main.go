package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"presales_backend/internal/batch"
	"presales_backend/internal/callgateway"
	"presales_backend/internal/email"
	"presales_backend/internal/events"
	"presales_backend/internal/leads"
	"presales_backend/internal/leads/domain"
	"presales_backend/internal/observability"
	"presales_backend/internal/scheduler"
	"presales_backend/internal/whatsapp"
	"presales_backend/platform/config"
	"presales_backend/platform/db"
	"presales_backend/platform/logger"
	"presales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The orchestrator binary runs the background half of the system: the due-lead
// ticker, the stuck-lead reconciler, the asynq worker that fires batch waves
// and scheduled callbacks, and the IMAP inbound poller. The API binary only
// enqueues; this one consumes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting orchestrator", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	observability.Register(eventBus)
	val := validator.New()

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()

	dialer := callgateway.NewClient(cfg, log)
	if dialer == nil {
		log.Warn("call gateway not configured; call placement disabled")
	}
	chatClient := whatsapp.NewClient(cfg, log)
	mailSender := email.NewSender(cfg)

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
	orchestrator := leadsModule.Orchestrator()

	batchModule := batch.NewModule(pool, eventBus, val, schedClient, orchestrator, cfg, log)

	worker, err := scheduler.NewWorker(cfg, batchModule.Service(), orchestrator, log)
	if err != nil {
		log.Error("failed to initialize task worker", "error", err)
		panic("failed to initialize task worker: " + err.Error())
	}

	ticker := scheduler.NewTicker(cfg, orchestrator, log)
	reconciler := scheduler.NewReconciler(cfg, orchestrator, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveMetrics(ctx, cfg.GetMetricsAddr(), log)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	if poller := email.NewInboundPoller(cfg, orchestrator, log); poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	} else {
		log.Warn("imap not configured; inbound email polling disabled")
	}

	// Blocks until the signal context is cancelled.
	worker.Run(ctx)

	wg.Wait()
	log.Info("orchestrator shut down")
}

// serveMetrics exposes the Prometheus scrape endpoint on its own listener.
// The worker binary has no API surface, so the collectors it registers would
// otherwise be unreachable.
func serveMetrics(ctx context.Context, addr string, log *logger.Logger) {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/metrics", observability.MetricsHandler())

	srv := &http.Server{Addr: addr, Handler: engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics listener failed", "error", err)
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
