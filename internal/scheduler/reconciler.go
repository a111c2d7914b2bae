package scheduler

import (
	"context"
	"time"

	"presales_backend/platform/config"
	"presales_backend/platform/logger"
)

// StuckResolver resolves leads whose call has been in flight past the
// timeout by asking the gateway what actually happened.
type StuckResolver interface {
	Reconcile(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

const reconcileClaimLimit = 50

type Reconciler struct {
	resolver        StuckResolver
	interval        time.Duration
	inFlightTimeout time.Duration
	log             *logger.Logger
}

func NewReconciler(cfg config.EngagementConfig, resolver StuckResolver, log *logger.Logger) *Reconciler {
	interval := cfg.GetReconcileInterval()
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	timeout := cfg.GetInFlightTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Reconciler{
		resolver:        resolver,
		interval:        interval,
		inFlightTimeout: timeout,
		log:             log,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-r.inFlightTimeout)
			n, err := r.resolver.Reconcile(ctx, cutoff, reconcileClaimLimit)
			if err != nil {
				r.log.Error("reconcile pass failed", "error", err)
				continue
			}
			if n > 0 {
				r.log.Info("reconciled stuck leads", "count", n)
			}
		}
	}
}
