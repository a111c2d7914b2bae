package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"presales_backend/platform/config"
	"presales_backend/platform/logger"
)

// DueProcessor claims and engages leads whose next attempt is due.
type DueProcessor interface {
	ProcessDue(ctx context.Context, limit int) (int, error)
}

const tickClaimLimit = 100

// Ticker drives the poll loop that picks up due leads. A tick that
// overlaps a still-running one is skipped rather than stacked.
type Ticker struct {
	processor DueProcessor
	interval  time.Duration
	running   atomic.Bool
	log       *logger.Logger
}

func NewTicker(cfg config.EngagementConfig, processor DueProcessor, log *logger.Logger) *Ticker {
	interval := cfg.GetTickInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Ticker{
		processor: processor,
		interval:  interval,
		log:       log,
	}
}

func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		t.log.Debug("previous tick still running, skipping")
		return
	}
	defer t.running.Store(false)

	n, err := t.processor.ProcessDue(ctx, tickClaimLimit)
	if err != nil {
		t.log.Error("tick failed", "error", err)
		return
	}
	if n > 0 {
		t.log.Info("tick engaged due leads", "count", n)
	}
}
