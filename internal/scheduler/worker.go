package scheduler

import (
	"context"
	"fmt"

	"presales_backend/platform/apperr"
	"presales_backend/platform/config"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// WaveExecutor dispatches one wave of a batch job.
type WaveExecutor interface {
	ExecuteWave(ctx context.Context, jobID uuid.UUID, wave int) error
}

// CallTrigger places an immediate call for a single lead.
type CallTrigger interface {
	CallNow(ctx context.Context, leadID uuid.UUID) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	waves  WaveExecutor
	caller CallTrigger
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, waves WaveExecutor, caller CallTrigger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		waves:  waves,
		caller: caller,
		log:    log,
	}

	mux.HandleFunc(TaskBatchWaveDue, w.handleBatchWaveDue)
	mux.HandleFunc(TaskLeadCallbackDue, w.handleLeadCallbackDue)

	return w, nil
}

func (w *Worker) handleBatchWaveDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBatchWavePayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	if err := w.waves.ExecuteWave(ctx, jobID, payload.Wave); err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			w.log.Warn("wave trigger fired for unknown job, dropping", "jobId", jobID, "wave", payload.Wave)
			return nil
		}
		return err
	}
	return nil
}

func (w *Worker) handleLeadCallbackDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadCallbackPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	if err := w.caller.CallNow(ctx, leadID); err != nil {
		switch apperr.GetKind(err) {
		case apperr.KindNotFound, apperr.KindConflict:
			// The tick loop already picked the lead up, or it moved on.
			w.log.Debug("callback trigger superseded", "leadId", leadID, "error", err)
			return nil
		}
		return err
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
