package service

import (
	"context"
	"fmt"
	"time"

	"presales_backend/internal/batch/repository"
	"presales_backend/internal/events"
	"presales_backend/platform/apperr"
	"presales_backend/platform/config"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// WaveScheduler arms and disarms the durable per-wave triggers.
type WaveScheduler interface {
	ScheduleWave(ctx context.Context, jobID uuid.UUID, wave int, runAt time.Time) error
	CancelWave(ctx context.Context, jobID uuid.UUID, wave int) error
}

// CallTrigger places an immediate call for a single lead.
type CallTrigger interface {
	CallNow(ctx context.Context, leadID uuid.UUID) error
}

// Service owns the batch job lifecycle: submission, wave dispatch, and
// cancellation.
type Service struct {
	repo     repository.JobsRepository
	waves    WaveScheduler
	caller   CallTrigger
	cfg      config.BatchConfig
	eventBus events.Bus
	log      *logger.Logger
}

func New(repo repository.JobsRepository, waves WaveScheduler, caller CallTrigger, cfg config.BatchConfig, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		waves:    waves,
		caller:   caller,
		cfg:      cfg,
		eventBus: eventBus,
		log:      log,
	}
}

type SubmitParams struct {
	Name         string
	LeadIDs      []uuid.UUID
	StartAt      time.Time
	WaveSize     int
	WaveInterval time.Duration
}

// Submit validates and persists a batch job and arms one durable trigger
// per wave. When any trigger cannot be armed the submission is rolled
// back and fails as a whole.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (repository.Job, error) {
	if len(p.LeadIDs) == 0 {
		return repository.Job{}, apperr.Validation("batch must contain at least one lead")
	}
	if !p.StartAt.After(time.Now()) {
		return repository.Job{}, apperr.Validation("batch start time must be in the future")
	}
	if p.WaveSize < s.cfg.GetWaveSizeMin() || p.WaveSize > s.cfg.GetWaveSizeMax() {
		return repository.Job{}, apperr.Validation(fmt.Sprintf(
			"wave size must be between %d and %d", s.cfg.GetWaveSizeMin(), s.cfg.GetWaveSizeMax()))
	}
	if p.WaveInterval <= 0 {
		p.WaveInterval = s.cfg.GetWavePacingDefault()
	}
	if seen := duplicateLead(p.LeadIDs); seen != uuid.Nil {
		return repository.Job{}, apperr.Validation(fmt.Sprintf("lead %s listed more than once", seen))
	}

	job, err := s.repo.CreateJob(ctx, repository.CreateJobParams{
		Name:         p.Name,
		StartAt:      p.StartAt,
		WaveSize:     p.WaveSize,
		WaveInterval: p.WaveInterval,
		LeadIDs:      p.LeadIDs,
	})
	if err != nil {
		return repository.Job{}, err
	}

	for wave := 1; wave <= job.TotalWaves; wave++ {
		runAt := job.StartAt.Add(time.Duration(wave-1) * job.WaveInterval)
		if err := s.waves.ScheduleWave(ctx, job.ID, wave, runAt); err != nil {
			s.rollbackSubmission(ctx, job, wave)
			return repository.Job{}, apperr.Unavailable("could not arm batch wave triggers")
		}
	}

	s.publish(ctx, events.BatchSubmitted{
		BaseEvent: events.NewBaseEvent(),
		BatchID:   job.ID,
		LeadCount: job.TotalLeads,
		WaveCount: job.TotalWaves,
		Parallel:  job.WaveSize,
	})
	s.log.Info("batch submitted", "jobId", job.ID, "leads", job.TotalLeads, "waves", job.TotalWaves, "startAt", job.StartAt)
	return job, nil
}

// rollbackSubmission disarms the triggers scheduled so far and removes
// the half-submitted job.
func (s *Service) rollbackSubmission(ctx context.Context, job repository.Job, failedWave int) {
	for wave := 1; wave < failedWave; wave++ {
		if err := s.waves.CancelWave(ctx, job.ID, wave); err != nil {
			s.log.Error("failed to disarm wave trigger during rollback", "error", err, "jobId", job.ID, "wave", wave)
		}
	}
	if err := s.repo.DeleteJob(ctx, job.ID); err != nil {
		s.log.Error("failed to remove half-submitted batch job", "error", err, "jobId", job.ID)
	}
}

// ExecuteWave fires one wave of calls with parallelism bounded by the
// job's wave size. Per-lead failures are isolated and recorded, never
// aborting the rest of the wave.
func (s *Service) ExecuteWave(ctx context.Context, jobID uuid.UUID, wave int) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.State {
	case repository.StateCancelled, repository.StateCompleted:
		s.log.Info("wave trigger fired for finished job, skipping", "jobId", jobID, "wave", wave, "state", job.State)
		return nil
	case repository.StateScheduled:
		if _, err := s.repo.TransitionJob(ctx, jobID, repository.StateScheduled, repository.StateRunning); err != nil {
			return err
		}
	}

	leadIDs, err := s.repo.WaveLeads(ctx, jobID, wave)
	if err != nil {
		return err
	}

	var dispatched, failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(job.WaveSize)
	results := make([]error, len(leadIDs))
	for i, leadID := range leadIDs {
		g.Go(func() error {
			results[i] = s.caller.CallNow(gctx, leadID)
			return nil
		})
	}
	_ = g.Wait()

	for i, leadID := range leadIDs {
		var dispatchError *string
		if err := results[i]; err != nil {
			msg := err.Error()
			dispatchError = &msg
			failed++
			s.log.Warn("wave lead could not be dialed", "jobId", jobID, "wave", wave, "leadId", leadID, "error", err)
		} else {
			dispatched++
		}
		if err := s.repo.RecordLeadResult(ctx, jobID, leadID, dispatchError); err != nil {
			s.log.Error("failed to record wave lead result", "error", err, "jobId", jobID, "leadId", leadID)
		}
	}

	job, err = s.repo.RecordWaveDispatched(ctx, jobID)
	if err != nil {
		return err
	}

	s.publish(ctx, events.BatchWaveDispatched{
		BaseEvent:  events.NewBaseEvent(),
		BatchID:    jobID,
		Wave:       wave,
		Dispatched: dispatched,
		Failed:     failed,
	})
	s.log.Info("batch wave dispatched", "jobId", jobID, "wave", wave, "dispatched", dispatched, "failed", failed)

	if job.DispatchedWaves >= job.TotalWaves {
		done, err := s.repo.TransitionJob(ctx, jobID, repository.StateRunning, repository.StateCompleted)
		if err != nil {
			return err
		}
		if done {
			s.publish(ctx, events.BatchCompleted{BaseEvent: events.NewBaseEvent(), BatchID: jobID})
			s.log.Info("batch completed", "jobId", jobID)
		}
	}
	return nil
}

// Cancel stops a batch: unfired wave triggers are deleted, while waves
// already dispatched are not recalled.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) (repository.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return repository.Job{}, err
	}

	var cancelled bool
	for _, from := range []repository.State{repository.StateScheduled, repository.StateRunning} {
		ok, err := s.repo.TransitionJob(ctx, jobID, from, repository.StateCancelled)
		if err != nil {
			return repository.Job{}, err
		}
		if ok {
			cancelled = true
			break
		}
	}
	if !cancelled {
		return repository.Job{}, apperr.Conflict(fmt.Sprintf("batch job is already %s", job.State))
	}

	var wavesCancelled int
	for wave := 1; wave <= job.TotalWaves; wave++ {
		if err := s.waves.CancelWave(ctx, jobID, wave); err != nil {
			s.log.Error("failed to disarm wave trigger", "error", err, "jobId", jobID, "wave", wave)
			continue
		}
		wavesCancelled++
	}

	s.publish(ctx, events.BatchCancelled{
		BaseEvent:      events.NewBaseEvent(),
		BatchID:        jobID,
		WavesCancelled: wavesCancelled,
	})
	s.log.Info("batch cancelled", "jobId", jobID, "wavesCancelled", wavesCancelled)

	return s.repo.GetJob(ctx, jobID)
}

func (s *Service) Get(ctx context.Context, jobID uuid.UUID) (repository.Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// FailedLeads lists the job members whose dispatch failed, for the job
// status view.
func (s *Service) FailedLeads(ctx context.Context, jobID uuid.UUID) ([]repository.Member, error) {
	return s.repo.FailedLeads(ctx, jobID)
}

func (s *Service) List(ctx context.Context) ([]repository.Job, error) {
	return s.repo.ListJobs(ctx)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, event)
}

func duplicateLead(ids []uuid.UUID) uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return uuid.Nil
}
