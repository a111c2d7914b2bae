package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"presales_backend/internal/batch/repository"
	"presales_backend/platform/apperr"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*repository.Job
	members map[uuid.UUID][]repository.Member
	deleted []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobs:    make(map[uuid.UUID]*repository.Job),
		members: make(map[uuid.UUID][]repository.Member),
	}
}

func (r *fakeRepo) CreateJob(_ context.Context, p repository.CreateJobParams) (repository.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := repository.Job{
		ID:           uuid.New(),
		Name:         p.Name,
		State:        repository.StateScheduled,
		StartAt:      p.StartAt,
		WaveSize:     p.WaveSize,
		WaveInterval: p.WaveInterval,
		TotalLeads:   len(p.LeadIDs),
		TotalWaves:   (len(p.LeadIDs) + p.WaveSize - 1) / p.WaveSize,
	}
	r.jobs[job.ID] = &job
	for i, leadID := range p.LeadIDs {
		r.members[job.ID] = append(r.members[job.ID], repository.Member{
			JobID: job.ID, LeadID: leadID, Wave: i/p.WaveSize + 1,
		})
	}
	return job, nil
}

func (r *fakeRepo) GetJob(_ context.Context, id uuid.UUID) (repository.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		return *j, nil
	}
	return repository.Job{}, apperr.NotFound("batch job not found")
}

func (r *fakeRepo) ListJobs(_ context.Context) ([]repository.Job, error) { return nil, nil }

func (r *fakeRepo) WaveLeads(_ context.Context, jobID uuid.UUID, wave int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var leads []uuid.UUID
	for _, m := range r.members[jobID] {
		if m.Wave == wave {
			leads = append(leads, m.LeadID)
		}
	}
	return leads, nil
}

func (r *fakeRepo) TransitionJob(_ context.Context, id uuid.UUID, from, to repository.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.State != from {
		return false, nil
	}
	j.State = to
	return true, nil
}

func (r *fakeRepo) RecordWaveDispatched(_ context.Context, jobID uuid.UUID) (repository.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return repository.Job{}, apperr.NotFound("batch job not found")
	}
	j.DispatchedWaves++
	return *j, nil
}

func (r *fakeRepo) RecordLeadResult(_ context.Context, jobID, leadID uuid.UUID, dispatchError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members[jobID] {
		if m.LeadID == leadID {
			now := time.Now()
			r.members[jobID][i].DispatchedAt = &now
			r.members[jobID][i].DispatchError = dispatchError
		}
	}
	return nil
}

func (r *fakeRepo) FailedLeads(_ context.Context, jobID uuid.UUID) ([]repository.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []repository.Member
	for _, m := range r.members[jobID] {
		if m.DispatchError != nil {
			failed = append(failed, m)
		}
	}
	return failed, nil
}

func (r *fakeRepo) DeleteJob(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	delete(r.members, id)
	r.deleted = append(r.deleted, id)
	return nil
}

var _ repository.JobsRepository = (*fakeRepo)(nil)

type scheduledWave struct {
	jobID uuid.UUID
	wave  int
	runAt time.Time
}

type fakeWaves struct {
	mu        sync.Mutex
	scheduled []scheduledWave
	cancelled []int
	failAfter int // fail scheduling from this wave number on; 0 disables
}

func (w *fakeWaves) ScheduleWave(_ context.Context, jobID uuid.UUID, wave int, runAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAfter > 0 && wave >= w.failAfter {
		return apperr.Unavailable("trigger store down")
	}
	w.scheduled = append(w.scheduled, scheduledWave{jobID: jobID, wave: wave, runAt: runAt})
	return nil
}

func (w *fakeWaves) CancelWave(_ context.Context, _ uuid.UUID, wave int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelled = append(w.cancelled, wave)
	return nil
}

type fakeCaller struct {
	mu      sync.Mutex
	called  []uuid.UUID
	failFor map[uuid.UUID]error
}

func (c *fakeCaller) CallNow(_ context.Context, leadID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.failFor[leadID]; ok {
		return err
	}
	c.called = append(c.called, leadID)
	return nil
}

type fixedBatchConfig struct{}

func (fixedBatchConfig) GetWaveSizeMin() int                 { return 1 }
func (fixedBatchConfig) GetWaveSizeMax() int                 { return 50 }
func (fixedBatchConfig) GetWavePacingDefault() time.Duration { return 30 * time.Second }

func leadIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func newTestService(repo repository.JobsRepository, waves *fakeWaves, caller *fakeCaller) *Service {
	return New(repo, waves, caller, fixedBatchConfig{}, nil, logger.New("test"))
}

func TestSubmitSchedulesOneTriggerPerWave(t *testing.T) {
	repo := newFakeRepo()
	waves := &fakeWaves{}
	svc := newTestService(repo, waves, &fakeCaller{})

	startAt := time.Now().Add(time.Hour)
	job, err := svc.Submit(context.Background(), SubmitParams{
		Name:         "autumn push",
		LeadIDs:      leadIDs(10),
		StartAt:      startAt,
		WaveSize:     4,
		WaveInterval: 2 * time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	if job.TotalWaves != 3 {
		t.Fatalf("total waves = %d, want 3 for 10 leads at size 4", job.TotalWaves)
	}
	if len(waves.scheduled) != 3 {
		t.Fatalf("scheduled %d triggers, want 3", len(waves.scheduled))
	}
	for i, w := range waves.scheduled {
		wantAt := startAt.Add(time.Duration(i) * 2 * time.Minute)
		if w.wave != i+1 || !w.runAt.Equal(wantAt) {
			t.Errorf("trigger %d = wave %d at %v, want wave %d at %v", i, w.wave, w.runAt, i+1, wantAt)
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeWaves{}, &fakeCaller{})
	future := time.Now().Add(time.Hour)
	dup := uuid.New()

	cases := []struct {
		name   string
		params SubmitParams
	}{
		{"no leads", SubmitParams{Name: "x", StartAt: future, WaveSize: 5}},
		{"start in past", SubmitParams{Name: "x", LeadIDs: leadIDs(3), StartAt: time.Now().Add(-time.Minute), WaveSize: 5}},
		{"wave size too large", SubmitParams{Name: "x", LeadIDs: leadIDs(3), StartAt: future, WaveSize: 51}},
		{"wave size zero", SubmitParams{Name: "x", LeadIDs: leadIDs(3), StartAt: future, WaveSize: 0}},
		{"duplicate lead", SubmitParams{Name: "x", LeadIDs: []uuid.UUID{dup, uuid.New(), dup}, StartAt: future, WaveSize: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.params)
			if apperr.GetKind(err) != apperr.KindValidation {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
	if len(repo.jobs) != 0 {
		t.Errorf("rejected submissions must not persist jobs, found %d", len(repo.jobs))
	}
}

func TestSubmitDefaultsWaveInterval(t *testing.T) {
	repo := newFakeRepo()
	waves := &fakeWaves{}
	svc := newTestService(repo, waves, &fakeCaller{})

	startAt := time.Now().Add(time.Hour)
	_, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: leadIDs(4), StartAt: startAt, WaveSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := waves.scheduled[1].runAt; !got.Equal(startAt.Add(30 * time.Second)) {
		t.Errorf("second wave at %v, want default pacing 30s after start", got)
	}
}

func TestSubmitTriggerFailureRollsBack(t *testing.T) {
	repo := newFakeRepo()
	waves := &fakeWaves{failAfter: 3}
	svc := newTestService(repo, waves, &fakeCaller{})

	_, err := svc.Submit(context.Background(), SubmitParams{
		Name:         "x",
		LeadIDs:      leadIDs(10),
		StartAt:      time.Now().Add(time.Hour),
		WaveSize:     4,
		WaveInterval: time.Minute,
	})
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatalf("half-submitted job must be removed, deleted = %v", repo.deleted)
	}
	if len(waves.cancelled) != 2 {
		t.Errorf("already-armed triggers must be disarmed, cancelled = %v", waves.cancelled)
	}
}

func TestExecuteWaveDialsAssignedLeadsOnly(t *testing.T) {
	repo := newFakeRepo()
	waves := &fakeWaves{}
	caller := &fakeCaller{}
	svc := newTestService(repo, waves, caller)

	ids := leadIDs(5)
	job, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: ids, StartAt: time.Now().Add(time.Hour), WaveSize: 2, WaveInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ExecuteWave(context.Background(), job.ID, 1); err != nil {
		t.Fatal(err)
	}
	if len(caller.called) != 2 {
		t.Fatalf("wave 1 dialed %d leads, want 2", len(caller.called))
	}
	got, _ := repo.GetJob(context.Background(), job.ID)
	if got.State != repository.StateRunning {
		t.Errorf("state = %s, want running after first wave", got.State)
	}
}

func TestExecuteWaveIsolatesLeadFailures(t *testing.T) {
	repo := newFakeRepo()
	caller := &fakeCaller{failFor: map[uuid.UUID]error{}}
	svc := newTestService(repo, &fakeWaves{}, caller)

	ids := leadIDs(3)
	caller.failFor[ids[1]] = apperr.Conflict("lead is not awaiting a call")

	job, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: ids, StartAt: time.Now().Add(time.Hour), WaveSize: 3, WaveInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ExecuteWave(context.Background(), job.ID, 1); err != nil {
		t.Fatal(err)
	}
	if len(caller.called) != 2 {
		t.Fatalf("dialed %d leads, want 2 despite one failure", len(caller.called))
	}

	var recorded int
	for _, m := range repo.members[job.ID] {
		if m.LeadID == ids[1] && m.DispatchError != nil {
			recorded++
		}
	}
	if recorded != 1 {
		t.Error("failed lead's dispatch error not recorded")
	}

	failed, err := svc.FailedLeads(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].LeadID != ids[1] {
		t.Fatalf("failed leads = %+v, want exactly the rejected lead", failed)
	}
	if failed[0].DispatchError == nil || *failed[0].DispatchError == "" {
		t.Error("dispatch error not surfaced on the failed lead")
	}
}

func TestExecuteFinalWaveCompletesJob(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeWaves{}, &fakeCaller{})

	job, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: leadIDs(4), StartAt: time.Now().Add(time.Hour), WaveSize: 2, WaveInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ExecuteWave(context.Background(), job.ID, 1); err != nil {
		t.Fatal(err)
	}
	if err := svc.ExecuteWave(context.Background(), job.ID, 2); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.GetJob(context.Background(), job.ID)
	if got.State != repository.StateCompleted {
		t.Fatalf("state = %s, want completed after final wave", got.State)
	}
}

func TestExecuteWaveSkipsCancelledJob(t *testing.T) {
	repo := newFakeRepo()
	caller := &fakeCaller{}
	svc := newTestService(repo, &fakeWaves{}, caller)

	job, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: leadIDs(4), StartAt: time.Now().Add(time.Hour), WaveSize: 2, WaveInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.ExecuteWave(context.Background(), job.ID, 1); err != nil {
		t.Fatal(err)
	}
	if len(caller.called) != 0 {
		t.Errorf("cancelled job dialed %d leads, want 0", len(caller.called))
	}
}

func TestCancelDisarmsTriggersOnce(t *testing.T) {
	repo := newFakeRepo()
	waves := &fakeWaves{}
	svc := newTestService(repo, waves, &fakeCaller{})

	job, err := svc.Submit(context.Background(), SubmitParams{
		Name: "x", LeadIDs: leadIDs(6), StartAt: time.Now().Add(time.Hour), WaveSize: 2, WaveInterval: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.Cancel(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != repository.StateCancelled {
		t.Fatalf("state = %s, want cancelled", got.State)
	}
	if len(waves.cancelled) != 3 {
		t.Errorf("disarmed %d triggers, want 3", len(waves.cancelled))
	}

	if _, err := svc.Cancel(context.Background(), job.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("second cancel err = %v, want conflict", err)
	}
}
