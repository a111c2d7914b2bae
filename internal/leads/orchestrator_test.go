package leads

import (
	"context"
	"sync"
	"testing"
	"time"

	"presales_backend/internal/callgateway"
	"presales_backend/internal/leads/domain"
	"presales_backend/internal/leads/repository"
	"presales_backend/internal/leads/service"
	"presales_backend/platform/apperr"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory LeadsRepository mirroring the SQL guard clauses.
type fakeRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*repository.Lead
}

func newFakeRepo(leads ...*repository.Lead) *fakeRepo {
	r := &fakeRepo{leads: make(map[uuid.UUID]*repository.Lead)}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeRepo) get(id uuid.UUID) *repository.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id]
}

func (r *fakeRepo) Create(_ context.Context, p repository.CreateParams) (repository.Lead, error) {
	lead := repository.Lead{ID: uuid.New(), Name: p.Name, Phone: p.Phone, Email: p.Email, State: domain.StatePending}
	r.mu.Lock()
	r.leads[lead.ID] = &lead
	r.mu.Unlock()
	return lead, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		return *l, nil
	}
	return repository.Lead{}, apperr.NotFound("lead not found")
}

func (r *fakeRepo) GetByCallID(_ context.Context, callID string) (repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.LastCallID != nil && *l.LastCallID == callID {
			return *l, nil
		}
	}
	return repository.Lead{}, apperr.NotFound("no lead for call")
}

func (r *fakeRepo) List(_ context.Context, _ repository.ListFilter) ([]repository.Lead, error) {
	return nil, nil
}

func (r *fakeRepo) ClaimDue(_ context.Context, limit int) ([]repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []repository.Lead
	now := time.Now()
	for _, l := range r.leads {
		if len(claimed) >= limit {
			break
		}
		if (l.State == domain.StatePending || l.State == domain.StateRetrying) &&
			l.NextAttemptAt != nil && !l.NextAttemptAt.After(now) {
			l.State = domain.StateDialing
			claimed = append(claimed, *l)
		}
	}
	return claimed, nil
}

func (r *fakeRepo) ClaimForDial(_ context.Context, id uuid.UUID) (repository.Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return repository.Lead{}, false, apperr.NotFound("lead not found")
	}
	if l.State != domain.StatePending && l.State != domain.StateRetrying {
		return repository.Lead{}, false, nil
	}
	l.State = domain.StateDialing
	return *l, true, nil
}

func (r *fakeRepo) Transition(_ context.Context, id uuid.UUID, from, to domain.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.State != from {
		return false, nil
	}
	l.State = to
	return true, nil
}

func (r *fakeRepo) MarkInProgress(_ context.Context, id uuid.UUID, callID string, attempt int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.State != domain.StateDialing {
		return false, nil
	}
	now := time.Now()
	l.State = domain.StateInProgress
	l.LastCallID = &callID
	l.Attempts = attempt
	l.LastAttemptAt = &now
	l.NextAttemptAt = nil
	return true, nil
}

func (r *fakeRepo) RecordDialFailure(_ context.Context, id uuid.UUID, attempt int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.State != domain.StateDialing {
		return false, nil
	}
	l.State = domain.StateMissed
	l.Attempts = attempt
	l.NextAttemptAt = nil
	return true, nil
}

func (r *fakeRepo) ScheduleRetry(_ context.Context, id uuid.UUID, nextAttemptAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.State != domain.StateMissed {
		return false, nil
	}
	l.State = domain.StateRetrying
	l.NextAttemptAt = &nextAttemptAt
	return true, nil
}

func (r *fakeRepo) ScheduleCallback(_ context.Context, id uuid.UUID, callbackAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || (l.State != domain.StateAnswered && l.State != domain.StateCompleted) {
		return false, nil
	}
	l.State = domain.StateRetrying
	l.NextAttemptAt = &callbackAt
	l.CallbackAt = &callbackAt
	l.Attempts = 0
	l.ChatSentAt = nil
	l.EmailSentAt = nil
	return true, nil
}

func (r *fakeRepo) MarkChannelSent(_ context.Context, id uuid.UUID, channel domain.Channel, from, to domain.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.State != from {
		return false, nil
	}
	now := time.Now()
	switch channel {
	case domain.ChannelChat:
		l.ChatSentAt = &now
	case domain.ChannelEmail:
		l.EmailSentAt = &now
	}
	l.State = to
	l.NextAttemptAt = nil
	return true, nil
}

func (r *fakeRepo) SaveCallReport(_ context.Context, id uuid.UUID, callID string, report repository.CallReport) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.LastCallID == nil || *l.LastCallID != callID {
		return false, nil
	}
	if l.State != domain.StateAnswered && l.State != domain.StateInProgress {
		return false, nil
	}
	l.State = domain.StateCompleted
	l.Summary = report.Summary
	l.SuccessEvaluation = report.SuccessEvaluation
	l.StructuredData = report.StructuredData
	return true, nil
}

func (r *fakeRepo) MarkAnsweredByReply(_ context.Context, id uuid.UUID, channel domain.Channel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return false, nil
	}
	switch l.State {
	case domain.StateEscalatingChat, domain.StateEscalatingEmail, domain.StateExhausted:
		l.State = domain.StateAnswered
		reason := string(channel) + "_reply"
		l.LastEndReason = &reason
		return true, nil
	}
	return false, nil
}

func (r *fakeRepo) StuckInFlight(_ context.Context, cutoff time.Time, limit int) ([]repository.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stuck []repository.Lead
	for _, l := range r.leads {
		if len(stuck) >= limit {
			break
		}
		if domain.IsCallInFlight(l.State) && l.LastAttemptAt != nil && l.LastAttemptAt.Before(cutoff) {
			stuck = append(stuck, *l)
		}
	}
	return stuck, nil
}

func (r *fakeRepo) CountByState(_ context.Context) (map[domain.State]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.State]int)
	for _, l := range r.leads {
		counts[l.State]++
	}
	return counts, nil
}

var _ repository.LeadsRepository = (*fakeRepo)(nil)

// fakeDialer records placements and returns scripted results.
type fakeDialer struct {
	mu       sync.Mutex
	placed   []callgateway.PlaceCallParams
	err      error
	details  callgateway.CallDetails
	getErr   error
	nextCall int
}

func (d *fakeDialer) PlaceCall(_ context.Context, p callgateway.PlaceCallParams) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.placed = append(d.placed, p)
	d.nextCall++
	return "call-" + string(rune('0'+d.nextCall)), nil
}

func (d *fakeDialer) GetCall(_ context.Context, _ string) (callgateway.CallDetails, error) {
	if d.getErr != nil {
		return callgateway.CallDetails{}, d.getErr
	}
	return d.details, nil
}

type fakeChat struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (c *fakeChat) SendMessage(_ context.Context, phoneNumber, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return apperr.Unavailable("chat bridge down")
	}
	c.sent = append(c.sent, phoneNumber)
	return nil
}

type fakeMail struct {
	mu   sync.Mutex
	sent []uuid.UUID
}

func (m *fakeMail) SendOutreachEmail(_ context.Context, _, _ string, leadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, leadID)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestOrchestrator(repo repository.LeadsRepository, dialer callgateway.Dialer, chat *fakeChat, mail *fakeMail) *Orchestrator {
	return NewOrchestrator(OrchestratorParams{
		Repo:         repo,
		Dialer:       dialer,
		Chat:         chat,
		Mail:         mail,
		Policy:       domain.DefaultRetryPolicy(),
		ChatEnabled:  true,
		EmailEnabled: true,
		Log:          logger.New("test"),
	})
}

func TestEngagePlacesCallAndStoresHandle(t *testing.T) {
	now := time.Now()
	lead := &repository.Lead{ID: uuid.New(), Name: "Ada", Phone: "+918877665544", State: domain.StateDialing, NextAttemptAt: &now}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{}
	o := newTestOrchestrator(repo, dialer, &fakeChat{}, &fakeMail{})

	o.Engage(context.Background(), *lead)

	got := repo.get(lead.ID)
	if got.State != domain.StateInProgress {
		t.Fatalf("state = %s, want in_progress", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.LastCallID == nil {
		t.Error("call handle not stored")
	}
	if len(dialer.placed) != 1 || dialer.placed[0].Attempt != 1 {
		t.Errorf("unexpected placements: %+v", dialer.placed)
	}
}

func TestEngagePermanentFailureEscalatesWithoutRetries(t *testing.T) {
	email := "ada@example.com"
	lead := &repository.Lead{ID: uuid.New(), Name: "Ada", Phone: "bogus", Email: &email, State: domain.StateDialing}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{err: apperr.Validation("phone number is not diallable")}
	chat := &fakeChat{}
	mail := &fakeMail{}
	o := newTestOrchestrator(repo, dialer, chat, mail)

	o.Engage(context.Background(), *lead)

	got := repo.get(lead.ID)
	if got.State != domain.StateExhausted {
		t.Fatalf("state = %s, want exhausted", got.State)
	}
	if got.Attempts != 0 {
		t.Errorf("permanent failure must not consume an attempt, attempts = %d", got.Attempts)
	}
	if len(chat.sent) != 1 {
		t.Errorf("chat fallback sent %d times, want 1", len(chat.sent))
	}
	if len(mail.sent) != 1 {
		t.Errorf("email fallback sent %d times, want 1", len(mail.sent))
	}
	if got.ChatSentAt == nil || got.EmailSentAt == nil {
		t.Error("escalation channels not stamped as tried")
	}
}

func TestEngageTransientFailureSchedulesRetry(t *testing.T) {
	lead := &repository.Lead{ID: uuid.New(), Name: "Ada", Phone: "+918877665544", State: domain.StateDialing}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{err: apperr.Unavailable("gateway down")}
	o := newTestOrchestrator(repo, dialer, &fakeChat{}, &fakeMail{})

	before := time.Now()
	o.Engage(context.Background(), *lead)

	got := repo.get(lead.ID)
	if got.State != domain.StateRetrying {
		t.Fatalf("state = %s, want retrying", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	wantAt := before.Add(2 * time.Minute)
	if got.NextAttemptAt == nil || got.NextAttemptAt.Before(wantAt.Add(-time.Second)) {
		t.Errorf("next attempt %v, want around %v", got.NextAttemptAt, wantAt)
	}
}

func TestOnCallOutcomeMissedRetriesThenEscalates(t *testing.T) {
	callID := "call-1"
	email := "ada@example.com"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544", Email: &email,
		State: domain.StateInProgress, Attempts: 1, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	chat := &fakeChat{}
	mail := &fakeMail{}
	o := newTestOrchestrator(repo, &fakeDialer{}, chat, mail)

	// First miss: retry scheduled.
	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateRetrying {
		t.Fatalf("after first miss state = %s, want retrying", got.State)
	}

	// Simulate the final allowed attempt missing: escalation chain fires.
	repo.get(lead.ID).State = domain.StateInProgress
	repo.get(lead.ID).Attempts = 3
	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	got := repo.get(lead.ID)
	if got.State != domain.StateExhausted {
		t.Fatalf("after exhausting retries state = %s, want exhausted", got.State)
	}
	if len(chat.sent) != 1 || len(mail.sent) != 1 {
		t.Errorf("each channel must be tried exactly once: chat=%d email=%d", len(chat.sent), len(mail.sent))
	}
}

func TestOnCallOutcomeStaleEventDiscarded(t *testing.T) {
	currentCall := "call-2"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, Attempts: 2, LastCallID: &currentCall,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	if err := o.OnCallOutcome(context.Background(), lead.ID, "call-1", domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateInProgress {
		t.Errorf("stale event must not change state, got %s", got.State)
	}
}

func TestOnCallOutcomeDuplicateEventIsNoOp(t *testing.T) {
	callID := "call-1"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, Attempts: 1, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	first := *repo.get(lead.ID)

	// Redelivery of the same event must not advance anything further.
	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	second := *repo.get(lead.ID)
	if first.State != second.State || !first.NextAttemptAt.Equal(*second.NextAttemptAt) {
		t.Errorf("duplicate event changed lead: %+v vs %+v", first, second)
	}
}

func TestOnCallOutcomeAnswered(t *testing.T) {
	callID := "call-1"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, Attempts: 2, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeAnswered); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateAnswered {
		t.Fatalf("state = %s, want answered", got.State)
	}
}

func TestOnCallReportCompletesAndSchedulesCallback(t *testing.T) {
	callID := "call-1"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateAnswered, Attempts: 1, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	callbackAt := time.Now().Add(2 * time.Hour)
	report := repository.CallReport{Summary: strPtr("wants a callback tomorrow")}
	if err := o.OnCallReport(context.Background(), lead.ID, callID, report, &callbackAt); err != nil {
		t.Fatal(err)
	}

	got := repo.get(lead.ID)
	if got.State != domain.StateRetrying {
		t.Fatalf("state = %s, want retrying (callback scheduled)", got.State)
	}
	if got.Summary == nil || *got.Summary != "wants a callback tomorrow" {
		t.Error("report summary not stored")
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.Equal(callbackAt) {
		t.Errorf("next attempt %v, want %v", got.NextAttemptAt, callbackAt)
	}
}

func TestCallbackOutsideHorizonIgnored(t *testing.T) {
	callID := "call-1"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateAnswered, Attempts: 1, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	past := time.Now().Add(-time.Hour)
	if err := o.OnCallReport(context.Background(), lead.ID, callID, repository.CallReport{}, &past); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateCompleted {
		t.Fatalf("past callback must be ignored, state = %s", got.State)
	}
}

func TestReconcileForcesMissedAndRetries(t *testing.T) {
	callID := "call-1"
	stale := time.Now().Add(-time.Hour)
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, Attempts: 1, LastCallID: &callID, LastAttemptAt: &stale,
	}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{details: callgateway.CallDetails{ID: callID, Status: "queued"}}
	o := newTestOrchestrator(repo, dialer, &fakeChat{}, &fakeMail{})

	n, err := o.Reconcile(context.Background(), time.Now().Add(-10*time.Minute), 100)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("resolved %d leads, want 1", n)
	}
	if got := repo.get(lead.ID); got.State != domain.StateRetrying {
		t.Fatalf("state = %s, want retrying", got.State)
	}
}

func TestReconcileHonorsGatewayCompleted(t *testing.T) {
	callID := "call-1"
	stale := time.Now().Add(-time.Hour)
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, Attempts: 1, LastCallID: &callID, LastAttemptAt: &stale,
	}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{details: callgateway.CallDetails{ID: callID, Status: "completed"}}
	o := newTestOrchestrator(repo, dialer, &fakeChat{}, &fakeMail{})

	if _, err := o.Reconcile(context.Background(), time.Now().Add(-10*time.Minute), 100); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateAnswered {
		t.Fatalf("state = %s, want answered", got.State)
	}
}

func TestResolveEmailReply(t *testing.T) {
	lead := &repository.Lead{ID: uuid.New(), Name: "Ada", Phone: "+918877665544", State: domain.StateExhausted}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	if err := o.ResolveEmailReply(context.Background(), lead.ID, "sure, call me"); err != nil {
		t.Fatal(err)
	}
	if got := repo.get(lead.ID); got.State != domain.StateAnswered {
		t.Fatalf("state = %s, want answered", got.State)
	}

	// A second reply is a no-op.
	if err := o.ResolveEmailReply(context.Background(), lead.ID, "hello again"); err != nil {
		t.Fatal(err)
	}
}

func TestMarkRunningGuardsConcurrentEngagement(t *testing.T) {
	lead := &repository.Lead{ID: uuid.New(), Name: "Ada", Phone: "+918877665544", State: domain.StateDialing}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	if !o.markRunning(lead.ID) {
		t.Fatal("first markRunning should succeed")
	}
	if o.markRunning(lead.ID) {
		t.Fatal("second markRunning should be rejected while active")
	}
	o.markComplete(lead.ID)
	if !o.markRunning(lead.ID) {
		t.Fatal("markRunning should succeed after completion")
	}
}

func TestCallbackReengagementResetsAttempts(t *testing.T) {
	callID := "call-1"
	now := time.Now()
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateAnswered, Attempts: 3, LastCallID: &callID,
		ChatSentAt: &now, EmailSentAt: &now,
	}
	repo := newFakeRepo(lead)
	dialer := &fakeDialer{}
	o := newTestOrchestrator(repo, dialer, &fakeChat{}, &fakeMail{})

	callbackAt := time.Now().Add(time.Hour)
	if err := o.OnCallReport(context.Background(), lead.ID, callID, repository.CallReport{}, &callbackAt); err != nil {
		t.Fatal(err)
	}

	got := repo.get(lead.ID)
	if got.State != domain.StateRetrying {
		t.Fatalf("state = %s, want retrying", got.State)
	}
	if got.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0 after callback re-engagement", got.Attempts)
	}
	if got.ChatSentAt != nil || got.EmailSentAt != nil {
		t.Error("channel stamps must reset for the fresh engagement")
	}

	// Re-dialing starts a fresh campaign within the attempt cap.
	if err := o.CallNow(context.Background(), lead.ID); err != nil {
		t.Fatal(err)
	}
	got = repo.get(lead.ID)
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 on the callback dial", got.Attempts)
	}
	if max := o.policy.MaxAttempts; got.Attempts > max {
		t.Fatalf("attempts = %d exceeds max %d", got.Attempts, max)
	}
}

// contestedRepo simulates a lead resolved by another actor between the
// escalation read and the channel claim.
type contestedRepo struct {
	*fakeRepo
}

func (r *contestedRepo) MarkChannelSent(_ context.Context, _ uuid.UUID, _ domain.Channel, _, _ domain.State) (bool, error) {
	return false, nil
}

func TestEscalationDoesNotSendWhenChannelClaimLost(t *testing.T) {
	callID := "call-1"
	email := "ada@example.com"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544", Email: &email,
		State: domain.StateInProgress, Attempts: 3, LastCallID: &callID,
	}
	repo := &contestedRepo{fakeRepo: newFakeRepo(lead)}
	chat := &fakeChat{}
	mail := &fakeMail{}
	o := newTestOrchestrator(repo, &fakeDialer{}, chat, mail)

	if err := o.OnCallOutcome(context.Background(), lead.ID, callID, domain.OutcomeMissed); err != nil {
		t.Fatal(err)
	}
	if len(chat.sent) != 0 || len(mail.sent) != 0 {
		t.Fatalf("losing the channel claim must suppress the send: chat=%d email=%d", len(chat.sent), len(mail.sent))
	}
}

func TestLeadIDByCallID(t *testing.T) {
	callID := "call-1"
	lead := &repository.Lead{
		ID: uuid.New(), Name: "Ada", Phone: "+918877665544",
		State: domain.StateInProgress, LastCallID: &callID,
	}
	repo := newFakeRepo(lead)
	o := newTestOrchestrator(repo, &fakeDialer{}, &fakeChat{}, &fakeMail{})

	got, err := o.LeadIDByCallID(context.Background(), callID)
	if err != nil {
		t.Fatal(err)
	}
	if got != lead.ID {
		t.Fatalf("lead = %s, want %s", got, lead.ID)
	}

	if _, err := o.LeadIDByCallID(context.Background(), "call-unknown"); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestStatsCountsLeadsByState(t *testing.T) {
	repo := newFakeRepo(
		&repository.Lead{ID: uuid.New(), State: domain.StatePending},
		&repository.Lead{ID: uuid.New(), State: domain.StatePending},
		&repository.Lead{ID: uuid.New(), State: domain.StateExhausted},
	)
	svc := service.New(repo, nil)

	counts, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[domain.StatePending] != 2 || counts[domain.StateExhausted] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
