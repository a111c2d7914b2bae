// Package leads provides the lead engagement bounded context module.
package leads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"presales_backend/internal/callgateway"
	"presales_backend/internal/events"
	"presales_backend/internal/leads/domain"
	"presales_backend/internal/leads/repository"
	"presales_backend/platform/apperr"
	"presales_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ChatSender delivers the chat-channel fallback message.
type ChatSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
}

// EmailSender delivers the email-channel fallback message.
type EmailSender interface {
	SendOutreachEmail(ctx context.Context, toEmail, name string, leadID uuid.UUID) error
}

// CallbackScheduler arms a durable one-shot trigger for a requested callback.
type CallbackScheduler interface {
	ScheduleLeadCallback(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

const chatFallbackMessage = "Hi %s, we tried calling you a few times but could not reach you. " +
	"Reply here whenever suits you and we will pick it up right away."

// Orchestrator drives each lead through the engagement state machine:
// dial, retry with backoff, escalate across channels, exhaust.
type Orchestrator struct {
	repo            repository.LeadsRepository
	dialer          callgateway.Dialer
	chat            ChatSender
	mail            EmailSender
	callbacks       CallbackScheduler
	policy          domain.RetryPolicy
	chatEnabled     bool
	emailEnabled    bool
	callbackHorizon time.Duration
	concurrency     int
	eventBus        events.Bus
	log             *logger.Logger

	// In-process guard on top of the DB claim: one engagement run per
	// lead at a time.
	activeRuns map[uuid.UUID]bool
	runsMu     sync.Mutex
}

// OrchestratorParams collects the orchestrator's dependencies.
type OrchestratorParams struct {
	Repo            repository.LeadsRepository
	Dialer          callgateway.Dialer
	Chat            ChatSender
	Mail            EmailSender
	Callbacks       CallbackScheduler
	Policy          domain.RetryPolicy
	ChatEnabled     bool
	EmailEnabled    bool
	CallbackHorizon time.Duration
	Concurrency     int
	EventBus        events.Bus
	Log             *logger.Logger
}

// NewOrchestrator wires the engagement orchestrator.
func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = 10
	}
	horizon := p.CallbackHorizon
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &Orchestrator{
		repo:            p.Repo,
		dialer:          p.Dialer,
		chat:            p.Chat,
		mail:            p.Mail,
		callbacks:       p.Callbacks,
		policy:          p.Policy,
		chatEnabled:     p.ChatEnabled,
		emailEnabled:    p.EmailEnabled,
		callbackHorizon: horizon,
		concurrency:     concurrency,
		eventBus:        p.EventBus,
		log:             p.Log,
		activeRuns:      make(map[uuid.UUID]bool),
	}
}

// markRunning attempts to mark an engagement run as active. Returns false
// if one is already running for the lead.
func (o *Orchestrator) markRunning(leadID uuid.UUID) bool {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()

	if o.activeRuns[leadID] {
		return false
	}
	o.activeRuns[leadID] = true
	return true
}

// markComplete removes the active run marker.
func (o *Orchestrator) markComplete(leadID uuid.UUID) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	delete(o.activeRuns, leadID)
}

// ProcessDue claims all due leads and dials them with bounded parallelism.
// Returns the number of leads claimed.
func (o *Orchestrator) ProcessDue(ctx context.Context, limit int) (int, error) {
	due, err := o.repo.ClaimDue(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, lead := range due {
		lead := lead
		g.Go(func() error {
			o.Engage(gctx, lead)
			return nil
		})
	}
	_ = g.Wait()
	return len(due), nil
}

// CallNow claims a single lead and dials it immediately, for manual and
// batch-triggered engagements. Returns a conflict error when the lead is
// not in a dialable state.
func (o *Orchestrator) CallNow(ctx context.Context, leadID uuid.UUID) error {
	lead, ok, err := o.repo.ClaimForDial(ctx, leadID)
	if err != nil {
		return err
	}
	if !ok {
		current, err := o.repo.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		return apperr.Conflict("lead is not in a dialable state: " + string(current.State))
	}
	o.Engage(ctx, lead)
	return nil
}

// Engage places the call for a lead that has been claimed into dialing and
// applies the outcome of the placement itself. Call results arrive later
// through OnCallOutcome.
func (o *Orchestrator) Engage(ctx context.Context, lead repository.Lead) {
	if !o.markRunning(lead.ID) {
		o.log.Info("engagement already running for lead, skipping", "leadId", lead.ID)
		return
	}
	defer o.markComplete(lead.ID)

	attempt := lead.Attempts + 1
	callID, err := o.dialer.PlaceCall(ctx, callgateway.PlaceCallParams{
		LeadID:  lead.ID,
		Phone:   lead.Phone,
		Name:    lead.Name,
		Attempt: attempt,
	})
	if err != nil {
		o.onPlacementFailure(ctx, lead, attempt, err)
		return
	}

	if ok, err := o.repo.MarkInProgress(ctx, lead.ID, callID, attempt); err != nil {
		o.log.Error("failed to record call handle", "error", err, "leadId", lead.ID, "callId", callID)
		return
	} else if !ok {
		o.log.Warn("lead left dialing state before call handle was stored", "leadId", lead.ID, "callId", callID)
		return
	}

	o.publish(ctx, events.CallPlaced{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, CallID: callID, Attempt: attempt})
	o.log.CallEvent("call placed", lead.ID.String(), callID)
}

// onPlacementFailure distinguishes permanent submission failures, which
// skip straight to escalation without consuming an attempt, from transient
// gateway failures, which consume an attempt and follow the retry flow.
func (o *Orchestrator) onPlacementFailure(ctx context.Context, lead repository.Lead, attempt int, err error) {
	if apperr.GetKind(err) == apperr.KindValidation {
		o.log.Warn("call submission permanently rejected, escalating", "leadId", lead.ID, "error", err)
		o.escalate(ctx, lead, domain.StateDialing)
		return
	}

	o.log.Error("call placement failed", "leadId", lead.ID, "attempt", attempt, "error", err)
	if ok, err := o.repo.RecordDialFailure(ctx, lead.ID, attempt); err != nil {
		o.log.Error("failed to record dial failure", "error", err, "leadId", lead.ID)
		return
	} else if !ok {
		return
	}
	lead.Attempts = attempt
	o.decideAfterMiss(ctx, lead)
}

// OnCallOutcome applies a classified terminal call outcome delivered by the
// event ingestor. Stale events, correlated to a superseded call ID, are
// discarded without effect.
func (o *Orchestrator) OnCallOutcome(ctx context.Context, leadID uuid.UUID, callID string, outcome domain.Outcome) error {
	lead, err := o.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	if lead.LastCallID == nil || *lead.LastCallID != callID {
		o.log.Debug("discarding stale call event", "leadId", leadID, "callId", callID)
		return nil
	}

	switch outcome {
	case domain.OutcomeAnswered, domain.OutcomeCompleted:
		ok, err := o.repo.Transition(ctx, leadID, domain.StateInProgress, domain.StateAnswered)
		if err != nil {
			return err
		}
		if !ok {
			o.log.Debug("answered event for lead no longer in progress, ignoring", "leadId", leadID, "state", lead.State)
			return nil
		}
		o.publish(ctx, events.LeadAnswered{BaseEvent: events.NewBaseEvent(), LeadID: leadID, CallID: callID, Attempt: lead.Attempts})
		o.log.CallEvent("lead answered", leadID.String(), callID)
		return nil

	case domain.OutcomeMissed:
		ok, err := o.repo.Transition(ctx, leadID, domain.StateInProgress, domain.StateMissed)
		if err != nil {
			return err
		}
		if !ok {
			// Never regress a more advanced state backward.
			o.log.Debug("missed event for lead no longer in progress, ignoring", "leadId", leadID, "state", lead.State)
			return nil
		}
		lead.State = domain.StateMissed
		o.publish(ctx, events.CallOutcomeRecorded{BaseEvent: events.NewBaseEvent(), LeadID: leadID, CallID: callID, Outcome: string(outcome), Attempt: lead.Attempts})
		o.decideAfterMiss(ctx, lead)
		return nil
	}

	o.log.Debug("ignoring non-terminal call outcome", "leadId", leadID, "outcome", outcome)
	return nil
}

// OnCallReport stores the end-of-call analysis payload and, when the lead
// asked to be called back at a specific time, re-arms the scheduler.
func (o *Orchestrator) OnCallReport(ctx context.Context, leadID uuid.UUID, callID string, report repository.CallReport, callbackAt *time.Time) error {
	lead, err := o.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.LastCallID == nil || *lead.LastCallID != callID {
		o.log.Debug("discarding call report for superseded call", "leadId", leadID, "callId", callID)
		return nil
	}

	ok, err := o.repo.SaveCallReport(ctx, leadID, callID, report)
	if err != nil {
		return err
	}
	if !ok {
		o.log.Debug("call report for lead not awaiting one, ignoring", "leadId", leadID, "state", lead.State)
		return nil
	}
	o.publish(ctx, events.CallOutcomeRecorded{BaseEvent: events.NewBaseEvent(), LeadID: leadID, CallID: callID, Outcome: string(domain.OutcomeCompleted), Attempt: lead.Attempts})

	if callbackAt != nil {
		o.scheduleCallback(ctx, leadID, *callbackAt)
	}
	return nil
}

func (o *Orchestrator) scheduleCallback(ctx context.Context, leadID uuid.UUID, at time.Time) {
	now := time.Now()
	if !at.After(now) || at.After(now.Add(o.callbackHorizon)) {
		o.log.Warn("requested callback time outside allowed horizon, ignoring", "leadId", leadID, "callbackAt", at)
		return
	}

	ok, err := o.repo.ScheduleCallback(ctx, leadID, at)
	if err != nil {
		o.log.Error("failed to schedule callback", "error", err, "leadId", leadID)
		return
	}
	if !ok {
		return
	}

	if o.callbacks != nil {
		if err := o.callbacks.ScheduleLeadCallback(ctx, leadID, at); err != nil {
			// The tick loop still picks the lead up at next_attempt_at.
			o.log.Error("failed to arm callback trigger", "error", err, "leadId", leadID)
		}
	}
	o.publish(ctx, events.CallbackRequested{BaseEvent: events.NewBaseEvent(), LeadID: leadID, CallbackAt: at})
	o.log.Info("callback scheduled", "leadId", leadID, "callbackAt", at)
}

// decideAfterMiss applies the retry policy to a lead that just missed.
func (o *Orchestrator) decideAfterMiss(ctx context.Context, lead repository.Lead) {
	delay, ok := o.policy.NextDelay(lead.Attempts)
	if !ok {
		o.escalate(ctx, lead, domain.StateMissed)
		return
	}

	nextAt := time.Now().Add(delay)
	scheduled, err := o.repo.ScheduleRetry(ctx, lead.ID, nextAt)
	if err != nil {
		o.log.Error("failed to schedule retry", "error", err, "leadId", lead.ID)
		return
	}
	if !scheduled {
		return
	}
	o.publish(ctx, events.CallRetryScheduled{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, Attempt: lead.Attempts, NextAttempt: nextAt})
	o.log.Info("retry scheduled", "leadId", lead.ID, "attempt", lead.Attempts, "nextAttemptAt", nextAt)
}

// escalate walks the fallback channel cascade: chat, then email, then
// exhausted. The channel is claimed with a CAS before anything is sent,
// so a lead resolved concurrently never receives a duplicate outreach.
// Sends are fire-and-forget; failures are logged and the channel stays
// marked tried, never re-attempted.
func (o *Orchestrator) escalate(ctx context.Context, lead repository.Lead, from domain.State) {
	state := from
	for {
		next, channel, ok := domain.NextEscalation(state)
		if !ok {
			return
		}

		if next == domain.StateExhausted {
			moved, err := o.repo.Transition(ctx, lead.ID, state, domain.StateExhausted)
			if err != nil {
				o.log.Error("failed to mark lead exhausted", "error", err, "leadId", lead.ID)
				return
			}
			if moved {
				o.publish(ctx, events.LeadExhausted{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, Attempts: lead.Attempts})
				o.log.Info("lead exhausted, all channels tried", "leadId", lead.ID, "attempts", lead.Attempts)
			}
			return
		}

		moved, err := o.repo.MarkChannelSent(ctx, lead.ID, channel, state, next)
		if err != nil {
			o.log.Error("failed to record escalation", "error", err, "leadId", lead.ID, "channel", channel)
			return
		}
		if !moved {
			o.log.Debug("lead moved out of escalation path concurrently", "leadId", lead.ID, "state", state)
			return
		}

		switch channel {
		case domain.ChannelChat:
			o.sendChatFallback(ctx, lead)
		case domain.ChannelEmail:
			o.sendEmailFallback(ctx, lead)
		}

		o.publish(ctx, events.LeadEscalated{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, Channel: string(channel)})
		state = next
	}
}

func (o *Orchestrator) sendChatFallback(ctx context.Context, lead repository.Lead) {
	if !o.chatEnabled || o.chat == nil {
		o.log.Info("chat channel disabled, marking tried without send", "leadId", lead.ID)
		return
	}
	if lead.ChatSentAt != nil {
		return
	}
	msg := formatChatFallback(lead.Name)
	if err := o.chat.SendMessage(ctx, lead.Phone, msg); err != nil {
		o.log.Error("chat fallback send failed", "error", err, "leadId", lead.ID)
	}
}

func (o *Orchestrator) sendEmailFallback(ctx context.Context, lead repository.Lead) {
	if !o.emailEnabled || o.mail == nil {
		o.log.Info("email channel disabled, marking tried without send", "leadId", lead.ID)
		return
	}
	if lead.Email == nil || *lead.Email == "" {
		o.log.Info("lead has no email address, marking tried without send", "leadId", lead.ID)
		return
	}
	if lead.EmailSentAt != nil {
		return
	}
	if err := o.mail.SendOutreachEmail(ctx, *lead.Email, lead.Name, lead.ID); err != nil {
		o.log.Error("email fallback send failed", "error", err, "leadId", lead.ID)
	}
}

// LeadIDByCallID resolves the lead that owns the given call handle. The
// event ingestor falls back to it for events whose metadata carries no
// lead id.
func (o *Orchestrator) LeadIDByCallID(ctx context.Context, callID string) (uuid.UUID, error) {
	lead, err := o.repo.GetByCallID(ctx, callID)
	if err != nil {
		return uuid.Nil, err
	}
	return lead.ID, nil
}

// ResolveEmailReply marks an escalated or exhausted lead as answered after
// an inbound email reply.
func (o *Orchestrator) ResolveEmailReply(ctx context.Context, leadID uuid.UUID, excerpt string) error {
	ok, err := o.repo.MarkAnsweredByReply(ctx, leadID, domain.ChannelEmail)
	if err != nil {
		return err
	}
	if !ok {
		o.log.Debug("email reply for lead not awaiting one, ignoring", "leadId", leadID)
		return nil
	}
	o.publish(ctx, events.LeadReplied{BaseEvent: events.NewBaseEvent(), LeadID: leadID, Channel: string(domain.ChannelEmail), Excerpt: excerpt})
	o.log.Info("lead resolved by email reply", "leadId", leadID)
	return nil
}

// Reconcile forces resolution of leads stuck with an in-flight call beyond
// the timeout. The gateway is asked for the call's fate first; without an
// answer the call is treated as missed.
func (o *Orchestrator) Reconcile(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stuck, err := o.repo.StuckInFlight(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, lead := range stuck {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		if o.reconcileLead(ctx, lead) {
			resolved++
		}
	}
	return resolved, nil
}

func (o *Orchestrator) reconcileLead(ctx context.Context, lead repository.Lead) bool {
	outcome := domain.OutcomeUnknown
	callID := ""
	if lead.LastCallID != nil {
		callID = *lead.LastCallID
	}

	if callID != "" && o.dialer != nil {
		details, err := o.dialer.GetCall(ctx, callID)
		switch {
		case err == nil:
			outcome = domain.ClassifyGatewayStatus(details.Status)
		case apperr.GetKind(err) == apperr.KindNotFound:
			outcome = domain.OutcomeMissed
		default:
			o.log.Warn("gateway lookup failed during reconciliation", "error", err, "leadId", lead.ID, "callId", callID)
		}
	}

	o.log.Warn("reconciling stuck lead", "leadId", lead.ID, "state", lead.State, "callId", callID, "outcome", outcome)

	if outcome == domain.OutcomeCompleted && lead.State == domain.StateInProgress {
		moved, err := o.repo.Transition(ctx, lead.ID, domain.StateInProgress, domain.StateAnswered)
		if err != nil || !moved {
			return false
		}
		o.publish(ctx, events.LeadRecovered{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, CallID: callID, Outcome: string(domain.OutcomeAnswered)})
		return true
	}

	// Everything else resolves to missed and re-enters the retry flow.
	var moved bool
	var err error
	if lead.State == domain.StateDialing {
		moved, err = o.repo.RecordDialFailure(ctx, lead.ID, lead.Attempts+1)
		if moved {
			lead.Attempts++
		}
	} else {
		moved, err = o.repo.Transition(ctx, lead.ID, lead.State, domain.StateMissed)
	}
	if err != nil {
		o.log.Error("failed to force stuck lead to missed", "error", err, "leadId", lead.ID)
		return false
	}
	if !moved {
		return false
	}
	lead.State = domain.StateMissed
	o.publish(ctx, events.LeadRecovered{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, CallID: callID, Outcome: string(domain.OutcomeMissed)})
	o.decideAfterMiss(ctx, lead)
	return true
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.eventBus == nil {
		return
	}
	o.eventBus.Publish(ctx, event)
}

func formatChatFallback(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(chatFallbackMessage, name)
}
