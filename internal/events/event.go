// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"presales_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is registered for engagement.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
	Email  string    `json:"email,omitempty"`
	Source string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// CallPlaced is published when an outbound call has been handed to the gateway.
type CallPlaced struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	CallID  string    `json:"callId"`
	Attempt int       `json:"attempt"`
}

func (e CallPlaced) EventName() string { return "leads.call.placed" }

// CallOutcomeRecorded is published after a terminal call outcome is applied.
type CallOutcomeRecorded struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	CallID   string    `json:"callId"`
	Outcome  string    `json:"outcome"`
	Attempt  int       `json:"attempt"`
	EndedBy  string    `json:"endedBy,omitempty"`
	Duration float64   `json:"durationSeconds,omitempty"`
}

func (e CallOutcomeRecorded) EventName() string { return "leads.call.outcome_recorded" }

// CallRetryScheduled is published when a missed call is scheduled for retry.
type CallRetryScheduled struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	Attempt     int       `json:"attempt"`
	NextAttempt time.Time `json:"nextAttempt"`
}

func (e CallRetryScheduled) EventName() string { return "leads.call.retry_scheduled" }

// LeadEscalated is published when engagement moves to a fallback channel.
type LeadEscalated struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Channel string    `json:"channel"`
}

func (e LeadEscalated) EventName() string { return "leads.escalated" }

// LeadExhausted is published when every engagement channel has been tried
// without reaching the lead.
type LeadExhausted struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	Attempts int       `json:"attempts"`
}

func (e LeadExhausted) EventName() string { return "leads.exhausted" }

// LeadAnswered is published when a call connects and the lead engages.
type LeadAnswered struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	CallID  string    `json:"callId"`
	Attempt int       `json:"attempt"`
}

func (e LeadAnswered) EventName() string { return "leads.answered" }

// CallbackRequested is published when a lead asks to be called back at a
// specific time, extracted from the conversation transcript.
type CallbackRequested struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CallbackAt time.Time `json:"callbackAt"`
}

func (e CallbackRequested) EventName() string { return "leads.callback_requested" }

// LeadRecovered is published when the reconciler resolves a lead that was
// stuck in an in-flight call state.
type LeadRecovered struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	CallID  string    `json:"callId,omitempty"`
	Outcome string    `json:"outcome"`
}

func (e LeadRecovered) EventName() string { return "leads.recovered" }

// LeadReplied is published when an inbound reply (chat or email) is matched
// back to a lead.
type LeadReplied struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Channel string    `json:"channel"`
	Excerpt string    `json:"excerpt,omitempty"`
}

func (e LeadReplied) EventName() string { return "leads.replied" }

// =============================================================================
// Batch Domain Events
// =============================================================================

// BatchSubmitted is published when a batch job has been accepted and its
// waves scheduled.
type BatchSubmitted struct {
	BaseEvent
	BatchID   uuid.UUID `json:"batchId"`
	LeadCount int       `json:"leadCount"`
	WaveCount int       `json:"waveCount"`
	Parallel  int       `json:"parallel"`
}

func (e BatchSubmitted) EventName() string { return "batch.submitted" }

// BatchWaveDispatched is published after a wave of calls has been fired.
type BatchWaveDispatched struct {
	BaseEvent
	BatchID    uuid.UUID `json:"batchId"`
	Wave       int       `json:"wave"`
	Dispatched int       `json:"dispatched"`
	Failed     int       `json:"failed"`
}

func (e BatchWaveDispatched) EventName() string { return "batch.wave.dispatched" }

// BatchCompleted is published when the final wave of a batch has run.
type BatchCompleted struct {
	BaseEvent
	BatchID uuid.UUID `json:"batchId"`
}

func (e BatchCompleted) EventName() string { return "batch.completed" }

// BatchCancelled is published when a batch is cancelled before completion.
type BatchCancelled struct {
	BaseEvent
	BatchID        uuid.UUID `json:"batchId"`
	WavesCancelled int       `json:"wavesCancelled"`
}

func (e BatchCancelled) EventName() string { return "batch.cancelled" }
