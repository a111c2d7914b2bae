// Package events carries engagement lifecycle notifications between
// modules without coupling them: the orchestrator publishes outcomes
// (lead answered, channel escalated, wave dispatched) and observers
// such as the metrics collectors subscribe by event name.
package events

import (
	"context"
	"time"
)

// Event is implemented by every notification that crosses module
// boundaries, such as a lead state change or a completed batch wave.
type Event interface {
	// EventName identifies the event type, e.g. "lead.escalated".
	EventName() string
	// OccurredAt reports when the underlying change happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all concrete events.
// Embed it and implement EventName on the outer type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt reports when the underlying change happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a BaseEvent with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events published under a subscribed name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler subscribed to its
	// name. Delivery is asynchronous; the publisher never blocks.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for every handler,
	// returning the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for events whose EventName
	// matches eventName.
	Subscribe(eventName string, handler Handler)
}
