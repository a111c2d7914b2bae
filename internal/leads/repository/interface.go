package repository

import (
	"context"
	"time"

	"presales_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadsRepository is the persistence contract the orchestrator and services
// depend on. The pgx implementation lives in this package; tests substitute
// in-memory fakes.
type LeadsRepository interface {
	Create(ctx context.Context, p CreateParams) (Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByCallID(ctx context.Context, callID string) (Lead, error)
	List(ctx context.Context, f ListFilter) ([]Lead, error)

	// ClaimDue atomically moves due pending/retrying leads to dialing and
	// returns them. Concurrent claimers never receive the same lead.
	ClaimDue(ctx context.Context, limit int) ([]Lead, error)

	// ClaimForDial moves a single lead to dialing regardless of its
	// next-attempt time, for manual and batch-triggered calls. Returns
	// false when the lead is not in a dialable state.
	ClaimForDial(ctx context.Context, id uuid.UUID) (Lead, bool, error)

	// Transition performs a compare-and-swap state change. Returns false
	// when the lead was not in the expected state.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.State) (bool, error)

	// MarkInProgress records the gateway call handle on a dialing lead.
	MarkInProgress(ctx context.Context, id uuid.UUID, callID string, attempt int) (bool, error)

	// RecordDialFailure moves a dialing lead to missed, consuming an
	// attempt, after a failed placement.
	RecordDialFailure(ctx context.Context, id uuid.UUID, attempt int) (bool, error)

	// ScheduleRetry moves a missed lead back into the retry loop.
	ScheduleRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) (bool, error)

	// ScheduleCallback re-engages an answered or completed lead at the
	// requested time.
	ScheduleCallback(ctx context.Context, id uuid.UUID, callbackAt time.Time) (bool, error)

	// MarkChannelSent transitions into an escalation state and stamps the
	// channel as tried. The stamp is written even when the send failed so
	// a channel is never retried.
	MarkChannelSent(ctx context.Context, id uuid.UUID, channel domain.Channel, from, to domain.State) (bool, error)

	// SaveCallReport stores the end-of-call analysis and completes the lead.
	SaveCallReport(ctx context.Context, id uuid.UUID, callID string, report CallReport) (bool, error)

	// MarkAnsweredByReply resolves an escalated or exhausted lead after an
	// inbound reply on the given channel.
	MarkAnsweredByReply(ctx context.Context, id uuid.UUID, channel domain.Channel) (bool, error)

	// StuckInFlight returns leads whose call has been in flight since
	// before the cutoff.
	StuckInFlight(ctx context.Context, cutoff time.Time, limit int) ([]Lead, error)

	// CountByState returns the number of leads per engagement state.
	CountByState(ctx context.Context) (map[domain.State]int, error)
}
