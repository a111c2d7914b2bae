// Package webhook provides the call event ingestion bounded context.
// It receives asynchronous status updates and end-of-call reports from
// the calling gateway and drives lead engagement transitions.
package webhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the call event ledger used for idempotent ingestion.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertEvent records a received call event. Returns false when the same
// event was already recorded, keyed on (call_id, event_type, status).
func (r *Repository) InsertEvent(ctx context.Context, callID, eventType, status string, leadID uuid.UUID, payload []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO call_events (call_id, event_type, status, lead_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id, event_type, status) DO NOTHING
	`, callID, eventType, status, leadID, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
