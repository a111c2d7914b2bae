package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"presales_backend/internal/leads/domain"
	"presales_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `id, name, phone, email, source, state, attempts,
	next_attempt_at, last_attempt_at, last_call_id, last_end_reason,
	chat_sent_at, email_sent_at, callback_at,
	summary, success_evaluation, structured_data, created_at, updated_at`

// Repository is the pgx-backed LeadsRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a leads repository backed by the given pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ LeadsRepository = (*Repository)(nil)

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var state string
	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Source, &state, &l.Attempts,
		&l.NextAttemptAt, &l.LastAttemptAt, &l.LastCallID, &l.LastEndReason,
		&l.ChatSentAt, &l.EmailSentAt, &l.CallbackAt,
		&l.Summary, &l.SuccessEvaluation, &l.StructuredData, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	l.State = domain.State(state)
	return l, nil
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO leads (name, phone, email, source, state, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING `+leadColumns,
		p.Name, p.Phone, p.Email, p.Source, string(domain.StatePending))
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (r *Repository) GetByCallID(ctx context.Context, callID string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE last_call_id = $1`, callID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("no lead for call")
	}
	return lead, err
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Lead, error) {
	limit := f.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	if f.State != nil {
		query += ` WHERE state = $1`
		args = append(args, string(*f.State))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	var results []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, lead)
	}
	return results, rows.Err()
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so concurrent tick loops never hand
// the same lead to two dialers.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]Lead, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM leads
		WHERE state IN ('pending', 'retrying')
		  AND next_attempt_at IS NOT NULL
		  AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE leads l
	SET state = 'dialing', updated_at = now()
	FROM cte
	WHERE l.id = cte.id
	RETURNING `+qualifiedLeadColumns("l"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results, err := collectLeads(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func qualifiedLeadColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.phone, ` + alias + `.email, ` +
		alias + `.source, ` + alias + `.state, ` + alias + `.attempts, ` +
		alias + `.next_attempt_at, ` + alias + `.last_attempt_at, ` + alias + `.last_call_id, ` +
		alias + `.last_end_reason, ` + alias + `.chat_sent_at, ` + alias + `.email_sent_at, ` +
		alias + `.callback_at, ` + alias + `.summary, ` + alias + `.success_evaluation, ` +
		alias + `.structured_data, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func (r *Repository) ClaimForDial(ctx context.Context, id uuid.UUID) (Lead, bool, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE leads
		 SET state = 'dialing', updated_at = now()
		 WHERE id = $1 AND state IN ('pending', 'retrying')
		 RETURNING `+leadColumns, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, err
	}
	return lead, true, nil
}

func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to domain.State) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET state = $3, updated_at = now()
		 WHERE id = $1 AND state = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkInProgress(ctx context.Context, id uuid.UUID, callID string, attempt int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'in_progress', last_call_id = $2, attempts = $3,
		     last_attempt_at = now(), next_attempt_at = NULL, updated_at = now()
		 WHERE id = $1 AND state = 'dialing'`,
		id, callID, attempt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) RecordDialFailure(ctx context.Context, id uuid.UUID, attempt int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'missed', attempts = $2, last_attempt_at = now(),
		     next_attempt_at = NULL, updated_at = now()
		 WHERE id = $1 AND state = 'dialing'`,
		id, attempt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ScheduleRetry(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'retrying', next_attempt_at = $2, updated_at = now()
		 WHERE id = $1 AND state = 'missed'`,
		id, nextAttemptAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ScheduleCallback re-enters the retry flow at the requested time. A
// callback starts a fresh engagement: the attempt counter and channel
// stamps reset so the full retry ladder and escalation cascade apply again.
func (r *Repository) ScheduleCallback(ctx context.Context, id uuid.UUID, callbackAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'retrying', next_attempt_at = $2, callback_at = $2,
		     attempts = 0, chat_sent_at = NULL, email_sent_at = NULL, updated_at = now()
		 WHERE id = $1 AND state IN ('answered', 'completed')`,
		id, callbackAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkChannelSent(ctx context.Context, id uuid.UUID, channel domain.Channel, from, to domain.State) (bool, error) {
	var column string
	switch channel {
	case domain.ChannelChat:
		column = "chat_sent_at"
	case domain.ChannelEmail:
		column = "email_sent_at"
	default:
		return false, fmt.Errorf("channel %q has no sent marker", channel)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = $3, `+column+` = now(), next_attempt_at = NULL, updated_at = now()
		 WHERE id = $1 AND state = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) SaveCallReport(ctx context.Context, id uuid.UUID, callID string, report CallReport) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'completed', summary = $3, success_evaluation = $4,
		     structured_data = $5, last_end_reason = COALESCE($6, last_end_reason),
		     updated_at = now()
		 WHERE id = $1 AND last_call_id = $2 AND state IN ('answered', 'in_progress')`,
		id, callID, report.Summary, report.SuccessEvaluation, report.StructuredData, report.EndReason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkAnsweredByReply(ctx context.Context, id uuid.UUID, channel domain.Channel) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET state = 'answered', last_end_reason = $2, next_attempt_at = NULL, updated_at = now()
		 WHERE id = $1 AND state IN ('escalating_chat', 'escalating_email', 'exhausted')`,
		id, string(channel)+"_reply")
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) StuckInFlight(ctx context.Context, cutoff time.Time, limit int) ([]Lead, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE state IN ('dialing', 'in_progress')
		   AND COALESCE(last_attempt_at, updated_at) < $1
		 ORDER BY last_attempt_at ASC NULLS FIRST
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (r *Repository) CountByState(ctx context.Context) (map[domain.State]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT state, count(*) FROM leads GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.State]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[domain.State(state)] = n
	}
	return counts, rows.Err()
}
