package repository

import (
	"context"
	"errors"
	"time"

	"presales_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, name, state, start_at, wave_size, wave_interval_seconds,
	total_leads, total_waves, dispatched_waves, created_at, updated_at`

// Repository is the pgx-backed JobsRepository.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ JobsRepository = (*Repository)(nil)

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	var state string
	var intervalSeconds int
	err := row.Scan(&j.ID, &j.Name, &state, &j.StartAt, &j.WaveSize, &intervalSeconds,
		&j.TotalLeads, &j.TotalWaves, &j.DispatchedWaves, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return Job{}, err
	}
	j.State = State(state)
	j.WaveInterval = time.Duration(intervalSeconds) * time.Second
	return j, nil
}

func (r *Repository) CreateJob(ctx context.Context, p CreateJobParams) (Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Job{}, err
	}
	defer tx.Rollback(ctx)

	totalWaves := (len(p.LeadIDs) + p.WaveSize - 1) / p.WaveSize

	row := tx.QueryRow(ctx,
		`INSERT INTO batch_jobs (name, state, start_at, wave_size, wave_interval_seconds, total_leads, total_waves)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+jobColumns,
		p.Name, string(StateScheduled), p.StartAt, p.WaveSize,
		int(p.WaveInterval/time.Second), len(p.LeadIDs), totalWaves)
	job, err := scanJob(row)
	if err != nil {
		return Job{}, err
	}

	rows := make([][]any, 0, len(p.LeadIDs))
	for i, leadID := range p.LeadIDs {
		rows = append(rows, []any{job.ID, leadID, i/p.WaveSize + 1})
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"batch_leads"},
		[]string{"job_id", "lead_id", "wave"}, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return Job{}, apperr.Validation("batch references an unknown lead")
			case "23505":
				return Job{}, apperr.Validation("batch lists the same lead twice")
			}
		}
		return Job{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM batch_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, apperr.NotFound("batch job not found")
	}
	return job, err
}

func (r *Repository) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM batch_jobs ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *Repository) WaveLeads(ctx context.Context, jobID uuid.UUID, wave int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT lead_id FROM batch_leads WHERE job_id = $1 AND wave = $2 ORDER BY lead_id`,
		jobID, wave)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leadIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		leadIDs = append(leadIDs, id)
	}
	return leadIDs, rows.Err()
}

func (r *Repository) TransitionJob(ctx context.Context, id uuid.UUID, from, to State) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE batch_jobs SET state = $3, updated_at = now() WHERE id = $1 AND state = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) RecordWaveDispatched(ctx context.Context, jobID uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE batch_jobs SET dispatched_waves = dispatched_waves + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING `+jobColumns,
		jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, apperr.NotFound("batch job not found")
	}
	return job, err
}

func (r *Repository) RecordLeadResult(ctx context.Context, jobID, leadID uuid.UUID, dispatchError *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE batch_leads SET dispatched_at = now(), dispatch_error = $3
		 WHERE job_id = $1 AND lead_id = $2`,
		jobID, leadID, dispatchError)
	return err
}

func (r *Repository) FailedLeads(ctx context.Context, jobID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT job_id, lead_id, wave, dispatched_at, dispatch_error
		 FROM batch_leads
		 WHERE job_id = $1 AND dispatch_error IS NOT NULL
		 ORDER BY wave, lead_id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.JobID, &m.LeadID, &m.Wave, &m.DispatchedAt, &m.DispatchError); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *Repository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM batch_jobs WHERE id = $1`, id)
	return err
}
