package repository

import (
	"context"

	"github.com/google/uuid"
)

// JobsRepository persists batch jobs and their wave membership.
type JobsRepository interface {
	// CreateJob inserts the job and its members in one transaction, with
	// leads assigned to waves in submission order.
	CreateJob(ctx context.Context, params CreateJobParams) (Job, error)

	GetJob(ctx context.Context, id uuid.UUID) (Job, error)

	ListJobs(ctx context.Context) ([]Job, error)

	// WaveLeads returns the lead IDs assigned to the given wave.
	WaveLeads(ctx context.Context, jobID uuid.UUID, wave int) ([]uuid.UUID, error)

	// TransitionJob moves the job between states, guarded by the expected
	// current state.
	TransitionJob(ctx context.Context, id uuid.UUID, from, to State) (bool, error)

	// RecordWaveDispatched increments the dispatched wave counter and
	// returns the updated job.
	RecordWaveDispatched(ctx context.Context, jobID uuid.UUID) (Job, error)

	// RecordLeadResult stamps a member as dispatched, with the placement
	// error when the call could not be triggered.
	RecordLeadResult(ctx context.Context, jobID, leadID uuid.UUID, dispatchError *string) error

	// FailedLeads returns the members whose dispatch recorded an error.
	FailedLeads(ctx context.Context, jobID uuid.UUID) ([]Member, error)

	// DeleteJob removes a job and its members. Used to roll back a
	// submission whose wave triggers could not be armed.
	DeleteJob(ctx context.Context, id uuid.UUID) error
}
