package repository

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a batch job.
type State string

const (
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Job is a scheduled batch of leads dialed in paced waves.
type Job struct {
	ID              uuid.UUID
	Name            string
	State           State
	StartAt         time.Time
	WaveSize        int
	WaveInterval    time.Duration
	TotalLeads      int
	TotalWaves      int
	DispatchedWaves int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Member is a lead's slot within a batch job.
type Member struct {
	JobID         uuid.UUID
	LeadID        uuid.UUID
	Wave          int
	DispatchedAt  *time.Time
	DispatchError *string
}

type CreateJobParams struct {
	Name         string
	StartAt      time.Time
	WaveSize     int
	WaveInterval time.Duration
	LeadIDs      []uuid.UUID
}
