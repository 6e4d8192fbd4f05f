package model

import "time"

// JobStatus represents the lifecycle state of a research job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further stage execution or event
// emission follows this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the externally visible snapshot of one research run.
type Job struct {
	ID          string          `json:"id"`
	Request     ResearchRequest `json:"request"`
	Status      JobStatus       `json:"status"`
	CurrentStep string          `json:"current_step,omitempty"`
	Report      string          `json:"report,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdate  time.Time       `json:"last_update"`
}
