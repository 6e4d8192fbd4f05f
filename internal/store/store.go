// Package store persists research jobs and finished reports. Persistence
// is best-effort: the pipeline runs entirely in memory and a store is
// optional.
package store

import (
	"context"

	"github.com/sells-group/company-research/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status  model.JobStatus `json:"status,omitempty"`
	Company string          `json:"company,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Report is a persisted research report with its source references.
type Report struct {
	JobID      string   `json:"job_id"`
	Report     string   `json:"report"`
	References []string `json:"references"`
}

// Store defines the persistence interface for the research pipeline.
type Store interface {
	CreateJob(ctx context.Context, job model.Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, step, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	SaveReport(ctx context.Context, jobID, report string, references []string) error
	GetReport(ctx context.Context, jobID string) (*Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
