// Package registry holds the process-wide job state and per-job event
// queues. It is the only resource shared between concurrently running
// pipeline stages, so every operation takes the registry mutex: a
// consumer that drains events and reads status in one call can never
// observe a terminal status while pre-transition events remain queued.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/company-research/internal/model"
)

type jobEntry struct {
	job    model.Job
	events []model.Event
	cancel context.CancelFunc
}

// Registry is a keyed store of job snapshots and event queues.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{jobs: map[string]*jobEntry{}}
}

// Create initializes a pending job for the given request. Creating an
// id that already exists returns false and leaves the original job
// untouched (exactly one background run per job id).
func (r *Registry) Create(id string, req model.ResearchRequest) (model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return model.Job{}, false
	}
	now := time.Now().UTC()
	job := model.Job{
		ID:         id,
		Request:    req,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		LastUpdate: now,
	}
	r.jobs[id] = &jobEntry{job: job}
	return job, true
}

// Get returns the current snapshot of a job.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return e.job, true
}

// SetStep marks a job processing and records the current pipeline step.
// Terminal jobs are immutable; updates against them are dropped.
func (r *Registry) SetStep(id, step string) {
	r.update(id, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
		j.CurrentStep = step
	})
}

// Complete transitions a job to its completed terminal state with the
// final report.
func (r *Registry) Complete(id, report string) {
	r.update(id, func(j *model.Job) {
		j.Status = model.JobStatusCompleted
		j.Report = report
	})
}

// Fail transitions a job to its failed terminal state with the captured
// error message.
func (r *Registry) Fail(id, msg string) {
	r.update(id, func(j *model.Job) {
		j.Status = model.JobStatusFailed
		j.Error = msg
	})
}

func (r *Registry) update(id string, fn func(*model.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return
	}
	fn(&e.job)
	e.job.LastUpdate = time.Now().UTC()
}

// AppendEvent enqueues an event for a job. Unknown job ids are a no-op
// so producers never need to check liveness before emitting.
func (r *Registry) AppendEvent(id string, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return
	}
	e.events = append(e.events, ev)
}

// Poll atomically drains all queued events and returns the job snapshot
// taken under the same lock hold. If the returned status is terminal,
// every event appended before the transition is included in this drain.
func (r *Registry) Poll(id string) (model.Job, []model.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return model.Job{}, nil, false
	}
	events := e.events
	e.events = nil
	return e.job, events, true
}

// SetCancel registers the cancel function for a job's background run.
func (r *Registry) SetCancel(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.jobs[id]; ok {
		e.cancel = cancel
	}
}

// Cancel signals the job's background run to stop. Returns false when
// the job is unknown, already terminal, or has no registered run.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	cancel := context.CancelFunc(nil)
	if e, ok := r.jobs[id]; ok && e.cancel != nil && !e.job.Status.Terminal() {
		cancel = e.cancel
	}
	r.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Len reports the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
