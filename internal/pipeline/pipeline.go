// Package pipeline runs the multi-stage company research flow: ground
// the request against the company website, fan out four research
// analysts, curate and enrich the collected documents, generate
// category briefings, and compile the final report.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/config"
	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/internal/registry"
	"github.com/sells-group/company-research/internal/store"
	"github.com/sells-group/company-research/pkg/anthropic"
	"github.com/sells-group/company-research/pkg/tavily"
)

// Pipeline orchestrates research jobs end to end.
type Pipeline struct {
	cfg       *config.Config
	registry  *registry.Registry
	store     store.Store // optional, persistence is best-effort
	tavily    tavily.Client
	anthropic anthropic.Client
	prompts   *Prompts
}

// New creates a Pipeline with all dependencies. st may be nil when no
// store is configured.
func New(cfg *config.Config, reg *registry.Registry, st store.Store, tv tavily.Client, ai anthropic.Client) (*Pipeline, error) {
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		registry:  reg,
		store:     st,
		tavily:    tv,
		anthropic: ai,
		prompts:   prompts,
	}, nil
}

// Submit registers a new job and starts its research run in the
// background. The returned job snapshot is in the pending state.
func (p *Pipeline) Submit(req model.ResearchRequest) (model.Job, error) {
	if req.Company == "" {
		return model.Job{}, eris.New("pipeline: company is required")
	}

	id := uuid.New().String()
	job, ok := p.registry.Create(id, req)
	if !ok {
		return model.Job{}, eris.Errorf("pipeline: job %s already exists", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.registry.SetCancel(id, cancel)

	if p.store != nil {
		if err := p.store.CreateJob(ctx, job); err != nil {
			zap.L().Warn("pipeline: persist job failed", zap.String("job_id", id), zap.Error(err))
		}
	}

	go func() {
		defer cancel()
		p.run(ctx, id, req)
	}()

	return job, nil
}

// stage is one sequential step of the research run. A stage error fails
// the whole job.
type stage struct {
	name string
	fn   func(context.Context, *model.ResearchState) error
}

func (p *Pipeline) run(ctx context.Context, jobID string, req model.ResearchRequest) {
	log := zap.L().With(zap.String("job_id", jobID), zap.String("company", req.Company))
	log.Info("pipeline: starting research")

	state := model.NewResearchState(jobID, req)
	p.emit(jobID, model.NewEvent(model.EventResearchInit, map[string]any{
		"message": "Starting research for " + req.Company,
		"company": req.Company,
	}))

	stages := []stage{
		{"Grounding", p.ground},
		{"Research", p.research},
		{"Curation", p.curate},
		{"Enrichment", p.enrich},
		{"Briefing", p.brief},
		{"Editor", p.compileReport},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			p.fail(jobID, s.name, err, log)
			return
		}

		p.setStep(ctx, jobID, s.name)
		start := time.Now()
		if err := s.fn(ctx, state); err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", s.name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			p.fail(jobID, s.name, err, log)
			return
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", s.name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	p.emit(jobID, model.NewEvent(model.EventComplete, map[string]any{
		"message": "Research complete",
		"company": req.Company,
	}))
	p.registry.Complete(jobID, state.Report)

	if p.store != nil {
		if err := p.store.SaveReport(ctx, jobID, state.Report, state.References); err != nil {
			log.Warn("pipeline: persist report failed", zap.Error(err))
		}
		if err := p.store.UpdateJobStatus(ctx, jobID, model.JobStatusCompleted, "", ""); err != nil {
			log.Warn("pipeline: persist status failed", zap.Error(err))
		}
	}
	log.Info("pipeline: research complete", zap.Int("report_chars", len(state.Report)))
}

// fail records the terminal failure. The error event is appended before
// the status flips so a single poll observes both.
func (p *Pipeline) fail(jobID, stageName string, err error, log *zap.Logger) {
	msg := err.Error()
	p.emit(jobID, model.NewEvent(model.EventError, map[string]any{
		"error": msg,
		"step":  stageName,
	}))
	p.registry.Fail(jobID, msg)

	if p.store != nil {
		if serr := p.store.UpdateJobStatus(context.Background(), jobID, model.JobStatusFailed, stageName, msg); serr != nil {
			log.Warn("pipeline: persist failure failed", zap.Error(serr))
		}
	}
}

func (p *Pipeline) setStep(ctx context.Context, jobID, step string) {
	p.registry.SetStep(jobID, step)
	p.emit(jobID, model.NewEvent(model.EventProgress, map[string]any{
		"step": step,
	}))
	if p.store != nil {
		if err := p.store.UpdateJobStatus(ctx, jobID, model.JobStatusProcessing, step, ""); err != nil {
			zap.L().Warn("pipeline: persist step failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
}

func (p *Pipeline) emit(jobID string, ev model.Event) {
	p.registry.AppendEvent(jobID, ev)
}
