package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/anthropic"
)

const defaultTone = "Objective"

// compileReport merges the category briefings into a single report,
// appends the references section, and runs a streamed formatting sweep
// over the result. Sweep text is forwarded to the job's event queue in
// small chunks as it arrives.
func (p *Pipeline) compileReport(ctx context.Context, state *model.ResearchState) error {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("company", state.Company))

	p.emit(state.JobID, model.NewEvent(model.EventReportCompilation, map[string]any{
		"message": "Compiling final report for " + state.Company,
	}))

	var sections []string
	for _, cat := range model.Categories() {
		if b := state.Briefings[cat]; b != "" {
			sections = append(sections, fmt.Sprintf("%s BRIEFING:\n%s", strings.ToUpper(string(cat)), b))
		}
	}
	if len(sections) == 0 {
		return eris.Errorf("pipeline: no briefings available for %s", state.Company)
	}

	compiled, err := p.compile(ctx, state, strings.Join(sections, "\n\n"))
	if err != nil {
		return err
	}
	if refs := formatReferences(state); refs != "" {
		compiled += "\n\n" + refs
	}

	report, err := p.sweep(ctx, state, compiled)
	if err != nil {
		return err
	}
	if report == "" {
		report = compiled
	}
	if report == "" {
		return eris.Errorf("pipeline: empty report for %s", state.Company)
	}

	state.Report = report
	log.Info("report compiled", zap.Int("report_chars", len(report)))
	return nil
}

func (p *Pipeline) compile(ctx context.Context, state *model.ResearchState, combined string) (string, error) {
	tone := state.Tone
	if tone == "" {
		tone = defaultTone
	}
	vars := p.promptVars(state)
	vars["tone"] = tone
	vars["combined_content"] = combined

	resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.EditorModel,
		MaxTokens: 8192,
		System:    []anthropic.SystemBlock{{Text: p.prompts.EditorSystem}},
		Messages: []anthropic.Message{
			{Role: "user", Content: render(p.prompts.Compile, vars)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: compile report")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.EditorModel, "compile")

	compiled := strings.TrimSpace(resp.Text())
	if compiled == "" {
		return "", eris.Errorf("pipeline: compile produced no content for %s", state.Company)
	}
	return compiled, nil
}

// sweep streams a formatting pass over the compiled report. The deltas
// are buffered and flushed as report_chunk events at clause boundaries
// so consumers see steady, readable progress.
func (p *Pipeline) sweep(ctx context.Context, state *model.ResearchState, compiled string) (string, error) {
	vars := p.promptVars(state)
	vars["content"] = compiled

	stream, err := p.anthropic.StreamMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.EditorModel,
		MaxTokens: 8192,
		System:    []anthropic.SystemBlock{{Text: p.prompts.SweepSystem}},
		Messages: []anthropic.Message{
			{Role: "user", Content: render(p.prompts.Sweep, vars)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: sweep report")
	}
	defer stream.Close()

	var report strings.Builder
	var buffer string
	for stream.Next() {
		text := stream.Text()
		report.WriteString(text)
		buffer += text
		if len(buffer) > 10 && strings.ContainsAny(buffer, ".!?\n") {
			p.emitChunk(state.JobID, buffer)
			buffer = ""
		}
	}
	if err := stream.Err(); err != nil {
		return "", eris.Wrap(err, "pipeline: sweep stream")
	}
	if buffer != "" {
		p.emitChunk(state.JobID, buffer)
	}

	return strings.TrimSpace(report.String()), nil
}

func (p *Pipeline) emitChunk(jobID, chunk string) {
	p.emit(jobID, model.NewEvent(model.EventReportChunk, map[string]any{
		"chunk": chunk,
		"step":  "Editor",
	}))
}
