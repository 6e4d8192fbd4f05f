package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/anthropic"
)

const documentSeparator = "----------------------------------------"

// brief generates one markdown briefing per category from the curated
// documents. Briefings run concurrently with a bounded group; a category
// with no documents yields an empty briefing, but a model call that
// returns no text fails the job.
func (p *Pipeline) brief(ctx context.Context, state *model.ResearchState) error {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("company", state.Company))

	var mu sync.Mutex
	briefings := make(map[model.Category]string, len(model.Categories()))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Research.BriefingConcurrency)

	for _, cat := range model.Categories() {
		docs := state.Curated[cat]
		if len(docs) == 0 {
			log.Info("briefing: no documents", zap.String("category", string(cat)))
			mu.Lock()
			briefings[cat] = ""
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			p.emit(state.JobID, model.NewEvent(model.EventBriefingStart, map[string]any{
				"category":   string(cat),
				"total_docs": len(docs),
				"step":       "Briefing",
				"message":    fmt.Sprintf("Generating %s briefing from %d documents", cat.Label(), len(docs)),
			}))

			content, err := p.generateBriefing(gctx, state, cat, docs)
			if err != nil {
				return err
			}

			mu.Lock()
			briefings[cat] = content
			mu.Unlock()

			p.emit(state.JobID, model.NewEvent(model.EventBriefingComplete, map[string]any{
				"category":       string(cat),
				"content_length": len(content),
			}))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for cat, content := range briefings {
		state.Briefings[cat] = content
	}
	log.Info("briefings generated", zap.Int("categories", len(briefings)))
	return nil
}

func (p *Pipeline) generateBriefing(ctx context.Context, state *model.ResearchState, cat model.Category, docs model.DocumentSet) (string, error) {
	system := render(p.prompts.Briefings[string(cat)], p.promptVars(state))

	resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.BriefingModel,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages: []anthropic.Message{
			{Role: "user", Content: p.prompts.BriefingInstruction + "\n\n" + p.renderDocuments(docs)},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: %s briefing", cat)
	}
	resp.Usage.LogCost(p.cfg.Anthropic.BriefingModel, string(cat)+" briefing")

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", eris.Errorf("pipeline: empty %s briefing for %s", cat, state.Company)
	}
	return content, nil
}

// renderDocuments formats documents highest-scored first, truncating
// each one and stopping once the combined prompt budget is spent.
func (p *Pipeline) renderDocuments(docs model.DocumentSet) string {
	maxDocChars := p.cfg.Research.MaxDocChars
	maxPromptChars := p.cfg.Research.MaxPromptChars

	var entries []string
	total := 0
	for _, doc := range docs.SortedByScore() {
		content := doc.RawContent
		if content == "" {
			content = doc.Content
		}
		if len(content) > maxDocChars {
			content = content[:maxDocChars] + "... [content truncated]"
		}

		entry := fmt.Sprintf("Title: %s\n\nContent: %s", doc.Title, content)
		if total+len(entry) > maxPromptChars {
			break
		}
		entries = append(entries, entry)
		total += len(entry)
	}
	return strings.Join(entries, "\n"+documentSeparator+"\n")
}
