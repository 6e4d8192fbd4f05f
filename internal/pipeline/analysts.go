package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-research/internal/model"
)

// analyst is one of the four research perspectives. The tag appears in
// events, the topic selects a tuned search index when set.
type analyst struct {
	tag      string
	category model.Category
	topic    string
}

func analysts() []analyst {
	return []analyst{
		{tag: "company_analyzer", category: model.CategoryCompany},
		{tag: "financial_analyzer", category: model.CategoryFinancial, topic: "finance"},
		{tag: "industry_analyzer", category: model.CategoryIndustry},
		{tag: "news_analyzer", category: model.CategoryNews, topic: "news"},
	}
}

// research fans out all four analysts concurrently. Every analyst seeds
// its category with the website crawl and merges its own search results
// on top. Any analyst failing to produce queries fails the job.
func (p *Pipeline) research(ctx context.Context, state *model.ResearchState) error {
	all := analysts()
	found := make([]model.DocumentSet, len(all))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range all {
		g.Go(func() error {
			queries, err := p.generateQueries(gctx, state, a)
			if err != nil {
				return err
			}
			found[i] = p.searchDocuments(gctx, state, a, queries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, a := range all {
		docs := state.SiteScrape.Clone()
		docs.Merge(found[i])
		state.Raw[a.category] = docs

		zap.L().Info("analyst complete",
			zap.String("job_id", state.JobID),
			zap.String("analyst", a.tag),
			zap.Int("documents", len(docs)),
		)
		p.emit(state.JobID, model.NewEvent(model.EventAnalysisComplete, map[string]any{
			"category": string(a.category),
			"count":    len(docs),
			"message":  fmt.Sprintf("%s found %d documents", a.tag, len(docs)),
		}))
	}
	return nil
}
