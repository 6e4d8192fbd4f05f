package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/anthropic"
	"github.com/sells-group/company-research/pkg/tavily"
)

// generateQueries streams search queries for one analyst from the query
// model, emitting progress events per chunk and per finished query. An
// empty query set is a fatal error for the whole job.
func (p *Pipeline) generateQueries(ctx context.Context, state *model.ResearchState, a analyst) ([]string, error) {
	vars := p.promptVars(state)
	now := time.Now()
	req := anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.QueryModel,
		MaxTokens: 1024,
		System: []anthropic.SystemBlock{
			{Text: render(p.prompts.QuerySystem, vars)},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: render(p.prompts.QueryUser, map[string]string{
				"year":              fmt.Sprintf("%d", now.Year()),
				"date":              now.Format("January 2, 2006"),
				"task_prompt":       render(p.prompts.Queries[string(a.category)], vars),
				"format_guidelines": render(p.prompts.QueryGuidelines, vars),
			})},
		},
	}

	stream, err := p.anthropic.StreamMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s query generation", a.tag)
	}
	defer stream.Close()

	var queries []string
	var current strings.Builder
	finishQuery := func(raw string) {
		q := strings.TrimSpace(raw)
		if q == "" {
			return
		}
		queries = append(queries, q)
		p.emit(state.JobID, model.NewEvent(model.EventQueryGenerated, map[string]any{
			"query":        q,
			"query_number": len(queries),
			"category":     a.tag,
		}))
	}

	for stream.Next() {
		current.WriteString(stream.Text())
		p.emit(state.JobID, model.NewEvent(model.EventQueryGenerating, map[string]any{
			"query":        current.String(),
			"query_number": len(queries) + 1,
			"category":     a.tag,
		}))

		if text := current.String(); strings.Contains(text, "\n") {
			parts := strings.Split(text, "\n")
			for _, part := range parts[:len(parts)-1] {
				finishQuery(part)
			}
			current.Reset()
			current.WriteString(parts[len(parts)-1])
		}
	}
	if err := stream.Err(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: %s query stream", a.tag)
	}
	finishQuery(current.String())

	if len(queries) > p.cfg.Research.MaxQueries {
		queries = queries[:p.cfg.Research.MaxQueries]
	}
	if len(queries) == 0 {
		return nil, eris.Errorf("pipeline: no queries generated for %s", state.Company)
	}

	p.emit(state.JobID, model.NewEvent(model.EventQueriesComplete, map[string]any{
		"queries":  queries,
		"count":    len(queries),
		"category": a.tag,
	}))
	return queries, nil
}

// searchDocuments runs all of an analyst's queries against web search in
// parallel and merges the scored results. A failed query is reported and
// skipped; only a fully empty query set is fatal upstream.
func (p *Pipeline) searchDocuments(ctx context.Context, state *model.ResearchState, a analyst, queries []string) model.DocumentSet {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("analyst", a.tag))

	p.emit(state.JobID, model.NewEvent(model.EventSearchStarted, map[string]any{
		"message":       fmt.Sprintf("Searching %d queries", len(queries)),
		"total_queries": len(queries),
		"category":      a.tag,
	}))

	results := make([]*tavily.SearchResponse, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			opts := []tavily.SearchOption{tavily.WithMaxResults(p.cfg.Research.MaxResults)}
			if a.topic != "" {
				opts = append(opts, tavily.WithTopic(a.topic))
			}
			results[i], errs[i] = p.tavily.Search(gctx, query, opts...)
			return nil
		})
	}
	_ = g.Wait()

	merged := model.DocumentSet{}
	for i, query := range queries {
		if errs[i] != nil {
			log.Warn("search query failed", zap.String("query", query), zap.Error(errs[i]))
			p.emit(state.JobID, model.NewEvent(model.EventQueryError, map[string]any{
				"query":    query,
				"error":    errs[i].Error(),
				"category": a.tag,
			}))
			continue
		}
		for _, item := range results[i].Results {
			if item.Content == "" || item.URL == "" {
				continue
			}
			merged[item.URL] = model.Document{
				URL:     item.URL,
				Title:   model.CleanTitle(item.Title, item.URL),
				Content: item.Content,
				Query:   query,
				Source:  model.SourceWebSearch,
				Score:   item.Score,
			}
		}
	}

	p.emit(state.JobID, model.NewEvent(model.EventSearchComplete, map[string]any{
		"message":           fmt.Sprintf("Found %d documents", len(merged)),
		"total_documents":   len(merged),
		"queries_processed": len(queries),
		"category":          a.tag,
	}))
	return merged
}

func (p *Pipeline) promptVars(state *model.ResearchState) map[string]string {
	competitors := ""
	if len(state.Competitors) > 0 {
		competitors = fmt.Sprintf("(specifically: %s)", strings.Join(state.Competitors, ", "))
	}
	return map[string]string{
		"company":     state.Company,
		"industry":    state.IndustryOrDefault(),
		"hq_location": state.HQOrDefault(),
		"competitors": competitors,
	}
}
