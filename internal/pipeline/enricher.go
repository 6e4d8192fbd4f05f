package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/company-research/internal/model"
)

// enrich fetches full page content for curated documents that only have
// search snippets. Categories run concurrently with no cross-category
// limit; each category bounds its own batch fan-out. A URL that cannot
// be extracted keeps its snippet; enrichment never fails the job on
// its own.
func (p *Pipeline) enrich(ctx context.Context, state *model.ResearchState) error {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("company", state.Company))

	type task struct {
		category model.Category
		urls     []string
	}
	var tasks []task
	for _, cat := range model.Categories() {
		var urls []string
		for url, doc := range state.Curated[cat] {
			if doc.RawContent == "" {
				urls = append(urls, url)
			}
		}
		if len(urls) == 0 {
			continue
		}
		sort.Strings(urls)
		tasks = append(tasks, task{category: cat, urls: urls})
	}
	if len(tasks) == 0 {
		log.Info("enrichment: nothing to fetch")
		return nil
	}

	p.emit(state.JobID, model.NewEvent(model.EventEnrichment, map[string]any{
		"message": fmt.Sprintf("Enriching %d categories", len(tasks)),
	}))

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			contents, err := p.fetchRawContent(gctx, t.urls)
			if err != nil {
				return err
			}

			enriched := 0
			docs := state.Curated[t.category]
			for url, content := range contents {
				if content == "" {
					continue
				}
				doc := docs[url]
				doc.RawContent = content
				docs[url] = doc
				enriched++
			}

			log.Info("category enriched",
				zap.String("category", string(t.category)),
				zap.Int("enriched", enriched),
				zap.Int("total", len(t.urls)),
			)
			p.emit(state.JobID, model.NewEvent(model.EventEnrichment, map[string]any{
				"category": string(t.category),
				"enriched": enriched,
				"total":    len(t.urls),
				"message":  fmt.Sprintf("Enriched %d/%d %s documents", enriched, len(t.urls), t.category),
			}))
			return nil
		})
	}
	return g.Wait()
}

// fetchRawContent extracts page content for the URLs in batches. All
// batches are queued at once; a semaphore local to this call limits
// concurrent batches, so each category gets its own allowance.
// Extraction failures yield empty content for that URL.
func (p *Pipeline) fetchRawContent(ctx context.Context, urls []string) (map[string]string, error) {
	batchSize := p.cfg.Research.EnrichBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	sem := semaphore.NewWeighted(int64(p.cfg.Research.EnrichMaxBatches))

	var mu sync.Mutex
	contents := make(map[string]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(urls); start += batchSize {
		batch := urls[start:min(start+batchSize, len(urls))]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			inner, ictx := errgroup.WithContext(gctx)
			for _, url := range batch {
				inner.Go(func() error {
					content := p.extractOne(ictx, url)
					mu.Lock()
					contents[url] = content
					mu.Unlock()
					return nil
				})
			}
			return inner.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

func (p *Pipeline) extractOne(ctx context.Context, url string) string {
	resp, err := p.tavily.Extract(ctx, url)
	if err != nil {
		zap.L().Warn("enrichment: extract failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	if len(resp.Results) == 0 {
		return ""
	}
	return resp.Results[0].RawContent
}
