package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/tavily"
)

const crawlInstructions = "Find any pages that will help us understand the company's business, products, services, and any other relevant information."

// ground seeds the research state with content crawled from the company
// website. A crawl failure is reported but never fails the job; research
// proceeds on web search alone.
func (p *Pipeline) ground(ctx context.Context, state *model.ResearchState) error {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("company", state.Company))

	if state.CompanyURL == "" {
		log.Info("grounding: no company url, skipping crawl")
		p.emit(state.JobID, model.NewEvent(model.EventNoURL, map[string]any{
			"message": "No company URL provided, skipping website crawl",
		}))
		p.emit(state.JobID, model.NewEvent(model.EventGroundingComplete, map[string]any{
			"pages": 0,
		}))
		return nil
	}

	p.emit(state.JobID, model.NewEvent(model.EventCrawlStart, map[string]any{
		"url":     state.CompanyURL,
		"message": "Crawling company website: " + state.CompanyURL,
		"step":    "Website Crawl",
	}))

	resp, err := p.tavily.Crawl(ctx, state.CompanyURL, tavily.CrawlRequest{
		Instructions: crawlInstructions,
		MaxDepth:     p.cfg.Crawl.MaxDepth,
		MaxBreadth:   p.cfg.Crawl.MaxBreadth,
		ExtractDepth: p.cfg.Crawl.ExtractDepth,
	})
	if err != nil {
		log.Error("grounding: website crawl failed", zap.Error(err))
		p.emit(state.JobID, model.NewEvent(model.EventCrawlError, map[string]any{
			"url":     state.CompanyURL,
			"error":   err.Error(),
			"message": "Error crawling website content",
		}))
		p.emit(state.JobID, model.NewEvent(model.EventGroundingComplete, map[string]any{
			"pages": 0,
		}))
		return nil
	}

	for _, page := range resp.Results {
		if page.RawContent == "" {
			continue
		}
		pageURL := page.URL
		if pageURL == "" {
			pageURL = state.CompanyURL
		}
		state.SiteScrape[pageURL] = model.Document{
			URL:        pageURL,
			Title:      state.Company,
			RawContent: page.RawContent,
			Source:     model.SourceCompanyWebsite,
		}
	}

	if len(state.SiteScrape) == 0 {
		log.Warn("grounding: crawl returned no content")
		p.emit(state.JobID, model.NewEvent(model.EventCrawlWarning, map[string]any{
			"url":     state.CompanyURL,
			"message": "No content found in website crawl",
		}))
	} else {
		log.Info("grounding: crawl complete", zap.Int("pages", len(state.SiteScrape)))
		p.emit(state.JobID, model.NewEvent(model.EventCrawlSuccess, map[string]any{
			"url":     state.CompanyURL,
			"pages":   len(state.SiteScrape),
			"message": fmt.Sprintf("Successfully crawled %d pages from website", len(state.SiteScrape)),
		}))
	}

	p.emit(state.JobID, model.NewEvent(model.EventGroundingComplete, map[string]any{
		"pages": len(state.SiteScrape),
	}))
	return nil
}
