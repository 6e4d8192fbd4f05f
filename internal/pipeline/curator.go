package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/company-research/internal/model"
)

// curate filters each category down to its most relevant documents:
// normalize and dedupe URLs, keep documents at or above the relevance
// threshold (company website pages always pass), and cap the survivors
// at the per-category maximum. A category losing every document degrades
// to an empty set rather than failing the job.
func (p *Pipeline) curate(ctx context.Context, state *model.ResearchState) error {
	log := zap.L().With(zap.String("job_id", state.JobID), zap.String("company", state.Company))

	for _, cat := range model.Categories() {
		raw := state.Raw[cat]
		curated := p.curateCategory(raw, log.With(zap.String("category", string(cat))))
		state.Curated[cat] = curated

		p.emit(state.JobID, model.NewEvent(model.EventCuration, map[string]any{
			"category": string(cat),
			"total":    len(curated),
			"message":  fmt.Sprintf("Curating %s documents", cat),
		}))
	}

	deriveReferences(state, p.cfg.Research.MaxReferences)
	log.Info("curation complete", zap.Int("references", len(state.References)))
	return nil
}

func (p *Pipeline) curateCategory(raw model.DocumentSet, log *zap.Logger) model.DocumentSet {
	// Normalize and dedupe. SortedByScore orders score desc with URL as
	// the tiebreak, so the first document seen for a canonical URL is
	// the deterministic winner.
	unique := model.DocumentSet{}
	for _, doc := range raw.SortedByScore() {
		canonical, err := model.CanonicalURL(doc.URL)
		if err != nil {
			log.Warn("dropping document with unusable url", zap.String("url", doc.URL), zap.Error(err))
			continue
		}
		if _, seen := unique[canonical]; seen {
			continue
		}
		doc.URL = canonical
		unique[canonical] = doc
	}

	// Relevance filter.
	kept := model.DocumentSet{}
	for url, doc := range unique {
		if doc.FirstParty() || doc.Score >= p.cfg.Research.RelevanceThreshold {
			doc.Evaluation = &model.Evaluation{OverallScore: doc.Score, Query: doc.Query}
			kept[url] = doc
			continue
		}
		log.Debug("document below threshold",
			zap.String("url", url),
			zap.Float64("score", doc.Score),
		)
	}

	// Cap at the top documents per category.
	sorted := kept.SortedByScore()
	if len(sorted) > p.cfg.Research.MaxDocsPerCategory {
		sorted = sorted[:p.cfg.Research.MaxDocsPerCategory]
	}
	capped := model.DocumentSet{}
	for _, doc := range sorted {
		capped[doc.URL] = doc
	}

	log.Info("category curated", zap.Int("in", len(raw)), zap.Int("kept", len(capped)))
	return capped
}
