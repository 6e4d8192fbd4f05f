package pipeline

import (
	"net/url"
	"sort"
	"strings"

	"github.com/sells-group/company-research/internal/model"
)

const maxReferencesPerCategory = 3

type refCandidate struct {
	doc      model.Document
	category model.Category
}

// deriveReferences selects the report's source list from the curated
// documents: best-scored first, at most three per category on the first
// pass, backfilled from the remainder up to the cap. Selection is fully
// deterministic for a given curated set.
func deriveReferences(state *model.ResearchState, maxRefs int) {
	if maxRefs <= 0 {
		maxRefs = 10
	}

	var candidates []refCandidate
	seen := map[string]bool{}
	for _, cat := range model.Categories() {
		for _, doc := range state.Curated[cat].SortedByScore() {
			if seen[doc.URL] {
				continue
			}
			seen[doc.URL] = true
			candidates = append(candidates, refCandidate{doc: doc, category: cat})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].doc.Score != candidates[j].doc.Score {
			return candidates[i].doc.Score > candidates[j].doc.Score
		}
		return candidates[i].doc.URL < candidates[j].doc.URL
	})

	perCategory := map[model.Category]int{}
	picked := make([]refCandidate, 0, maxRefs)
	var overflow []refCandidate

	for _, c := range candidates {
		if len(picked) >= maxRefs {
			break
		}
		if perCategory[c.category] >= maxReferencesPerCategory {
			overflow = append(overflow, c)
			continue
		}
		perCategory[c.category]++
		picked = append(picked, c)
	}
	for _, c := range overflow {
		if len(picked) >= maxRefs {
			break
		}
		picked = append(picked, c)
	}

	state.References = state.References[:0]
	for _, c := range picked {
		state.References = append(state.References, c.doc.URL)
		if c.doc.Title != "" {
			state.ReferenceTitles[c.doc.URL] = c.doc.Title
		}
		state.ReferenceInfo[c.doc.URL] = model.ReferenceMeta{
			Category: c.category,
			Score:    c.doc.Score,
			Domain:   domainOf(c.doc.URL),
		}
	}
}

// formatReferences renders the references section appended to the
// compiled report. Titles fall back to the site domain.
func formatReferences(state *model.ResearchState) string {
	if len(state.References) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## References\n\n")
	for _, ref := range state.References {
		title := state.ReferenceTitles[ref]
		if title == "" {
			title = domainOf(ref)
		}
		b.WriteString("* [" + title + "](" + ref + ")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
