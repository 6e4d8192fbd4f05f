package model

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

// Document sources.
const (
	SourceWebSearch      = "web_search"
	SourceCompanyWebsite = "company_website"
)

// Document is a single research result. Within a DocumentSet it is
// keyed by its canonical URL.
type Document struct {
	URL        string      `json:"url"`
	Title      string      `json:"title,omitempty"`
	Content    string      `json:"content,omitempty"`
	RawContent string      `json:"raw_content,omitempty"`
	Source     string      `json:"source,omitempty"`
	Query      string      `json:"query,omitempty"`
	Score      float64     `json:"score"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Evaluation is attached by the curator once a document passes the
// relevance filter.
type Evaluation struct {
	OverallScore float64 `json:"overall_score"`
	Query        string  `json:"query,omitempty"`
}

// FirstParty reports whether the document came from the company's own
// website. First-party documents survive curation regardless of score.
func (d Document) FirstParty() bool {
	return d.Source == SourceCompanyWebsite
}

// BodyText returns the richest text available for the document.
func (d Document) BodyText() string {
	if d.RawContent != "" {
		return d.RawContent
	}
	return d.Content
}

// DocumentSet is a collection of documents keyed by canonical URL.
type DocumentSet map[string]Document

// Clone returns a shallow copy of the set.
func (s DocumentSet) Clone() DocumentSet {
	out := make(DocumentSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into s, overwriting on key
// collision (last writer wins).
func (s DocumentSet) Merge(other DocumentSet) {
	for k, v := range other {
		s[k] = v
	}
}

// SortedByScore returns the documents ordered by score descending,
// breaking ties by ascending URL so the order is deterministic.
func (s DocumentSet) SortedByScore() []Document {
	docs := make([]Document, 0, len(s))
	for _, d := range s {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].URL < docs[j].URL
	})
	return docs
}

var errEmptyURL = errors.New("model: empty url")

// CanonicalURL normalizes a raw URL into the dedup key used across the
// pipeline: a missing scheme defaults to https, and the query string
// and fragment are stripped.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// CleanTitle collapses whitespace and strips control characters from a
// search-result title. Titles that merely repeat the URL are blanked.
func CleanTitle(title, docURL string) string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r < 0x20
	})
	cleaned := strings.Join(fields, " ")
	if cleaned == "" || strings.EqualFold(cleaned, docURL) {
		return ""
	}
	return cleaned
}
