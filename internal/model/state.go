package model

// ResearchRequest holds the identity inputs for a research run.
type ResearchRequest struct {
	Company     string   `json:"company"`
	CompanyURL  string   `json:"company_url,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	HQLocation  string   `json:"hq_location,omitempty"`
	Competitors []string `json:"competitors,omitempty"`
	Tone        string   `json:"tone,omitempty"`
}

// ReferenceMeta describes one citable reference selected during
// curation.
type ReferenceMeta struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
	Domain   string   `json:"domain"`
}

// ResearchState is the accumulator threaded through the pipeline. Each
// stage owns a distinct set of fields and only the orchestrator commits
// stage output back into the state, so no stage ever observes another
// stage's in-progress writes. Once committed, a field is never erased
// by a later stage.
type ResearchState struct {
	// Identity inputs, fixed at job start.
	Company     string
	CompanyURL  string
	Industry    string
	HQLocation  string
	Competitors []string
	Tone        string
	JobID       string

	// Grounding output.
	SiteScrape DocumentSet

	// Researcher output: one raw collection per category.
	Raw map[Category]DocumentSet

	// Curator output.
	Curated         map[Category]DocumentSet
	References      []string
	ReferenceTitles map[string]string
	ReferenceInfo   map[string]ReferenceMeta

	// Briefing output.
	Briefings map[Category]string

	// Editor output.
	Report string
}

// NewResearchState seeds a state with the identity inputs of a request.
func NewResearchState(jobID string, req ResearchRequest) *ResearchState {
	return &ResearchState{
		Company:         req.Company,
		CompanyURL:      req.CompanyURL,
		Industry:        req.Industry,
		HQLocation:      req.HQLocation,
		Competitors:     req.Competitors,
		Tone:            req.Tone,
		JobID:           jobID,
		SiteScrape:      DocumentSet{},
		Raw:             map[Category]DocumentSet{},
		Curated:         map[Category]DocumentSet{},
		ReferenceTitles: map[string]string{},
		ReferenceInfo:   map[string]ReferenceMeta{},
		Briefings:       map[Category]string{},
	}
}

// IndustryOrDefault returns the industry or a placeholder for prompts.
func (s *ResearchState) IndustryOrDefault() string {
	if s.Industry == "" {
		return "Unknown"
	}
	return s.Industry
}

// HQOrDefault returns the HQ location or a placeholder for prompts.
func (s *ResearchState) HQOrDefault() string {
	if s.HQLocation == "" {
		return "Unknown"
	}
	return s.HQLocation
}
