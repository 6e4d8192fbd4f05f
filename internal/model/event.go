package model

import (
	"encoding/json"
)

// Event type tags emitted during a research run.
const (
	EventResearchInit      = "research_init"
	EventNoURL             = "no_url"
	EventCrawlStart        = "crawl_start"
	EventCrawlSuccess      = "crawl_success"
	EventCrawlWarning      = "crawl_warning"
	EventCrawlError        = "crawl_error"
	EventGroundingComplete = "grounding_complete"
	EventQueryGenerating   = "query_generating"
	EventQueryGenerated    = "query_generated"
	EventQueriesComplete   = "queries_complete"
	EventSearchStarted     = "search_started"
	EventQueryError        = "query_error"
	EventSearchComplete    = "search_complete"
	EventAnalysisComplete  = "analysis_complete"
	EventCuration          = "curation"
	EventEnrichment        = "enrichment"
	EventBriefingStart     = "briefing_start"
	EventBriefingComplete  = "briefing_complete"
	EventReportCompilation = "report_compilation"
	EventReportChunk       = "report_chunk"
	EventProgress          = "progress"
	EventComplete          = "complete"
	EventError             = "error"
)

// Event is a typed progress notification. Events are appended to a
// job's queue in emission order and drained destructively by a single
// consumer.
type Event struct {
	Type    string
	Payload map[string]any
}

// NewEvent builds an event from a type tag and payload fields.
func NewEvent(typ string, payload map[string]any) Event {
	return Event{Type: typ, Payload: payload}
}

// MarshalJSON flattens the payload alongside the type tag, so the wire
// shape is {"type": ..., <payload fields>...}.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat["type"] = e.Type
	return json.Marshal(flat)
}
