package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/tavily"
)

func TestGround_NoURLSkipsCrawl(t *testing.T) {
	tv := &mockTavilyClient{}
	p, reg := newTestPipeline(tv, &mockAnthropicClient{})

	state := testState("job-g")
	state.CompanyURL = ""
	reg.Create("job-g", model.ResearchRequest{Company: state.Company})

	err := p.ground(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, state.SiteScrape)
	tv.AssertNotCalled(t, "Crawl")

	_, events, ok := reg.Poll("job-g")
	require.True(t, ok)
	types := eventTypes(events)
	assert.Contains(t, types, model.EventNoURL)
	assert.Contains(t, types, model.EventGroundingComplete)
}

func TestGround_PopulatesSiteScrape(t *testing.T) {
	tv := &mockTavilyClient{}
	tv.On("Crawl", mock.Anything, "https://acme.example.com", mock.MatchedBy(func(req tavily.CrawlRequest) bool {
		return req.MaxDepth == 1 && req.MaxBreadth == 50 && req.ExtractDepth == "advanced"
	})).Return(&tavily.CrawlResponse{
		Results: []tavily.CrawlResult{
			{URL: "https://acme.example.com/about", RawContent: "about page"},
			{URL: "https://acme.example.com/pricing", RawContent: ""},
			{URL: "https://acme.example.com/team", RawContent: "team page"},
		},
	}, nil)

	p, _ := newTestPipeline(tv, &mockAnthropicClient{})
	state := testState("job-g")

	err := p.ground(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, state.SiteScrape, 2)

	about := state.SiteScrape["https://acme.example.com/about"]
	assert.Equal(t, model.SourceCompanyWebsite, about.Source)
	assert.Equal(t, "Acme Robotics", about.Title)
	assert.Equal(t, "about page", about.RawContent)
}

func TestGround_CrawlErrorIsNonFatal(t *testing.T) {
	tv := &mockTavilyClient{}
	tv.On("Crawl", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, eris.New("crawl timed out"))

	p, reg := newTestPipeline(tv, &mockAnthropicClient{})
	state := testState("job-g")
	reg.Create("job-g", model.ResearchRequest{Company: state.Company})

	err := p.ground(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, state.SiteScrape)

	_, events, ok := reg.Poll("job-g")
	require.True(t, ok)
	assert.Contains(t, eventTypes(events), model.EventCrawlError)
}

func TestGround_EmptyCrawlWarns(t *testing.T) {
	tv := &mockTavilyClient{}
	tv.On("Crawl", mock.Anything, mock.Anything, mock.Anything).
		Return(&tavily.CrawlResponse{}, nil)

	p, reg := newTestPipeline(tv, &mockAnthropicClient{})
	state := testState("job-g")
	reg.Create("job-g", model.ResearchRequest{Company: state.Company})

	err := p.ground(context.Background(), state)
	require.NoError(t, err)

	_, events, ok := reg.Poll("job-g")
	require.True(t, ok)
	assert.Contains(t, eventTypes(events), model.EventCrawlWarning)
}

func eventTypes(events []model.Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}
