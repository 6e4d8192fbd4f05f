package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-research/internal/config"
	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/internal/pipeline"
	"github.com/sells-group/company-research/internal/registry"
	"github.com/sells-group/company-research/pkg/anthropic"
	"github.com/sells-group/company-research/pkg/tavily"
)

const stubQueryModel = "query-model"

// --- API stubs, enough behavior for a full happy-path run ---

type stubTavily struct{}

func (stubTavily) Search(_ context.Context, query string, _ ...tavily.SearchOption) (*tavily.SearchResponse, error) {
	return &tavily.SearchResponse{Results: []tavily.SearchResult{
		{URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Title: "Hit", Content: "content", Score: 0.9},
	}}, nil
}

func (stubTavily) Extract(_ context.Context, url string) (*tavily.ExtractResponse, error) {
	return &tavily.ExtractResponse{Results: []tavily.ExtractResult{{URL: url, RawContent: "full text"}}}, nil
}

func (stubTavily) Crawl(_ context.Context, _ string, _ tavily.CrawlRequest) (*tavily.CrawlResponse, error) {
	return &tavily.CrawlResponse{Results: []tavily.CrawlResult{
		{URL: "https://example.com/about", RawContent: "about page"},
	}}, nil
}

type stubStream struct {
	chunks []string
	idx    int
}

func (s *stubStream) Next() bool {
	s.idx++
	return s.idx <= len(s.chunks)
}

func (s *stubStream) Text() string { return s.chunks[s.idx-1] }
func (s *stubStream) Err() error   { return nil }
func (s *stubStream) Close() error { return nil }

type stubAnthropic struct{}

func (stubAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	text := "### Briefing\n* fact"
	if strings.Contains(req.Messages[0].Content, "Compiled briefings:") {
		text = "# Report\n\ncompiled body"
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

func (stubAnthropic) StreamMessage(_ context.Context, req anthropic.MessageRequest) (anthropic.MessageStream, error) {
	if req.Model == stubQueryModel {
		return &stubStream{chunks: []string{"example products\nexample news"}}, nil
	}
	return &stubStream{chunks: []string{"# Report\n\n", "final swept body.\n"}}, nil
}

func testEnv(t *testing.T) *researchEnv {
	t.Helper()
	c := &config.Config{
		Anthropic: config.AnthropicConfig{
			QueryModel:    stubQueryModel,
			BriefingModel: "briefing-model",
			EditorModel:   "editor-model",
		},
		Crawl: config.CrawlConfig{MaxDepth: 1, MaxBreadth: 50, ExtractDepth: "advanced"},
		Research: config.ResearchConfig{
			MaxQueries:          4,
			MaxResults:          5,
			RelevanceThreshold:  0.4,
			MaxDocsPerCategory:  30,
			EnrichBatchSize:     20,
			EnrichMaxBatches:    3,
			BriefingConcurrency: 2,
			MaxDocChars:         8000,
			MaxPromptChars:      120000,
			MaxReferences:       10,
		},
	}

	reg := registry.New()
	p, err := pipeline.New(c, reg, nil, stubTavily{}, stubAnthropic{})
	require.NoError(t, err)
	return &researchEnv{Registry: reg, Pipeline: p}
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(newRouter(testEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_SubmitValidation(t *testing.T) {
	srv := httptest.NewServer(newRouter(testEnv(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/research", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/research", "application/json", bytes.NewBufferString(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnknownJob(t *testing.T) {
	srv := httptest.NewServer(newRouter(testEnv(t)))
	defer srv.Close()

	for _, path := range []string{"/research/nope", "/research/nope/report", "/research/nope/stream"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestServer_SubmitAndStream(t *testing.T) {
	srv := httptest.NewServer(newRouter(testEnv(t)))
	defer srv.Close()

	body := `{"company":"Example Co","company_url":"https://example.com"}`
	resp, err := http.Post(srv.URL+"/research", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var job model.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	require.NotEmpty(t, job.ID)

	stream, err := http.Get(srv.URL + "/research/" + job.ID + "/stream")
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(stream.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &ev))
		types = append(types, ev["type"].(string))
	}
	require.NoError(t, scanner.Err())

	require.NotEmpty(t, types)
	assert.Equal(t, "research_init", types[0])
	assert.Equal(t, "complete", types[len(types)-1])

	// After the stream ends the report is available.
	report, err := http.Get(srv.URL + "/research/" + job.ID + "/report")
	require.NoError(t, err)
	defer report.Body.Close()
	require.Equal(t, http.StatusOK, report.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(report.Body).Decode(&got))
	assert.Contains(t, got["report"], "final swept body.")
}

func TestServer_ReportPendingReturnsAccepted(t *testing.T) {
	env := testEnv(t)
	// A job created directly in the registry never runs, so it stays
	// pending.
	env.Registry.Create("job-1", model.ResearchRequest{Company: "Example Co"})

	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/research/job-1/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestServer_CancelConflictWhenTerminal(t *testing.T) {
	env := testEnv(t)
	env.Registry.Create("job-1", model.ResearchRequest{Company: "Example Co"})
	env.Registry.Complete("job-1", "done")

	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/research/job-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_CancelRunningJob(t *testing.T) {
	env := testEnv(t)
	env.Registry.Create("job-1", model.ResearchRequest{Company: "Example Co"})
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.Registry.SetCancel("job-1", cancel)

	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/research/job-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}
