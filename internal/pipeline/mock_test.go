package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/company-research/internal/config"
	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/internal/registry"
	"github.com/sells-group/company-research/pkg/anthropic"
	"github.com/sells-group/company-research/pkg/tavily"
)

// --- Tavily Mock ---

type mockTavilyClient struct {
	mock.Mock
}

func (m *mockTavilyClient) Search(ctx context.Context, query string, opts ...tavily.SearchOption) (*tavily.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tavily.SearchResponse), args.Error(1)
}

func (m *mockTavilyClient) Extract(ctx context.Context, url string) (*tavily.ExtractResponse, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tavily.ExtractResponse), args.Error(1)
}

func (m *mockTavilyClient) Crawl(ctx context.Context, url string, req tavily.CrawlRequest) (*tavily.CrawlResponse, error) {
	args := m.Called(ctx, url, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tavily.CrawlResponse), args.Error(1)
}

// --- Tavily func-backed fake, for tests that need custom behavior per call ---

type funcTavilyClient struct {
	search  func(ctx context.Context, query string) (*tavily.SearchResponse, error)
	extract func(ctx context.Context, url string) (*tavily.ExtractResponse, error)
	crawl   func(ctx context.Context, url string, req tavily.CrawlRequest) (*tavily.CrawlResponse, error)
}

func (f *funcTavilyClient) Search(ctx context.Context, query string, _ ...tavily.SearchOption) (*tavily.SearchResponse, error) {
	if f.search == nil {
		return &tavily.SearchResponse{}, nil
	}
	return f.search(ctx, query)
}

func (f *funcTavilyClient) Extract(ctx context.Context, url string) (*tavily.ExtractResponse, error) {
	if f.extract == nil {
		return &tavily.ExtractResponse{}, nil
	}
	return f.extract(ctx, url)
}

func (f *funcTavilyClient) Crawl(ctx context.Context, url string, req tavily.CrawlRequest) (*tavily.CrawlResponse, error) {
	if f.crawl == nil {
		return &tavily.CrawlResponse{}, nil
	}
	return f.crawl(ctx, url, req)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest) (anthropic.MessageStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.MessageStream), args.Error(1)
}

// --- Anthropic func-backed fake, for tests with concurrent calls that
// need a fresh stream per invocation ---

type funcAnthropicClient struct {
	create func(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
	stream func(ctx context.Context, req anthropic.MessageRequest) (anthropic.MessageStream, error)
}

func (f *funcAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.create == nil {
		return textResponse("ok"), nil
	}
	return f.create(ctx, req)
}

func (f *funcAnthropicClient) StreamMessage(ctx context.Context, req anthropic.MessageRequest) (anthropic.MessageStream, error) {
	if f.stream == nil {
		return newFakeStream(), nil
	}
	return f.stream(ctx, req)
}

// --- Scripted stream ---

type fakeStream struct {
	chunks []string
	idx    int
	err    error
	closed bool
}

func newFakeStream(chunks ...string) *fakeStream {
	return &fakeStream{chunks: chunks, idx: -1}
}

func (s *fakeStream) Next() bool {
	s.idx++
	return s.idx < len(s.chunks)
}

func (s *fakeStream) Text() string {
	return s.chunks[s.idx]
}

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// textResponse builds a single-block completion.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- Test fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			QueryModel:    "claude-haiku-4-5-20251001",
			BriefingModel: "claude-sonnet-4-5-20250929",
			EditorModel:   "claude-sonnet-4-5-20250929",
		},
		Crawl: config.CrawlConfig{
			MaxDepth:     1,
			MaxBreadth:   50,
			ExtractDepth: "advanced",
		},
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
}

func newTestPipeline(tv tavily.Client, ai anthropic.Client) (*Pipeline, *registry.Registry) {
	reg := registry.New()
	p, err := New(testConfig(), reg, nil, tv, ai)
	if err != nil {
		panic(err)
	}
	return p, reg
}

func testState(jobID string) *model.ResearchState {
	return model.NewResearchState(jobID, model.ResearchRequest{
		Company:    "Acme Robotics",
		CompanyURL: "https://acme.example.com",
		Industry:   "Industrial Automation",
		HQLocation: "Austin, TX",
	})
}

// --- Ensure interface compliance ---
var (
	_ tavily.Client    = (*mockTavilyClient)(nil)
	_ tavily.Client    = (*funcTavilyClient)(nil)
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ anthropic.Client = (*funcAnthropicClient)(nil)
	_ anthropic.MessageStream = (*fakeStream)(nil)
)
