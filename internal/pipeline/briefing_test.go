package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-research/internal/model"
	"github.com/sells-group/company-research/pkg/anthropic"
)

func TestBrief_GeneratesPerCategory(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	ai := &funcAnthropicClient{
		create: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			mu.Lock()
			prompts = append(prompts, req.System[0].Text)
			mu.Unlock()
			return textResponse("### Briefing\n* fact"), nil
		},
	}

	p, _ := newTestPipeline(&mockTavilyClient{}, ai)
	state := testState("job-b")
	for _, cat := range model.Categories() {
		state.Curated[cat] = snippetOnlySet(2)
	}

	err := p.brief(context.Background(), state)
	require.NoError(t, err)

	assert.Len(t, prompts, 4)
	for _, cat := range model.Categories() {
		assert.Equal(t, "### Briefing\n* fact", state.Briefings[cat])
	}
}

func TestBrief_EmptyCategoryYieldsEmptyBriefing(t *testing.T) {
	ai := &funcAnthropicClient{
		create: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("briefing text"), nil
		},
	}

	p, _ := newTestPipeline(&mockTavilyClient{}, ai)
	state := testState("job-b")
	state.Curated[model.CategoryCompany] = snippetOnlySet(1)

	err := p.brief(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "briefing text", state.Briefings[model.CategoryCompany])
	assert.Empty(t, state.Briefings[model.CategoryNews])
}

func TestBrief_EmptyCompletionIsFatal(t *testing.T) {
	ai := &funcAnthropicClient{
		create: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("   \n"), nil
		},
	}

	p, _ := newTestPipeline(&mockTavilyClient{}, ai)
	state := testState("job-b")
	state.Curated[model.CategoryCompany] = snippetOnlySet(1)

	err := p.brief(context.Background(), state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty company briefing")
}

func TestBrief_ModelErrorIsFatal(t *testing.T) {
	ai := &funcAnthropicClient{
		create: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, eris.New("overloaded")
		},
	}

	p, _ := newTestPipeline(&mockTavilyClient{}, ai)
	state := testState("job-b")
	state.Curated[model.CategoryFinancial] = snippetOnlySet(1)

	err := p.brief(context.Background(), state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestRenderDocuments_PrefersRawContentAndTruncates(t *testing.T) {
	p, _ := newTestPipeline(&mockTavilyClient{}, &mockAnthropicClient{})

	docs := model.DocumentSet{
		"https://a.example.com": {
			URL:        "https://a.example.com",
			Title:      "Long",
			Content:    "snippet",
			RawContent: strings.Repeat("x", 9000),
			Score:      0.9,
		},
		"https://b.example.com": {
			URL:     "https://b.example.com",
			Title:   "Short",
			Content: "just a snippet",
			Score:   0.5,
		},
	}

	got := p.renderDocuments(docs)

	assert.Contains(t, got, "Title: Long")
	assert.Contains(t, got, "... [content truncated]")
	assert.NotContains(t, got, "Content: snippet\n")
	assert.Contains(t, got, "Content: just a snippet")
	assert.Contains(t, got, documentSeparator)

	// Highest score renders first.
	assert.Less(t, strings.Index(got, "Title: Long"), strings.Index(got, "Title: Short"))
}

func TestRenderDocuments_StopsAtPromptBudget(t *testing.T) {
	p, _ := newTestPipeline(&mockTavilyClient{}, &mockAnthropicClient{})
	p.cfg.Research.MaxPromptChars = 100

	docs := model.DocumentSet{
		"https://a.example.com": {
			URL: "https://a.example.com", Title: "A", Content: strings.Repeat("a", 60), Score: 0.9,
		},
		"https://b.example.com": {
			URL: "https://b.example.com", Title: "B", Content: strings.Repeat("b", 60), Score: 0.5,
		},
	}

	got := p.renderDocuments(docs)
	assert.Contains(t, got, "Title: A")
	assert.NotContains(t, got, "Title: B")
}
