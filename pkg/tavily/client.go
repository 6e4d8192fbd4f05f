// Package tavily provides a client for the Tavily search, extract, and
// crawl APIs.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-research/internal/resilience"
)

const defaultBaseURL = "https://api.tavily.com"

// Client defines the Tavily API operations used by the research pipeline.
type Client interface {
	// Search performs a web search and returns scored results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
	// Extract fetches the raw page content for a single URL.
	Extract(ctx context.Context, targetURL string) (*ExtractResponse, error)
	// Crawl walks a website starting from targetURL and returns the
	// extracted content of the pages it visits.
	Crawl(ctx context.Context, targetURL string, req CrawlRequest) (*CrawlResponse, error)
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult is a single scored search hit.
type SearchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score"`
}

// ExtractResponse is the response from POST /extract.
type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []FailedResult  `json:"failed_results"`
}

// ExtractResult holds the raw content extracted from one URL.
type ExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// FailedResult identifies a URL that could not be extracted.
type FailedResult struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// CrawlRequest configures a website crawl.
type CrawlRequest struct {
	Instructions string `json:"instructions,omitempty"`
	MaxDepth     int    `json:"max_depth,omitempty"`
	MaxBreadth   int    `json:"max_breadth,omitempty"`
	ExtractDepth string `json:"extract_depth,omitempty"`
}

// CrawlResponse is the response from POST /crawl.
type CrawlResponse struct {
	BaseURL string        `json:"base_url"`
	Results []CrawlResult `json:"results"`
}

// CrawlResult is a single crawled page.
type CrawlResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// SearchOption configures a single search request.
type SearchOption func(*searchRequest)

// WithTopic selects a topic-tuned index ("news" or "finance").
func WithTopic(topic string) SearchOption {
	return func(r *searchRequest) {
		r.Topic = topic
	}
}

// WithMaxResults overrides the result count for one search.
func WithMaxResults(n int) SearchOption {
	return func(r *searchRequest) {
		r.MaxResults = n
	}
}

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	Topic             string `json:"topic,omitempty"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second across all operations.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithDefaultMaxResults sets the per-query result count used when a search
// does not override it.
func WithDefaultMaxResults(n int) Option {
	return func(c *httpClient) {
		c.maxResults = n
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	http       *http.Client
	limiter    *rate.Limiter
	retry      resilience.Policy
}

// NewClient creates a Tavily API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		maxResults: 5,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	req := searchRequest{
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  c.maxResults,
	}
	for _, o := range opts {
		o(&req)
	}

	var result SearchResponse
	if err := c.postJSON(ctx, "/search", req, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: search")
	}
	return &result, nil
}

func (c *httpClient) Extract(ctx context.Context, targetURL string) (*ExtractResponse, error) {
	req := struct {
		URLs []string `json:"urls"`
	}{URLs: []string{targetURL}}

	var result ExtractResponse
	if err := c.postJSON(ctx, "/extract", req, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: extract")
	}
	return &result, nil
}

func (c *httpClient) Crawl(ctx context.Context, targetURL string, req CrawlRequest) (*CrawlResponse, error) {
	body := struct {
		URL string `json:"url"`
		CrawlRequest
	}{URL: targetURL, CrawlRequest: req}

	var result CrawlResponse
	if err := c.postJSON(ctx, "/crawl", body, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: crawl")
	}
	return &result, nil
}

// postJSON posts the payload to path and decodes the response into out,
// retrying transient failures under the client's policy.
func (c *httpClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response")
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}
		return respBody, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
