// Package search provides the web search client used to augment LLM answers
// with current information. It talks to the Tavily REST API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint   = "https://api.tavily.com/search"
	defaultMaxResults = 3
	defaultDepth      = "advanced"
)

// Client is the interface the LLM router consumes. It is satisfied by
// [Tavily] and by test fakes.
type Client interface {
	// Search runs a web search and returns a plain-text context block of
	// source URLs and content snippets suitable for injection into an LLM
	// prompt. An empty result set returns a short "no results" sentence, not
	// an error.
	Search(ctx context.Context, query string) (string, error)
}

// Tavily implements Client against the Tavily search API.
type Tavily struct {
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
}

var _ Client = (*Tavily)(nil)

// Option configures a Tavily client.
type Option func(*Tavily)

// WithEndpoint overrides the API endpoint. Used in tests.
func WithEndpoint(url string) Option {
	return func(t *Tavily) { t.endpoint = url }
}

// WithMaxResults sets how many results are folded into the context block.
func WithMaxResults(n int) Option {
	return func(t *Tavily) { t.maxResults = n }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tavily) { t.httpClient = c }
}

// NewTavily creates a Tavily search client. apiKey must be non-empty.
func NewTavily(apiKey string, opts ...Option) (*Tavily, error) {
	if apiKey == "" {
		return nil, errors.New("search: apiKey must not be empty")
	}
	t := &Tavily{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		maxResults: defaultMaxResults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// searchRequest is the Tavily API request body.
type searchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// searchResponse is the subset of the Tavily response the router needs.
type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Client.
func (t *Tavily) Search(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(searchRequest{
		Query:       query,
		SearchDepth: defaultDepth,
		MaxResults:  t.maxResults,
	})
	if err != nil {
		return "", fmt.Errorf("search: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("search: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("search: decode response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return "No relevant search results found.", nil
	}

	var sb strings.Builder
	for _, r := range parsed.Results {
		fmt.Fprintf(&sb, "Source: %s\nContent: %s\n\n", r.URL, r.Content)
	}
	return sb.String(), nil
}
