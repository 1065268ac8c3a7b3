package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"prediction-backend/internal/research"
)

const defaultBaseURL = "https://api.search.example.com/v1/search"

// Client is an HTTP research provider backed by a web search API. A single
// client serves every configured source name; the source is forwarded so the
// API can scope results (e.g. "web", "news", "social").
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient constructs a websearch client. baseURL may be empty to use the
// default endpoint.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("RESEARCH_API_KEY is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Research APIs meter aggressively; one request per second is
		// enough for a sequential orchestrator.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

type searchRequest struct {
	Query      string `json:"query"`
	Source     string `json:"source"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Summary    string   `json:"summary"`
	Links      []string `json:"links"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Research queries the search API for the market question and normalizes
// the payload. Failures are wrapped in research.ProviderError so the
// orchestrator can log and skip the source.
func (c *Client) Research(ctx context.Context, source string, query research.Query) (research.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: err}
	}

	q := query.Question
	if query.Description != "" {
		q = q + " " + query.Description
	}
	payload, err := json.Marshal(searchRequest{Query: q, Source: source, MaxResults: 10})
	if err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("search request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("search http status %d", resp.StatusCode)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return research.Response{}, research.ProviderError{Source: source, Err: fmt.Errorf("decode response: %w", err)}
	}

	return research.Response{
		RelevantInformation: parsed.Summary,
		Links:               parsed.Links,
		ConfidenceScore:     parsed.Confidence,
		Timestamp:           time.Now().UTC(),
	}, nil
}

var _ research.Provider = (*Client)(nil)
