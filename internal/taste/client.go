// Package taste is a REST client for the external taste-graph service,
// which resolves free-text queries into cultural entities and audiences.
package taste

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cultureflow/cultureflow/internal/metrics"
)

// Entity is an opaque cultural entity returned by the taste graph.
// Only ID, Name and Type are read downstream; Metadata is passed through.
type Entity struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Audience is a cultural audience segment returned by the taste graph.
type Audience struct {
	ID       string           `json:"id"`
	EntityID string           `json:"entity_id"`
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	Parents  []AudienceParent `json:"parents,omitempty"`
}

// AudienceParent is a parent node in the audience hierarchy.
type AudienceParent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Searcher is the taste-graph lookup surface the analyzer depends on.
type Searcher interface {
	SearchEntities(ctx context.Context, query string) ([]Entity, error)
	SearchAudiences(ctx context.Context, query string) ([]Audience, error)
}

// The server-side limit parameter is unreliable on the free-text search
// endpoint, so results are capped client-side.
const maxSearchResults = 10

// Client talks to a taste-graph API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a taste-graph client with a pooled transport.
func NewClient(baseURL, apiKey string, poolSize int) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          poolSize,
				MaxIdleConnsPerHost:   poolSize,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		},
	}
}

// SearchEntities performs a free-text entity search. No type filter is
// sent; the hackathon-tier API rejects filtered searches.
func (c *Client) SearchEntities(ctx context.Context, query string) ([]Entity, error) {
	params := url.Values{}
	params.Set("query", query)

	var result entitySearchResponse
	if err := c.get(ctx, "search", "/search", params, &result); err != nil {
		return nil, err
	}

	if len(result.Results) > maxSearchResults {
		result.Results = result.Results[:maxSearchResults]
	}
	return result.Results, nil
}

// SearchAudiences looks up cultural audiences matching a query.
func (c *Client) SearchAudiences(ctx context.Context, query string) ([]Audience, error) {
	params := url.Values{}
	params.Set("filter.query", query)
	params.Set("limit", fmt.Sprint(maxSearchResults))

	var result audienceSearchResponse
	if err := c.get(ctx, "audiences", "/v2/audiences", params, &result); err != nil {
		return nil, err
	}
	return result.Results.Audiences, nil
}

func (c *Client) get(ctx context.Context, label, path string, params url.Values, out any) error {
	start := time.Now()
	metrics.TasteRequests.WithLabelValues(label).Inc()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", label, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.TasteErrors.WithLabelValues(label, "http").Inc()
		return fmt.Errorf("%s request: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.TasteErrors.WithLabelValues(label, "status").Inc()
		return fmt.Errorf("%s status %d: %s", label, resp.StatusCode, string(body))
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.TasteErrors.WithLabelValues(label, "decode").Inc()
		return fmt.Errorf("decode %s response: %w", label, err)
	}

	metrics.TasteDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return nil
}

type entitySearchResponse struct {
	Results []Entity `json:"results"`
}

type audienceSearchResponse struct {
	Results struct {
		Audiences []Audience `json:"audiences"`
	} `json:"results"`
}
