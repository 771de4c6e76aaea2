package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DemoToken is the sentinel returned when no real streaming token can
// be issued. Receiving it sends the adapter straight to simulation.
const DemoToken = "demo-token-for-simulation"

const tokenExpirySeconds = 60

// Token is a short-lived streaming credential. Demo marks the
// simulation sentinel.
type Token struct {
	Token string `json:"token"`
	Demo  bool   `json:"demo,omitempty"`
	Error string `json:"error,omitempty"`
}

// TokenFetcher issues streaming tokens. Implementations never fail:
// any upstream problem yields the demo sentinel instead.
type TokenFetcher interface {
	Fetch(ctx context.Context) Token
}

// TokenClient requests temporary tokens from the streaming provider's
// token endpoint.
type TokenClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTokenClient creates a token client. An empty API key is valid and
// simply means every Fetch returns the demo sentinel.
func NewTokenClient(baseURL, apiKey string) *TokenClient {
	return &TokenClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch requests a short-lived token. It never returns an error: a
// missing key or any upstream failure degrades to the demo token.
func (c *TokenClient) Fetch(ctx context.Context) Token {
	if c.apiKey == "" {
		slog.Info("no streaming API key configured, issuing demo token")
		return Token{Token: DemoToken, Demo: true, Error: "API key not configured"}
	}

	url := fmt.Sprintf("%s/v3/token?expires_in_seconds=%d", c.baseURL, tokenExpirySeconds)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return c.demoFallback("create token request", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.demoFallback("token request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.demoFallback("token endpoint", fmt.Errorf("status %d", resp.StatusCode))
	}

	var tok Token
	if err = json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return c.demoFallback("decode token response", err)
	}
	if tok.Token == "" {
		return c.demoFallback("token endpoint", fmt.Errorf("empty token"))
	}
	return tok
}

func (c *TokenClient) demoFallback(stage string, err error) Token {
	slog.Warn("streaming token unavailable, issuing demo token", "stage", stage, "error", err)
	return Token{Token: DemoToken, Demo: true, Error: err.Error()}
}
