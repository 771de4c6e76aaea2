// Package voicecall watches an external voice-call platform and keeps
// the local session store in step with calls starting and ending there.
package voicecall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Call is one interview call registered on the platform.
type Call struct {
	ID            string    `json:"sessionId"`
	CallID        string    `json:"vapiCallId"`
	Active        bool      `json:"isActive"`
	CandidateInfo Candidate `json:"candidateInfo"`
	StartTime     time.Time `json:"startTime"`
}

// Candidate is who is on the call.
type Candidate struct {
	ID    string `json:"candidateId"`
	Name  string `json:"candidateName"`
	Email string `json:"candidateEmail"`
	Role  string `json:"roleType"`
}

// CallLister reads the platform's active-call registry.
type CallLister interface {
	ActiveCalls(ctx context.Context) ([]Call, error)
}

// Client talks to the call platform's session registry over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a call-platform client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type sessionsResponse struct {
	ActiveSessions []Call `json:"activeSessions"`
}

// ActiveCalls lists calls currently active on the platform.
func (c *Client) ActiveCalls(ctx context.Context) ([]Call, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("create sessions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sessions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sessions status %d: %s", resp.StatusCode, string(body))
	}

	var out sessionsResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sessions response: %w", err)
	}
	return out.ActiveSessions, nil
}
