package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/token", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("expires_in_seconds"))
		assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "secret-key")
	tok := c.Fetch(context.Background())

	assert.Equal(t, "issued-token", tok.Token)
	assert.False(t, tok.Demo)
}

func TestTokenClientNoAPIKey(t *testing.T) {
	c := NewTokenClient("http://example.invalid", "")
	tok := c.Fetch(context.Background())

	assert.Equal(t, DemoToken, tok.Token)
	assert.True(t, tok.Demo)
	assert.NotEmpty(t, tok.Error)
}

func TestTokenClientUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewTokenClient(srv.URL, "bad-key")
	tok := c.Fetch(context.Background())

	assert.Equal(t, DemoToken, tok.Token)
	assert.True(t, tok.Demo)
}

func TestTokenClientUnreachable(t *testing.T) {
	c := NewTokenClient("http://127.0.0.1:1", "key")
	tok := c.Fetch(context.Background())

	assert.True(t, tok.Demo, "network failure degrades to the demo token")
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0, 2.0, -2.0}
	decoded := DecodePCM(EncodePCM(samples))

	assert.Len(t, decoded, len(samples))
	assert.InDelta(t, 0, decoded[0], 0.0001)
	assert.InDelta(t, 0.5, decoded[1], 0.001)
	assert.InDelta(t, -0.5, decoded[2], 0.001)
	// out-of-range input clamps to full scale
	assert.InDelta(t, 1.0, decoded[5], 0.001)
	assert.InDelta(t, -1.0, decoded[6], 0.001)
}
