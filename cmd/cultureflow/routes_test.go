package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultureflow/cultureflow/internal/analyze"
	"github.com/cultureflow/cultureflow/internal/ingest"
	"github.com/cultureflow/cultureflow/internal/live"
	"github.com/cultureflow/cultureflow/internal/session"
	"github.com/cultureflow/cultureflow/internal/taste"
)

type stubSearcher struct{}

func (stubSearcher) SearchEntities(ctx context.Context, q string) ([]taste.Entity, error) {
	return []taste.Entity{{ID: "e1", Name: "Interstellar", Type: "urn:entity:movie"}}, nil
}

func (stubSearcher) SearchAudiences(ctx context.Context, q string) ([]taste.Audience, error) {
	return []taste.Audience{{ID: "a1", Name: "Film Buffs"}}, nil
}

type stubTokens struct{}

func (stubTokens) Fetch(ctx context.Context) ingest.Token {
	return ingest.Token{Token: ingest.DemoToken, Demo: true}
}

type idleListener struct{}

func (idleListener) Start(ctx context.Context) error { return nil }
func (idleListener) Stop()                           {}

func newTestServer(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	store := session.NewStore()
	analyzer := analyze.New(stubSearcher{})
	manager := live.NewManager(live.Config{
		Store:       store,
		Analyzer:    analyzer,
		NewListener: func(sink ingest.Sink) live.Listener { return idleListener{} },
		Debounce:    10 * time.Millisecond,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:    store,
		analyzer: analyzer,
		manager:  manager,
		tokens:   stubTokens{},
		hub:      newSessionHub(),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(manager.StopAll)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycleRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions", map[string]string{
		"candidateName": "Ada",
		"roleType":      "Engineering",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[session.Session](t, resp)
	assert.True(t, created.IsActive)

	getResp, err := http.Get(srv.URL + "/api/sessions/" + created.ID)
	require.NoError(t, err)
	got := decode[session.Session](t, getResp)
	assert.Equal(t, created.ID, got.ID)

	listResp, err := http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	listing := decode[map[string][]session.Session](t, listResp)
	assert.Len(t, listing["sessions"], 1)

	endResp := postJSON(t, srv.URL+"/api/sessions/"+created.ID+"/end", nil)
	ended := decode[session.Session](t, endResp)
	assert.False(t, ended.IsActive)

	// ended sessions drop out of the default listing
	listResp, err = http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	listing = decode[map[string][]session.Session](t, listResp)
	assert.Empty(t, listing["sessions"])
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions", map[string]string{"roleType": "Engineering"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/session-0-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalysisToggleRoutes(t *testing.T) {
	srv, store := newTestServer(t)
	sess := store.Create(session.CandidateInfo{Name: "Ada", RoleType: "Engineering"})

	resp := postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/analysis/enable", nil)
	enabled := decode[session.Session](t, resp)
	assert.True(t, enabled.AnalysisEnabled)

	resp = postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/analysis/disable", nil)
	disabled := decode[session.Session](t, resp)
	assert.False(t, disabled.AnalysisEnabled)
}

func TestListenRoutes(t *testing.T) {
	srv, store := newTestServer(t)
	sess := store.Create(session.CandidateInfo{Name: "Ada", RoleType: "Engineering"})

	resp := postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/listen/start", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// starting twice conflicts
	resp = postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/listen/start", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/listen/stop", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// an unknown session is a 404, not a conflict
	resp = postJSON(t, srv.URL+"/api/sessions/session-0-missing/listen/start", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/analyze", map[string]string{
		"transcript": "I love watching Christopher Nolan movies and listening to jazz music",
		"roleType":   "Engineering",
	})
	analysis := decode[analyze.Analysis](t, resp)
	assert.Greater(t, analysis.Score, 0)
	assert.NotEmpty(t, analysis.Insights)

	// no cultural content still answers 200 with the zero-score shape
	resp = postJSON(t, srv.URL+"/api/analyze", map[string]string{"transcript": "hello"})
	empty := decode[analyze.Analysis](t, resp)
	assert.Zero(t, empty.Score)
}

func TestStreamingTokenRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/streaming-token", nil)
	tok := decode[ingest.Token](t, resp)
	assert.Equal(t, ingest.DemoToken, tok.Token)
	assert.True(t, tok.Demo)
}

func TestCurrentSessionRoutes(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/current")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sess := store.Create(session.CandidateInfo{Name: "Ada", RoleType: "Engineering"})
	setResp := postJSON(t, srv.URL+"/api/sessions/"+sess.ID+"/current", nil)
	setResp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sessions/current")
	require.NoError(t, err)
	current := decode[session.Session](t, resp)
	assert.Equal(t, sess.ID, current.ID)
}

func TestHistoryRoutesDisabled(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/history/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
