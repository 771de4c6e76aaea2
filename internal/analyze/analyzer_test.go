package analyze

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultureflow/cultureflow/internal/taste"
)

const nolanTranscript = "I love watching Christopher Nolan movies and listening to jazz music"

// stubSearcher scripts taste-graph responses per call.
type stubSearcher struct {
	mu            sync.Mutex
	entityBatches [][]taste.Entity
	audiences     []taste.Audience
	err           error

	entityCalls   int
	audienceCalls int
}

func (s *stubSearcher) SearchEntities(ctx context.Context, query string) ([]taste.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.entityCalls
	s.entityCalls++
	if s.err != nil {
		return nil, s.err
	}
	if call < len(s.entityBatches) {
		return s.entityBatches[call], nil
	}
	return nil, nil
}

func (s *stubSearcher) SearchAudiences(ctx context.Context, query string) ([]taste.Audience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audienceCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.audiences, nil
}

func entities(names ...string) []taste.Entity {
	out := make([]taste.Entity, len(names))
	for i, n := range names {
		out[i] = taste.Entity{ID: n, Name: n, Type: "urn:entity:movie"}
	}
	return out
}

func TestAnalyzeConversation(t *testing.T) {
	stub := &stubSearcher{
		entityBatches: [][]taste.Entity{entities("Interstellar", "Dunkirk", "Tenet")},
		audiences: []taste.Audience{
			{ID: "a1", Name: "Film Buffs"},
			{ID: "a2", Name: "Jazz Heads"},
		},
	}
	a := New(stub)

	result := a.AnalyzeConversation(context.Background(), nolanTranscript, "Engineering")

	assert.Equal(t, 78, result.Score)
	require.Len(t, result.Recommendations, 3)
	assert.Len(t, result.Audiences, 2)
	assert.NotEmpty(t, result.ExtractedData.Entities)
	assert.Contains(t, result.Insights, "Cultural alignment score: 78%")
	assert.Contains(t, result.Insights, "Found 3 matching cultural entities")
	assert.Contains(t, result.Insights, "Identified 2 relevant cultural audiences")
	assert.Contains(t, result.Insights, "Recommended for Engineering roles based on cultural profile")
	assert.Equal(t, 1, stub.audienceCalls)
}

func TestAnalyzeConversationDefaultRole(t *testing.T) {
	stub := &stubSearcher{}
	a := New(stub)

	result := a.AnalyzeConversation(context.Background(), nolanTranscript, "")

	assert.Contains(t, result.Insights, "Recommended for Sales Role roles based on cultural profile")
}

func TestAnalyzeConversationEmptyTranscript(t *testing.T) {
	stub := &stubSearcher{}
	a := New(stub)

	for _, transcript := range []string{"", "hello how are you today"} {
		result := a.AnalyzeConversation(context.Background(), transcript, "Sales Role")

		assert.Zero(t, result.Score, "transcript %q", transcript)
		assert.Equal(t, []string{"No cultural preferences detected in conversation"}, result.Insights)
		assert.Empty(t, result.Recommendations)
		assert.Empty(t, result.Audiences)
	}
	// no signal extracted means no taste-graph traffic at all
	assert.Zero(t, stub.entityCalls)
	assert.Zero(t, stub.audienceCalls)
}

func TestAnalyzeConversationCollaboratorFailure(t *testing.T) {
	stub := &stubSearcher{err: errors.New("upstream 503")}
	a := New(stub)

	result := a.AnalyzeConversation(context.Background(), nolanTranscript, "Sales Role")

	assert.Zero(t, result.Score)
	assert.Contains(t, result.Insights, "Unable to analyze cultural fit - API limitations")
	assert.Empty(t, result.Recommendations)
	assert.Empty(t, result.Audiences)
	// local extraction still reported even when the graph is down
	assert.NotEmpty(t, result.ExtractedData.Keywords)
}

func TestAnalyzeConversationCanceledContext(t *testing.T) {
	stub := &stubSearcher{audiences: []taste.Audience{{ID: "a1"}}}
	a := New(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := a.AnalyzeConversation(ctx, nolanTranscript, "Sales Role")

	assert.Zero(t, result.Score)
	assert.Equal(t, []string{"Unable to analyze cultural preferences from conversation"}, result.Insights)
}

func TestFitScore(t *testing.T) {
	cases := []struct {
		entities, audiences int
		want                int
	}{
		{0, 0, 65},
		{1, 1, 70},
		{3, 2, 78},
		{7, 0, 85},
		{0, 5, 75},
		{10, 10, 95},
		{100, 100, 95},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fitScore(tc.entities, tc.audiences),
			"entities=%d audiences=%d", tc.entities, tc.audiences)
	}
}
