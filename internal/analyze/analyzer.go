// Package analyze turns conversation transcripts into cultural fit
// analyses by combining local signal extraction with taste-graph
// lookups. Collaborator failures never propagate to callers; they
// degrade to a zero score with an explanatory insight.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cultureflow/cultureflow/internal/extract"
	"github.com/cultureflow/cultureflow/internal/metrics"
	"github.com/cultureflow/cultureflow/internal/taste"
)

// Analysis is one completed cultural fit pass over a transcript.
type Analysis struct {
	Score           int              `json:"score"`
	Insights        []string         `json:"insights"`
	Recommendations []taste.Entity   `json:"recommendations"`
	Audiences       []taste.Audience `json:"audiences"`
	ExtractedData   extract.Extraction `json:"extractedData"`
}

const (
	baseScore        = 65
	maxScore         = 95
	maxEntityBonus   = 20
	entityPoints     = 3
	maxAudienceBonus = 10
	audiencePoints   = 2

	// at most this many search terms feed the taste graph per pass
	searchTermLimit = 5
	// entity recommendations: first N terms, top K results each
	recommendTermLimit    = 2
	recommendPerTermLimit = 3
	recommendTotalLimit   = 6

	defaultAudienceQuery = "creative"
	defaultRoleType      = "Sales Role"
)

// Analyzer computes cultural fit from transcripts.
type Analyzer struct {
	taste taste.Searcher
}

// New creates an analyzer backed by the given taste-graph searcher.
func New(ts taste.Searcher) *Analyzer {
	return &Analyzer{taste: ts}
}

// AnalyzeConversation extracts cultural signals from a transcript and
// scores them against the taste graph. It never returns an error: empty
// input short-circuits without any network call, and collaborator
// failures degrade to a zero score.
func (a *Analyzer) AnalyzeConversation(ctx context.Context, transcript, roleType string) Analysis {
	if roleType == "" {
		roleType = defaultRoleType
	}

	start := time.Now()
	extraction := extract.FromText(transcript)

	if extraction.Empty() {
		return Analysis{
			Score:           0,
			Insights:        []string{"No cultural preferences detected in conversation"},
			Recommendations: []taste.Entity{},
			Audiences:       []taste.Audience{},
			ExtractedData:   extraction,
		}
	}

	terms := searchTerms(extraction)
	fit := a.scoreFit(ctx, terms, roleType)

	if ctx.Err() != nil {
		slog.Warn("cultural analysis aborted", "error", ctx.Err())
		return Analysis{
			Score:           0,
			Insights:        []string{"Unable to analyze cultural preferences from conversation"},
			Recommendations: []taste.Entity{},
			Audiences:       []taste.Audience{},
			ExtractedData:   extract.Extraction{Entities: []string{}, Keywords: []string{}, Categories: []string{}},
		}
	}

	insights := append(fit.insights,
		fmt.Sprintf("Extracted %d cultural entities from conversation", len(extraction.Entities)),
		fmt.Sprintf("Identified %d cultural categories", len(extraction.Categories)),
		fmt.Sprintf("Confidence level: %d%%", int(math.Round(extraction.Confidence*100))),
	)

	metrics.AnalysesTotal.Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	metrics.AnalysisScore.Observe(float64(fit.score))

	return Analysis{
		Score:           fit.score,
		Insights:        insights,
		Recommendations: fit.recommendations,
		Audiences:       fit.audiences,
		ExtractedData:   extraction,
	}
}

// searchTerms builds the taste-graph query list: entities first, then
// keywords, capped at searchTermLimit.
func searchTerms(ext extract.Extraction) []string {
	terms := make([]string, 0, searchTermLimit)
	terms = append(terms, ext.Entities...)
	terms = append(terms, ext.Keywords...)
	if len(terms) > searchTermLimit {
		terms = terms[:searchTermLimit]
	}
	return terms
}

type fitResult struct {
	score           int
	insights        []string
	recommendations []taste.Entity
	audiences       []taste.Audience
}

// scoreFit fans out to the taste graph: entity recommendations for the
// leading terms and one audience search run concurrently. Any
// collaborator failure collapses to the local zero-score fallback.
func (a *Analyzer) scoreFit(ctx context.Context, terms []string, roleType string) fitResult {
	var (
		recommendations []taste.Entity
		audiences       []taste.Audience
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := a.recommendEntities(gctx, terms)
		if err != nil {
			return err
		}
		recommendations = recs
		return nil
	})

	g.Go(func() error {
		query := defaultAudienceQuery
		if len(terms) > 0 {
			query = terms[0]
		}
		auds, err := a.taste.SearchAudiences(gctx, query)
		if err != nil {
			return fmt.Errorf("audience search: %w", err)
		}
		audiences = auds
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Warn("taste graph lookup failed", "error", err)
		return fitResult{
			score:           0,
			insights:        []string{"Unable to analyze cultural fit - API limitations"},
			recommendations: []taste.Entity{},
			audiences:       []taste.Audience{},
		}
	}

	score := fitScore(len(recommendations), len(audiences))

	return fitResult{
		score: score,
		insights: []string{
			fmt.Sprintf("Cultural alignment score: %d%%", score),
			fmt.Sprintf("Found %d matching cultural entities", len(recommendations)),
			fmt.Sprintf("Identified %d relevant cultural audiences", len(audiences)),
			fmt.Sprintf("Recommended for %s roles based on cultural profile", roleType),
		},
		recommendations: recommendations,
		audiences:       audiences,
	}
}

// recommendEntities searches the leading terms and keeps the top
// results of each, bounded overall.
func (a *Analyzer) recommendEntities(ctx context.Context, terms []string) ([]taste.Entity, error) {
	limit := min(len(terms), recommendTermLimit)
	all := make([]taste.Entity, 0, recommendTotalLimit)

	for _, term := range terms[:limit] {
		results, err := a.taste.SearchEntities(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("entity search %q: %w", term, err)
		}
		if len(results) > recommendPerTermLimit {
			results = results[:recommendPerTermLimit]
		}
		all = append(all, results...)
	}

	if len(all) > recommendTotalLimit {
		all = all[:recommendTotalLimit]
	}
	return all, nil
}

// fitScore applies the fit formula: a fixed base plus capped bonuses
// per matched entity and audience, capped overall.
func fitScore(entityCount, audienceCount int) int {
	entityBonus := min(maxEntityBonus, entityCount*entityPoints)
	audienceBonus := min(maxAudienceBonus, audienceCount*audiencePoints)
	return min(maxScore, baseScore+entityBonus+audienceBonus)
}
