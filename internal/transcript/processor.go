// Package transcript accumulates streaming transcript chunks and
// decides when enough new content has arrived to justify re-running
// the cultural analysis downstream.
package transcript

import (
	"github.com/cultureflow/cultureflow/internal/metrics"
)

// Content-size gate: tiny fragments churn the analyzer for no gain.
const (
	minFullTranscriptLen = 100
	minChunkLen          = 10
)

// Update is the outcome of folding one chunk into a transcript.
type Update struct {
	FullTranscript string `json:"fullTranscript"`
	ShouldUpdate   bool   `json:"shouldUpdate"`
}

// ProcessChunk appends a new chunk to the accumulated transcript and
// reports whether the result clears the analysis gate. The chunk is
// joined with a single space unless the existing transcript is empty.
func ProcessChunk(existing, chunk string) Update {
	metrics.TranscriptChunks.Inc()

	full := existing
	if chunk != "" {
		if full == "" {
			full = chunk
		} else {
			full += " " + chunk
		}
	}

	should := len(full) > minFullTranscriptLen && len(chunk) > minChunkLen
	if !should {
		metrics.AnalysesGated.Inc()
	}

	return Update{FullTranscript: full, ShouldUpdate: should}
}
