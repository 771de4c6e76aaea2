package history

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cultureflow/cultureflow/internal/analyze"
)

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder

	// must not panic when history is disabled
	r.SessionStarted("s1", "Ada", "Engineering")
	r.SessionEnded("s1")
	r.AnalysisRecorded("s1", "transcript", analyze.Analysis{Score: 78})
	r.Close()
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	r := NewRecorder(nil)
	r.Close()

	// a flush finishing after shutdown must not panic
	r.AnalysisRecorded("s1", "transcript", analyze.Analysis{Score: 78})
	r.SessionEnded("s1")
	r.Close()
}

func TestCloseRacesInFlightRecords(t *testing.T) {
	r := NewRecorder(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.AnalysisRecorded("s1", "transcript", analyze.Analysis{Score: 78})
			}
		}()
	}
	r.Close()
	wg.Wait()
}

func TestMarshalList(t *testing.T) {
	assert.Equal(t, `["a","b"]`, marshalList([]string{"a", "b"}))
	assert.Equal(t, `[]`, marshalList(nil))
	assert.Equal(t, `[]`, marshalList([]string{}))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxTranscriptLen+50)
	assert.Len(t, truncate(long, maxTranscriptLen), maxTranscriptLen)
	assert.Equal(t, "short", truncate("short", maxTranscriptLen))
}
