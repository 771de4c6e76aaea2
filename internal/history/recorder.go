package history

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cultureflow/cultureflow/internal/analyze"
)

const maxTranscriptLen = 2000

type recordMsg struct {
	kind string // "session_start", "session_end", "analysis"

	sessionID     string
	candidateName string
	roleType      string

	analysis AnalysisRecord
}

// Recorder writes history asynchronously via a buffered channel so the
// live pipeline never waits on the database. All methods are nil-safe:
// a nil Recorder (history disabled) is a no-op.
type Recorder struct {
	store *Store
	ch    chan recordMsg
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates a recorder over the store. Call Close to drain
// pending writes on shutdown.
func NewRecorder(store *Store) *Recorder {
	r := &Recorder{
		store: store,
		ch:    make(chan recordMsg, 64),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for msg := range r.ch {
		r.handle(msg)
	}
}

func (r *Recorder) handle(m recordMsg) {
	if r.store == nil {
		return
	}
	var err error
	switch m.kind {
	case "session_start":
		err = r.store.CreateSession(m.sessionID, m.candidateName, m.roleType)
	case "session_end":
		err = r.store.EndSession(m.sessionID)
	case "analysis":
		err = r.store.RecordAnalysis(m.analysis)
	}
	if err != nil {
		slog.Warn("history write failed", "kind", m.kind, "error", err)
	}
}

// send enqueues a record unless the recorder is nil or already closed;
// a flush racing Close must degrade to a dropped record, not a panic.
func (r *Recorder) send(m recordMsg) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		slog.Warn("history record dropped after close", "kind", m.kind)
		return
	}
	r.ch <- m
}

// SessionStarted records a new session.
func (r *Recorder) SessionStarted(sessionID, candidateName, roleType string) {
	r.send(recordMsg{kind: "session_start", sessionID: sessionID, candidateName: candidateName, roleType: roleType})
}

// SessionEnded stamps a session as finished.
func (r *Recorder) SessionEnded(sessionID string) {
	r.send(recordMsg{kind: "session_end", sessionID: sessionID})
}

// AnalysisRecorded snapshots one completed analysis.
func (r *Recorder) AnalysisRecorded(sessionID, transcript string, analysis analyze.Analysis) {
	r.send(recordMsg{
		kind: "analysis",
		analysis: AnalysisRecord{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			RecordedAt: time.Now(),
			Score:      analysis.Score,
			Transcript: truncate(transcript, maxTranscriptLen),
			Insights:   marshalList(analysis.Insights),
			Entities:   marshalList(analysis.ExtractedData.Entities),
			Keywords:   marshalList(analysis.ExtractedData.Keywords),
		},
	})
}

// Close drains pending writes and stops the background goroutine.
// Closing twice is harmless.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
}

func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
