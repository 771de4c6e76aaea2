// Package live runs the per-session listening pipeline: transcript
// ingestion feeding a debounced analysis loop, with results written to
// the session store and pushed to subscribers.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cultureflow/cultureflow/internal/analyze"
	"github.com/cultureflow/cultureflow/internal/history"
	"github.com/cultureflow/cultureflow/internal/ingest"
	"github.com/cultureflow/cultureflow/internal/session"
	"github.com/cultureflow/cultureflow/internal/transcript"
)

// Listener is the ingestion surface the manager drives; the production
// implementation is the ingest adapter.
type Listener interface {
	Start(ctx context.Context) error
	Stop()
}

// ListenerFactory builds a listener delivering updates to sink.
type ListenerFactory func(sink ingest.Sink) Listener

// Config wires a Manager.
type Config struct {
	Store       *session.Store
	Analyzer    *analyze.Analyzer
	Recorder    *history.Recorder
	NewListener ListenerFactory
	OnUpdate    func(session.Session)
	Debounce    time.Duration
}

// Manager owns the live pipelines of all currently-listening sessions.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	active map[string]*pipeline
}

type pipeline struct {
	listener  Listener
	debouncer *transcript.Debouncer
	cancel    context.CancelFunc
}

// NewManager creates a manager with no active pipelines.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		active: make(map[string]*pipeline),
	}
}

// Start failures callers may want to tell apart.
var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrSessionEnded     = errors.New("session has ended")
	ErrAlreadyListening = errors.New("already listening")
)

// StartListening begins live ingestion for a session. The returned
// error is either an unknown session, a duplicate start, or the
// listener's resource-acquisition failure.
func (m *Manager) StartListening(ctx context.Context, sessionID string) error {
	sess, ok := m.cfg.Store.Get(sessionID)
	if !ok {
		return fmt.Errorf("start listening: %w: %s", ErrUnknownSession, sessionID)
	}
	if !sess.IsActive {
		return fmt.Errorf("start listening: session %s: %w", sessionID, ErrSessionEnded)
	}

	m.mu.Lock()
	if _, exists := m.active[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("start listening: session %s: %w", sessionID, ErrAlreadyListening)
	}
	// placeholder reserves the slot while the listener starts
	m.active[sessionID] = nil
	m.mu.Unlock()

	// the pipeline outlives the request that started it; only Stop or
	// shutdown ends it
	pipeCtx, cancel := context.WithCancel(context.Background())
	debouncer := transcript.NewDebouncer(pipeCtx, m.cfg.Debounce, func(ctx context.Context, update transcript.Update) {
		m.flush(ctx, sessionID, update)
	})
	listener := m.cfg.NewListener(func(full, delta string) {
		debouncer.Feed(delta)
	})

	if err := listener.Start(pipeCtx); err != nil {
		debouncer.Stop()
		cancel()
		m.mu.Lock()
		delete(m.active, sessionID)
		m.mu.Unlock()
		return fmt.Errorf("start listening: %w", err)
	}

	m.mu.Lock()
	m.active[sessionID] = &pipeline{listener: listener, debouncer: debouncer, cancel: cancel}
	m.mu.Unlock()

	slog.Info("listening started", "session_id", sessionID)
	return nil
}

// StopListening tears down a session's pipeline. Stopping a session
// that is not listening is a no-op.
func (m *Manager) StopListening(sessionID string) {
	m.mu.Lock()
	pipe := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()

	if pipe == nil {
		return
	}
	pipe.listener.Stop()
	pipe.debouncer.Stop()
	pipe.cancel()
	slog.Info("listening stopped", "session_id", sessionID)
}

// StopAll tears down every active pipeline, for shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.StopListening(id)
	}
}

// Listening reports whether a session has an active pipeline.
func (m *Manager) Listening(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pipe, ok := m.active[sessionID]
	return ok && pipe != nil
}

// flush handles one debounced transcript update: the transcript is
// always persisted; analysis runs only when the update clears the
// content gate and the session has analysis enabled.
func (m *Manager) flush(ctx context.Context, sessionID string, update transcript.Update) {
	updated, ok := m.cfg.Store.UpdateTranscript(sessionID, update.FullTranscript)
	if !ok {
		return
	}

	if update.ShouldUpdate && updated.AnalysisEnabled {
		analysis := m.cfg.Analyzer.AnalyzeConversation(ctx, update.FullTranscript, updated.RoleType)
		if after, ok := m.cfg.Store.UpdateAnalysis(sessionID, update.FullTranscript, &analysis); ok {
			updated = after
		}
		m.cfg.Recorder.AnalysisRecorded(sessionID, update.FullTranscript, analysis)
	}

	if m.cfg.OnUpdate != nil {
		m.cfg.OnUpdate(updated)
	}
}
