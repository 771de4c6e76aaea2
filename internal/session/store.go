// Package session holds in-memory state for live interview sessions:
// identity, accumulated transcript, and the latest cultural analysis.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cultureflow/cultureflow/internal/analyze"
	"github.com/cultureflow/cultureflow/internal/metrics"
)

// Retention is how long an inactive session survives before the
// garbage collector reaps it.
const Retention = 24 * time.Hour

// CandidateInfo identifies who a session is about.
type CandidateInfo struct {
	ID       string `json:"candidateId"`
	Name     string `json:"candidateName"`
	Email    string `json:"candidateEmail"`
	RoleType string `json:"roleType"`
}

// Session is one live or recently-finished interview session.
type Session struct {
	ID               string            `json:"id"`
	CandidateID      string            `json:"candidateId,omitempty"`
	CandidateName    string            `json:"candidateName"`
	CandidateEmail   string            `json:"candidateEmail,omitempty"`
	RoleType         string            `json:"roleType"`
	CallID           string            `json:"callId,omitempty"`
	Transcript       string            `json:"transcript"`
	CulturalAnalysis *analyze.Analysis `json:"culturalAnalysis,omitempty"`
	IsActive         bool              `json:"isActive"`
	AnalysisEnabled  bool              `json:"analysisEnabled"`
	CreatedAt        time.Time         `json:"createdAt"`
	LastActivity     time.Time         `json:"lastActivity"`
}

// Fields is a partial update; nil members leave the stored value alone.
type Fields struct {
	CandidateName    *string
	RoleType         *string
	CallID           *string
	Transcript       *string
	CulturalAnalysis *analyze.Analysis
	IsActive         *bool
	AnalysisEnabled  *bool
}

// Store is a concurrency-safe in-memory session table.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	currentID string

	// injectable clock for retention tests
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new active session, makes it the current one, and
// returns a copy of it. A duplicate active candidateId is not rejected;
// callers that want one session per candidate check GetByCandidate
// first.
func (s *Store) Create(info CandidateInfo) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:             newID(now),
		CandidateID:    info.ID,
		CandidateName:  info.Name,
		CandidateEmail: info.Email,
		RoleType:       info.RoleType,
		IsActive:       true,
		CreatedAt:      now,
		LastActivity:   now,
	}
	s.sessions[sess.ID] = sess
	s.currentID = sess.ID

	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Set(float64(s.activeLocked()))
	slog.Info("session created", "session_id", sess.ID, "candidate", info.Name, "role", info.RoleType)

	return *sess
}

// Get returns a copy of the session, or false if it does not exist.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// GetByCandidate returns the most recent active session for a
// candidate, or false if none is active.
func (s *Store) GetByCandidate(candidateID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Session
	for _, sess := range s.sessions {
		if !sess.IsActive || sess.CandidateID != candidateID {
			continue
		}
		if best == nil || sess.CreatedAt.After(best.CreatedAt) {
			best = sess
		}
	}
	if best == nil {
		return Session{}, false
	}
	return *best, true
}

// SetCurrent marks a session as the one the dashboard follows. It
// returns false if the session does not exist.
func (s *Store) SetCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.currentID = id
	return true
}

// Current returns the followed session, or false if none is set.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[s.currentID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Update applies a partial update and bumps LastActivity. It returns
// the updated copy, or false if the session does not exist.
func (s *Store) Update(id string, fields Fields) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}

	if fields.CandidateName != nil {
		sess.CandidateName = *fields.CandidateName
	}
	if fields.RoleType != nil {
		sess.RoleType = *fields.RoleType
	}
	if fields.CallID != nil {
		sess.CallID = *fields.CallID
	}
	if fields.Transcript != nil {
		sess.Transcript = *fields.Transcript
	}
	if fields.CulturalAnalysis != nil {
		sess.CulturalAnalysis = fields.CulturalAnalysis
	}
	if fields.AnalysisEnabled != nil {
		sess.AnalysisEnabled = *fields.AnalysisEnabled
	}
	if fields.IsActive != nil {
		sess.IsActive = *fields.IsActive
		metrics.SessionsActive.Set(float64(s.activeLocked()))
	}
	sess.LastActivity = s.now()

	return *sess, true
}

// UpdateTranscript replaces the stored transcript with the accumulated
// text from the live pipeline.
func (s *Store) UpdateTranscript(id, fullTranscript string) (Session, bool) {
	return s.Update(id, Fields{Transcript: &fullTranscript})
}

// UpdateAnalysis stores a completed analysis and the transcript it was
// computed from as one atomic update.
func (s *Store) UpdateAnalysis(id, fullTranscript string, analysis *analyze.Analysis) (Session, bool) {
	return s.Update(id, Fields{Transcript: &fullTranscript, CulturalAnalysis: analysis})
}

// SetAnalysisEnabled toggles live cultural analysis for a session.
func (s *Store) SetAnalysisEnabled(id string, enabled bool) (Session, bool) {
	return s.Update(id, Fields{AnalysisEnabled: &enabled})
}

// End marks a session inactive and clears the current pointer if it
// referenced this session. The record itself is kept for retention.
func (s *Store) End(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.IsActive = false
	sess.LastActivity = s.now()
	if s.currentID == id {
		s.currentID = ""
	}
	metrics.SessionsActive.Set(float64(s.activeLocked()))
	return *sess, true
}

// Delete removes a session outright.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	if s.currentID == id {
		s.currentID = ""
	}
	metrics.SessionsActive.Set(float64(s.activeLocked()))
	return true
}

// List returns copies of all sessions, newest first.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(false)
}

// Active returns copies of all active sessions, newest first.
func (s *Store) Active() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(true)
}

func (s *Store) listLocked(activeOnly bool) []Session {
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if activeOnly && !sess.IsActive {
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Reap removes inactive sessions whose start time is past the
// retention window and returns how many it removed. Active sessions
// are never reaped, regardless of age.
func (s *Store) Reap(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention)
	reaped := 0
	for id, sess := range s.sessions {
		if sess.IsActive || sess.CreatedAt.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		if s.currentID == id {
			s.currentID = ""
		}
		reaped++
	}
	if reaped > 0 {
		metrics.SessionsReaped.Add(float64(reaped))
		metrics.SessionsActive.Set(float64(s.activeLocked()))
		slog.Info("reaped stale sessions", "count", reaped)
	}
	return reaped
}

// StartGC reaps expired sessions on an hourly cadence until ctx ends.
func (s *Store) StartGC(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Reap(Retention)
			}
		}
	}()
}

func (s *Store) activeLocked() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.IsActive {
			n++
		}
	}
	return n
}

// newID builds a session identifier from the creation time and a short
// random suffix, e.g. "session-1735689600000-9f86d081".
func newID(now time.Time) string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return fmt.Sprintf("session-%d-%s", now.UnixMilli(), hex.EncodeToString(buf))
}
