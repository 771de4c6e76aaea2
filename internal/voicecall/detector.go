package voicecall

import (
	"context"
	"log/slog"
	"time"

	"github.com/cultureflow/cultureflow/internal/session"
)

// DefaultPollInterval is how often the platform registry is polled.
const DefaultPollInterval = 3 * time.Second

// Journal receives session lifecycle events for the history log, so
// detector-created sessions get the same records as UI-created ones.
type Journal interface {
	SessionStarted(sessionID, candidateName, roleType string)
	SessionEnded(sessionID string)
}

// Detector reconciles the local session store against the platform's
// active calls: new platform calls get a store session with analysis
// enabled, and sessions whose platform call vanished are ended.
type Detector struct {
	calls    CallLister
	store    *session.Store
	journal  Journal
	interval time.Duration

	known map[string]bool
}

// NewDetector creates a detector over the given registry and store.
// journal may be nil when history is disabled. A zero interval selects
// DefaultPollInterval.
func NewDetector(calls CallLister, store *session.Store, journal Journal, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Detector{
		calls:    calls,
		store:    store,
		journal:  journal,
		interval: interval,
		known:    make(map[string]bool),
	}
}

// Run polls until the context ends. Poll failures are logged and the
// loop keeps going; the platform being down must not end local
// sessions.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll performs one reconciliation pass.
func (d *Detector) Poll(ctx context.Context) {
	calls, err := d.calls.ActiveCalls(ctx)
	if err != nil {
		slog.Warn("call platform poll failed", "error", err)
		return
	}

	current := make(map[string]bool, len(calls))
	for _, call := range calls {
		current[call.CallID] = true
		if !call.Active || d.known[call.CallID] {
			continue
		}
		if d.findByCallID(call.CallID) != nil {
			continue
		}

		created := d.store.Create(session.CandidateInfo{
			ID:       call.CandidateInfo.ID,
			Name:     call.CandidateInfo.Name,
			Email:    call.CandidateInfo.Email,
			RoleType: call.CandidateInfo.Role,
		})
		callID := call.CallID
		enabled := true
		d.store.Update(created.ID, session.Fields{CallID: &callID, AnalysisEnabled: &enabled})
		if d.journal != nil {
			d.journal.SessionStarted(created.ID, created.CandidateName, created.RoleType)
		}
		slog.Info("detected new platform call", "call_id", callID, "session_id", created.ID)
	}

	// calls we knew about that vanished from the registry are over
	for callID := range d.known {
		if current[callID] {
			continue
		}
		if sess := d.findByCallID(callID); sess != nil {
			d.store.End(sess.ID)
			if d.journal != nil {
				d.journal.SessionEnded(sess.ID)
			}
			slog.Info("platform call ended", "call_id", callID, "session_id", sess.ID)
		}
	}

	d.known = current
}

func (d *Detector) findByCallID(callID string) *session.Session {
	for _, sess := range d.store.Active() {
		if sess.CallID == callID {
			return &sess
		}
	}
	return nil
}
