package main

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cultureflow/cultureflow/internal/session"
)

// sessionHub fans session snapshots out to SSE subscribers, keyed by
// session ID.
type sessionHub struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func newSessionHub() *sessionHub {
	return &sessionHub{subs: map[string]map[chan []byte]struct{}{}}
}

func (h *sessionHub) subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[chan []byte]struct{}{}
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *sessionHub) unsubscribe(sessionID string, ch chan []byte) {
	h.mu.Lock()
	delete(h.subs[sessionID], ch)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
	h.mu.Unlock()
}

// broadcast sends a snapshot to the session's subscribers. The
// select/default is a non-blocking send: slow consumers drop stale
// snapshots and each channel has capacity 1, so the subscriber always
// reads the most recent state.
func (h *sessionHub) broadcast(sess session.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		slog.Error("marshal session snapshot", "error", err)
		return
	}
	h.mu.Lock()
	for ch := range h.subs[sess.ID] {
		select {
		case ch <- data:
		default:
		}
	}
	h.mu.Unlock()
}
