package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cultureflow/cultureflow/internal/analyze"
	"github.com/cultureflow/cultureflow/internal/history"
	"github.com/cultureflow/cultureflow/internal/ingest"
	"github.com/cultureflow/cultureflow/internal/live"
	"github.com/cultureflow/cultureflow/internal/session"
)

// defaultHistoryLimit is how many history sessions are returned when
// the caller omits the ?limit= query parameter.
const defaultHistoryLimit = 20

type deps struct {
	store    *session.Store
	analyzer *analyze.Analyzer
	manager  *live.Manager
	tokens   ingest.TokenFetcher
	hub      *sessionHub
	recorder *history.Recorder
	history  *history.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/sessions", d.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", d.handleListSessions)
	mux.HandleFunc("GET /api/sessions/current", d.handleCurrentSession)
	mux.HandleFunc("POST /api/sessions/{id}/current", d.handleSetCurrent)
	mux.HandleFunc("GET /api/sessions/{id}", d.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/end", d.handleEndSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", d.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/analysis/enable", d.handleAnalysisToggle(true))
	mux.HandleFunc("POST /api/sessions/{id}/analysis/disable", d.handleAnalysisToggle(false))
	mux.HandleFunc("POST /api/sessions/{id}/listen/start", d.handleListenStart)
	mux.HandleFunc("POST /api/sessions/{id}/listen/stop", d.handleListenStop)
	mux.HandleFunc("GET /api/sessions/{id}/stream", d.handleSessionStream)

	mux.HandleFunc("POST /api/analyze", d.handleAnalyze)
	mux.HandleFunc("POST /api/streaming-token", d.handleStreamingToken)

	registerHistoryRoutes(mux, d.history)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (d deps) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CandidateInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "candidateName is required", http.StatusBadRequest)
		return
	}

	sess := d.store.Create(req)
	d.recorder.SessionStarted(sess.ID, sess.CandidateName, sess.RoleType)
	writeJSON(w, http.StatusCreated, sess)
}

func (d deps) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := d.store.Active()
	if r.URL.Query().Get("all") == "true" {
		sessions = d.store.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (d deps) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (d deps) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := d.store.Current()
	if !ok {
		http.Error(w, "no current session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (d deps) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !d.store.SetCurrent(id) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d deps) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.manager.StopListening(id)
	sess, ok := d.store.End(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	d.recorder.SessionEnded(id)
	d.hub.broadcast(sess)
	writeJSON(w, http.StatusOK, sess)
}

func (d deps) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.manager.StopListening(id)
	if !d.store.Delete(id) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d deps) handleAnalysisToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := d.store.SetAnalysisEnabled(r.PathValue("id"), enabled)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func (d deps) handleListenStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := d.manager.StartListening(r.Context(), id); err != nil {
		slog.Error("listen start failed", "session_id", id, "error", err)
		status := http.StatusConflict
		if errors.Is(err, live.ErrUnknownSession) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "listening"})
}

func (d deps) handleListenStop(w http.ResponseWriter, r *http.Request) {
	d.manager.StopListening(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (d deps) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := d.store.Get(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// current snapshot first, then live updates
	if data, err := json.Marshal(sess); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	ch := d.hub.subscribe(id)
	defer d.hub.unsubscribe(id, ch)
	slog.Info("session stream client connected", "session_id", id, "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			slog.Info("session stream client disconnected", "session_id", id)
			return
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (d deps) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		RoleType   string `json:"roleType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	analysis := d.analyzer.AnalyzeConversation(r.Context(), req.Transcript, req.RoleType)
	writeJSON(w, http.StatusOK, analysis)
}

func (d deps) handleStreamingToken(w http.ResponseWriter, r *http.Request) {
	tok := d.tokens.Fetch(r.Context())
	writeJSON(w, http.StatusOK, tok)
}

func registerHistoryRoutes(mux *http.ServeMux, store *history.Store) {
	mux.HandleFunc("GET /api/history/sessions", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultHistoryLimit)
		offset := queryInt(r, "offset", 0)
		sessions, total, err := store.ListSessions(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": total})
	})

	mux.HandleFunc("GET /api/history/sessions/{id}/analyses", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history disabled", http.StatusNotFound)
			return
		}
		analyses, err := store.ListAnalyses(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
