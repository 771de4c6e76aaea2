// Package ingest connects a session to live streaming transcription
// and forwards transcript deltas downstream. When the live provider is
// unavailable for any reason it falls back to replaying a simulated
// conversation through the same path, so downstream consumers never
// see the difference.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cultureflow/cultureflow/internal/metrics"
)

// State is the adapter's lifecycle position.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateStreaming    State = "streaming"
	StateSimulating   State = "simulating"
	StateDisconnected State = "disconnected"
)

// Provider close codes that, with no transcript received yet, send the
// adapter to simulation instead of a hard stop.
const (
	closeAuthFailure    = 4001
	closeConnectionLost = 1006
)

// DefaultStreamURL is the streaming provider's websocket endpoint.
const DefaultStreamURL = "wss://streaming.assemblyai.com/v3/ws"

const (
	defaultConnectTimeout = 15 * time.Second
	defaultFrameInterval  = 50 * time.Millisecond
	defaultScriptInterval = 3 * time.Second
	defaultGraceDelay     = 500 * time.Millisecond
)

// Sink receives transcript updates: the cumulative transcript and the
// newly-arrived delta.
type Sink func(full, delta string)

// Config wires an Adapter. Zero values select production defaults.
type Config struct {
	StreamURL string
	Tokens    TokenFetcher
	Source    FrameSource
	Sink      Sink
	Script    []string

	ConnectTimeout time.Duration
	FrameInterval  time.Duration
	ScriptInterval time.Duration
	GraceDelay     time.Duration
}

// Adapter is the per-session transcript ingestion state machine.
type Adapter struct {
	cfg Config

	mu         sync.Mutex
	state      State
	attempt    int
	cancel     context.CancelFunc
	conn       *websocket.Conn
	reader     FrameReader
	transcript string
}

// New creates an idle adapter.
func New(cfg Config) *Adapter {
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.Source == nil {
		cfg.Source = SilenceSource{}
	}
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultScript
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.ScriptInterval <= 0 {
		cfg.ScriptInterval = defaultScriptInterval
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = defaultGraceDelay
	}
	return &Adapter{cfg: cfg, state: StateIdle}
}

// State returns the adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Transcript returns the cumulative transcript received so far.
func (a *Adapter) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transcript
}

// Start acquires the audio source and begins connecting in the
// background. Source acquisition is the only failure that propagates;
// everything after it degrades to simulation. A second Start while
// running is rejected.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIdle && a.state != StateDisconnected {
		a.mu.Unlock()
		return fmt.Errorf("start listening: already %s", a.state)
	}
	a.attempt++
	attempt := a.attempt
	a.state = StateConnecting
	a.transcript = ""
	a.mu.Unlock()

	reader, err := a.cfg.Source.Acquire(ctx)
	if err != nil {
		a.setState(attempt, StateIdle)
		return fmt.Errorf("acquire audio source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if attempt != a.attempt {
		// stopped while acquiring
		a.mu.Unlock()
		cancel()
		reader.Close()
		return nil
	}
	a.cancel = cancel
	a.reader = reader
	a.mu.Unlock()

	go a.run(runCtx, attempt, reader)
	return nil
}

// Stop tears down the current attempt: pending connection events are
// invalidated, the socket and audio source are released, and the
// transcript is cleared.
func (a *Adapter) Stop() {
	a.mu.Lock()
	a.attempt++
	cancel := a.cancel
	conn := a.conn
	reader := a.reader
	a.cancel = nil
	a.conn = nil
	a.reader = nil
	a.state = StateIdle
	a.transcript = ""
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "listener stopped"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	if reader != nil {
		reader.Close()
	}
}

func (a *Adapter) run(ctx context.Context, attempt int, reader FrameReader) {
	tok := a.cfg.Tokens.Fetch(ctx)
	if tok.Demo || tok.Token == DemoToken {
		a.releaseAudio(attempt, reader)
		a.simulate(ctx, attempt, "demo_token")
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.ConnectTimeout}
	url := fmt.Sprintf("%s?token=%s&sample_rate=%d&encoding=pcm_s16le&format_turns=true",
		a.cfg.StreamURL, tok.Token, SampleRate)

	dialCtx, cancelDial := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	cancelDial()
	if err != nil {
		slog.Warn("streaming connect failed, falling back to simulation", "error", err)
		a.releaseAudio(attempt, reader)
		a.simulate(ctx, attempt, "connect_failed")
		return
	}

	a.mu.Lock()
	if attempt != a.attempt {
		a.mu.Unlock()
		conn.Close()
		reader.Close()
		return
	}
	a.conn = conn
	a.state = StateConnected
	a.mu.Unlock()

	metrics.IngestConnects.Inc()
	slog.Info("streaming transcription connected")

	go a.pumpAudio(ctx, attempt, conn, reader)
	a.readMessages(ctx, attempt, conn, reader)
}

// pumpAudio pushes PCM frames to the provider on a fixed cadence until
// the context ends or the socket dies.
func (a *Adapter) pumpAudio(ctx context.Context, attempt int, conn *websocket.Conn, reader FrameReader) {
	ticker := time.NewTicker(a.cfg.FrameInterval)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := reader.ReadFrame(ctx)
		if err != nil {
			slog.Warn("audio frame read failed", "error", err)
			return
		}
		if err = conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
		metrics.IngestFrames.Inc()

		if first {
			first = false
			a.setState(attempt, StateStreaming)
		}
	}
}

// providerMessage is one inbound JSON frame from the streaming
// provider. Turn messages carry the cumulative transcript.
type providerMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
}

func (a *Adapter) readMessages(ctx context.Context, attempt int, conn *websocket.Conn, reader FrameReader) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.handleDisconnect(ctx, attempt, reader, err)
			return
		}
		if !a.isCurrent(attempt) {
			return
		}

		var msg providerMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			slog.Warn("unparseable provider message", "error", err)
			continue
		}

		switch {
		case msg.Error != "":
			slog.Error("streaming provider error", "error", msg.Error)
			conn.Close()
		case msg.Type == "Begin":
			slog.Info("streaming session began")
		case msg.Type == "Turn":
			a.handleTurn(attempt, msg.Transcript)
		case msg.Type == "Termination":
			slog.Info("streaming session terminated")
		}
	}
}

// handleTurn folds a cumulative transcript into state and forwards the
// new suffix downstream when it is non-trivial.
func (a *Adapter) handleTurn(attempt int, cumulative string) {
	full := strings.TrimSpace(cumulative)
	if full == "" {
		return
	}

	a.mu.Lock()
	if attempt != a.attempt || full == a.transcript {
		a.mu.Unlock()
		return
	}
	prev := a.transcript
	a.transcript = full
	a.mu.Unlock()

	delta := suffixDelta(prev, full)
	if delta == "" {
		delta = full
	}

	metrics.IngestDeltas.Inc()
	if a.cfg.Sink != nil {
		a.cfg.Sink(full, delta)
	}
}

// suffixDelta is the trimmed portion of full beyond the previous
// cumulative transcript.
func suffixDelta(prev, full string) string {
	if len(full) <= len(prev) {
		return ""
	}
	return strings.TrimSpace(full[len(prev):])
}

func (a *Adapter) handleDisconnect(ctx context.Context, attempt int, reader FrameReader, err error) {
	if !a.isCurrent(attempt) {
		return
	}

	code := 0
	if closeErr, ok := err.(*websocket.CloseError); ok {
		code = closeErr.Code
	}
	slog.Info("streaming connection closed", "code", code, "error", err)

	a.releaseAudio(attempt, reader)

	// recoverable closes with nothing transcribed yet get the demo path
	if (code == closeAuthFailure || code == closeConnectionLost) && a.Transcript() == "" {
		reason := "connection_lost"
		if code == closeAuthFailure {
			reason = "auth_failure"
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.GraceDelay):
		}
		a.simulate(ctx, attempt, reason)
		return
	}

	a.setState(attempt, StateDisconnected)
}

// simulate replays the configured script through the sink at the
// scripted cadence, accumulating the transcript exactly as the live
// path does.
func (a *Adapter) simulate(ctx context.Context, attempt int, reason string) {
	if !a.setState(attempt, StateSimulating) {
		return
	}
	metrics.IngestFallbacks.WithLabelValues(reason).Inc()
	slog.Info("simulating transcription", "reason", reason)

	ticker := time.NewTicker(a.cfg.ScriptInterval)
	defer ticker.Stop()

	for _, chunk := range a.cfg.Script {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		a.mu.Lock()
		if attempt != a.attempt {
			a.mu.Unlock()
			return
		}
		if a.transcript == "" {
			a.transcript = chunk
		} else {
			a.transcript += " " + chunk
		}
		full := a.transcript
		a.mu.Unlock()

		metrics.IngestDeltas.Inc()
		if a.cfg.Sink != nil {
			a.cfg.Sink(full, chunk)
		}
	}

	a.setState(attempt, StateDisconnected)
}

// releaseAudio closes the frame reader and forgets the socket for the
// given attempt.
func (a *Adapter) releaseAudio(attempt int, reader FrameReader) {
	a.mu.Lock()
	if attempt == a.attempt {
		a.reader = nil
		a.conn = nil
	}
	a.mu.Unlock()
	reader.Close()
}

// setState transitions to next if the attempt is still current.
func (a *Adapter) setState(attempt int, next State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if attempt != a.attempt {
		return false
	}
	a.state = next
	return true
}

func (a *Adapter) isCurrent(attempt int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return attempt == a.attempt
}
