package transcript

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is how long a transcript must stay quiet before the
// accumulated chunks are flushed to the analysis callback.
const DefaultDebounce = 3 * time.Second

// Debouncer coalesces bursts of transcript chunks per session. Each
// Feed resets the timer; when it fires, all pending chunks are folded
// into the transcript and the callback runs with the result. Flushes
// for the same debouncer never overlap.
type Debouncer struct {
	interval time.Duration
	flush    func(ctx context.Context, update Update)

	mu      sync.Mutex
	timer   *time.Timer
	pending []string
	full    string
	stopped bool

	runMu sync.Mutex
	ctx   context.Context
}

// NewDebouncer creates a debouncer that calls flush after the transcript
// has been quiet for interval. The context bounds every flush; once it
// is canceled no further flushes run. A zero interval selects
// DefaultDebounce.
func NewDebouncer(ctx context.Context, interval time.Duration, flush func(ctx context.Context, update Update)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &Debouncer{
		interval: interval,
		flush:    flush,
		ctx:      ctx,
	}
}

// Feed queues a chunk and restarts the quiet-period timer.
func (d *Debouncer) Feed(chunk string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.ctx.Err() != nil {
		return
	}

	d.pending = append(d.pending, chunk)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

// FullTranscript returns the transcript accumulated across flushes.
func (d *Debouncer) FullTranscript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.full
}

// Stop cancels any pending flush and discards queued chunks.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	// serialize flushes so a slow callback never races the next one
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	chunk := strings.Join(d.pending, " ")
	d.pending = nil
	existing := d.full
	d.mu.Unlock()

	if d.ctx.Err() != nil {
		return
	}

	update := ProcessChunk(existing, chunk)

	d.mu.Lock()
	d.full = update.FullTranscript
	d.mu.Unlock()

	slog.Debug("transcript flush",
		"chunk_len", len(chunk),
		"total_len", len(update.FullTranscript),
		"analyze", update.ShouldUpdate)

	d.flush(d.ctx, update)
}
