package transcript

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessChunkFirstChunk(t *testing.T) {
	update := ProcessChunk("", "hi")

	assert.Equal(t, "hi", update.FullTranscript)
	assert.False(t, update.ShouldUpdate)
}

func TestProcessChunkJoinsWithSpace(t *testing.T) {
	update := ProcessChunk("hello there", "how are you")

	assert.Equal(t, "hello there how are you", update.FullTranscript)
}

func TestProcessChunkEmptyChunk(t *testing.T) {
	update := ProcessChunk("existing transcript", "")

	assert.Equal(t, "existing transcript", update.FullTranscript)
	assert.False(t, update.ShouldUpdate)
}

func TestProcessChunkGate(t *testing.T) {
	long := strings.Repeat("a", 120)

	cases := []struct {
		name     string
		existing string
		chunk    string
		want     bool
	}{
		{"short total short chunk", "short", "tiny", false},
		{"long total short chunk", long, "tiny", false},
		{"short total long chunk", "", "a substantial chunk but the total is still under the bar", false},
		{"long total long chunk", long, "a substantial chunk", true},
		{"chunk exactly at boundary", long, strings.Repeat("b", 10), false},
		{"chunk just over boundary", long, strings.Repeat("b", 11), true},
		{"existing 95 chunk 20", strings.Repeat("a", 95), strings.Repeat("b", 20), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProcessChunk(tc.existing, tc.chunk).ShouldUpdate)
		})
	}
}

func TestProcessChunkAccumulates(t *testing.T) {
	full := ""
	chunks := []string{
		"I love watching movies",
		"especially science fiction and thrillers",
		"and I listen to a lot of jazz music on vinyl",
	}
	for _, c := range chunks {
		full = ProcessChunk(full, c).FullTranscript
	}

	assert.Equal(t, strings.Join(chunks, " "), full)
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var (
		mu      sync.Mutex
		flushes []Update
	)
	done := make(chan struct{})

	d := NewDebouncer(context.Background(), 50*time.Millisecond, func(ctx context.Context, u Update) {
		mu.Lock()
		flushes = append(flushes, u)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer d.Stop()

	d.Feed("first")
	d.Feed("second")
	d.Feed("third")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushes, 1)
	assert.Equal(t, "first second third", flushes[0].FullTranscript)
	assert.Equal(t, "first second third", d.FullTranscript())
}

func TestDebouncerResetsOnFeed(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := NewDebouncer(context.Background(), 80*time.Millisecond, func(ctx context.Context, u Update) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer d.Stop()

	// keep feeding faster than the quiet period; nothing may flush
	for i := 0; i < 5; i++ {
		d.Feed("chunk")
		time.Sleep(30 * time.Millisecond)
	}
	select {
	case <-fired:
		t.Fatal("flushed while chunks were still arriving")
	default:
	}

	// then go quiet and it fires once
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired after quiet period")
	}
}

func TestDebouncerStopDiscardsPending(t *testing.T) {
	d := NewDebouncer(context.Background(), 30*time.Millisecond, func(ctx context.Context, u Update) {
		t.Error("flush ran after Stop")
	})

	d.Feed("doomed chunk")
	d.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, d.FullTranscript())
}

func TestDebouncerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDebouncer(ctx, 30*time.Millisecond, func(ctx context.Context, u Update) {
		t.Error("flush ran with canceled context")
	})
	defer d.Stop()

	d.Feed("chunk")
	cancel()

	time.Sleep(100 * time.Millisecond)
}

func TestDebouncerAccumulatesAcrossFlushes(t *testing.T) {
	flushed := make(chan Update, 4)
	d := NewDebouncer(context.Background(), 30*time.Millisecond, func(ctx context.Context, u Update) {
		flushed <- u
	})
	defer d.Stop()

	d.Feed("hello there")
	first := <-flushed

	d.Feed("general kenobi")
	second := <-flushed

	assert.Equal(t, "hello there", first.FullTranscript)
	assert.Equal(t, "hello there general kenobi", second.FullTranscript)
}

func TestDebouncerDefaultInterval(t *testing.T) {
	d := NewDebouncer(context.Background(), 0, func(ctx context.Context, u Update) {})
	defer d.Stop()

	assert.Equal(t, DefaultDebounce, d.interval)
}
