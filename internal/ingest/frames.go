package ingest

import "context"

// Audio format expected by the streaming provider: 16-bit PCM,
// 16 kHz, mono, sent as binary frames roughly every 50 ms.
const (
	SampleRate      = 16000
	samplesPerFrame = SampleRate / 20
	frameBytes      = samplesPerFrame * 2
)

// FrameReader yields successive PCM frames from a capture device.
type FrameReader interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// FrameSource acquires a capture device for one listening attempt. The
// returned reader is released on every adapter exit path.
type FrameSource interface {
	Acquire(ctx context.Context) (FrameReader, error)
}

// SilenceSource is the default frame source: frames of digital silence
// at the expected cadence. It keeps the streaming connection alive when
// no real capture device is wired in.
type SilenceSource struct{}

func (SilenceSource) Acquire(ctx context.Context) (FrameReader, error) {
	return &silenceReader{frame: EncodePCM(make([]float32, samplesPerFrame))}, nil
}

type silenceReader struct {
	frame []byte
}

func (r *silenceReader) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.frame, nil
}

func (r *silenceReader) Close() error { return nil }
