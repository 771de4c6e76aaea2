package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cultural_sessions_active",
		Help: "Currently active cultural analysis sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cultural_sessions_total",
		Help: "Total cultural analysis sessions created",
	})

	SessionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cultural_sessions_reaped_total",
		Help: "Inactive sessions removed after the retention window",
	})

	AnalysesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_runs_total",
		Help: "Completed cultural fit analysis passes",
	})

	AnalysesGated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_gated_total",
		Help: "Transcript chunks skipped by the content-size gate",
	})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Cultural fit analysis latency including taste-graph lookups",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	})

	AnalysisScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_fit_score",
		Help:    "Cultural fit score per completed analysis",
		Buckets: []float64{0, 50, 65, 70, 75, 80, 85, 90, 95},
	})

	TasteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taste_requests_total",
		Help: "Requests issued to the taste-graph service",
	}, []string{"endpoint"})

	TasteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taste_errors_total",
		Help: "Taste-graph request failures by endpoint and type",
	}, []string{"endpoint", "error_type"})

	TasteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taste_request_duration_seconds",
		Help:    "Taste-graph request latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"endpoint"})

	TranscriptChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_chunks_total",
		Help: "Transcript delta chunks fed into the processor",
	})

	IngestConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_connects_total",
		Help: "Successful streaming-transcription handshakes",
	})

	IngestFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_simulation_fallbacks_total",
		Help: "Transitions into simulated transcription by reason",
	}, []string{"reason"})

	IngestFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_audio_frames_total",
		Help: "Audio frames pushed to the streaming provider",
	})

	IngestDeltas = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_transcript_deltas_total",
		Help: "Non-trivial transcript deltas forwarded downstream",
	})
)
