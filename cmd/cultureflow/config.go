package main

import (
	"os"
	"strconv"
	"time"

	"github.com/cultureflow/cultureflow/internal/ingest"
	"github.com/cultureflow/cultureflow/internal/voicecall"
)

type config struct {
	port string

	tasteURL      string
	tasteAPIKey   string
	tastePoolSize int

	streamURL      string
	streamTokenURL string
	streamAPIKey   string

	callPlatformURL string
	callPlatformKey string
	callPollEvery   time.Duration

	databaseURL string

	analysisDebounce time.Duration
}

func loadConfig() config {
	return config{
		port: envStr("CULTUREFLOW_PORT", "8080"),

		tasteURL:      envStr("TASTE_API_URL", "https://hackathon.api.qloo.com"),
		tasteAPIKey:   envStr("TASTE_API_KEY", ""),
		tastePoolSize: envInt("TASTE_POOL_SIZE", 10),

		streamURL:      envStr("STREAM_WS_URL", ingest.DefaultStreamURL),
		streamTokenURL: envStr("STREAM_TOKEN_URL", "https://streaming.assemblyai.com"),
		streamAPIKey:   envStr("ASSEMBLYAI_API_KEY", ""),

		callPlatformURL: envStr("CALL_PLATFORM_URL", ""),
		callPlatformKey: envStr("CALL_PLATFORM_KEY", ""),
		callPollEvery:   envDuration("CALL_POLL_INTERVAL", voicecall.DefaultPollInterval),

		databaseURL: envStr("DATABASE_URL", ""),

		analysisDebounce: envDuration("ANALYSIS_DEBOUNCE", 3*time.Second),
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
