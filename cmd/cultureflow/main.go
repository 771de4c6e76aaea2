package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cultureflow/cultureflow/internal/analyze"
	"github.com/cultureflow/cultureflow/internal/history"
	"github.com/cultureflow/cultureflow/internal/ingest"
	"github.com/cultureflow/cultureflow/internal/live"
	"github.com/cultureflow/cultureflow/internal/session"
	"github.com/cultureflow/cultureflow/internal/taste"
	"github.com/cultureflow/cultureflow/internal/voicecall"
)

func main() {
	godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	tasteClient := taste.NewClient(cfg.tasteURL, cfg.tasteAPIKey, cfg.tastePoolSize)
	analyzer := analyze.New(tasteClient)

	store := session.NewStore()
	store.StartGC(rootCtx)

	var historyStore *history.Store
	var recorder *history.Recorder
	if cfg.databaseURL != "" {
		var err error
		historyStore, err = history.Open(cfg.databaseURL)
		if err != nil {
			slog.Warn("history disabled", "error", err)
		} else {
			recorder = history.NewRecorder(historyStore)
			slog.Info("history enabled")
		}
	}

	hub := newSessionHub()
	tokens := ingest.NewTokenClient(cfg.streamTokenURL, cfg.streamAPIKey)

	manager := live.NewManager(live.Config{
		Store:    store,
		Analyzer: analyzer,
		Recorder: recorder,
		Debounce: cfg.analysisDebounce,
		NewListener: func(sink ingest.Sink) live.Listener {
			return ingest.New(ingest.Config{
				StreamURL: cfg.streamURL,
				Tokens:    tokens,
				Sink:      sink,
			})
		},
		OnUpdate: hub.broadcast,
	})

	if cfg.callPlatformURL != "" {
		calls := voicecall.NewClient(cfg.callPlatformURL, cfg.callPlatformKey)
		detector := voicecall.NewDetector(calls, store, recorder, cfg.callPollEvery)
		go detector.Run(rootCtx)
		slog.Info("call platform detection enabled", "url", cfg.callPlatformURL)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:    store,
		analyzer: analyzer,
		manager:  manager,
		tokens:   tokens,
		hub:      hub,
		recorder: recorder,
		history:  historyStore,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		manager.StopAll()
		rootCancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("cultureflow starting", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	recorder.Close()
	if historyStore != nil {
		historyStore.Close()
	}
	slog.Info("cultureflow stopped")
}
