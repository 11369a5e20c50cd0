package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/app"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/config"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/feed"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/metrics"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/storage"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/telegram"
)

// One invocation = one pipeline run; the external cron decides cadence.
func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	if cfg.EnableMonitoring {
		go startMonitoringServer(cfg.MonitoringPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		metrics.Global.SetError(err.Error())
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sources, err := feed.LoadSources(cfg.FeedsConfigPath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher := feed.NewFetcher(sources, cfg.EntriesPerFeed, cfg.FetchTimeout)
	sender := telegram.New(cfg.TelegramToken, cfg.TelegramChatID)
	coordinator := app.New(cfg, fetcher, store, sender)

	result, err := coordinator.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("run result",
		"run_id", result.RunID,
		"delivered", result.Delivered,
		"skipped_reason", result.SkippedReason)

	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	if _, err := store.Purge(ctx, retention); err != nil {
		// Purge is housekeeping; the delivery already succeeded.
		logger.Warn("purge failed", "err", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return storage.NewSQLiteStore(ctx, cfg.StateDBPath)
}

func startMonitoringServer(port string) {
	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server error", "err", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.Snapshot()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.Snapshot())
}
