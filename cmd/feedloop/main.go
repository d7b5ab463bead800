package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"feedloop/internal/config"
	"feedloop/internal/db"
	"feedloop/internal/feedsync"
	"feedloop/internal/fetch"
	"feedloop/internal/repository"
	"feedloop/internal/scheduler"
	"feedloop/pkg/logger"
	"feedloop/pkg/sanitizer"
	"feedloop/pkg/snowflake"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.ParseLevel(cfg.LogLevel))

	if err := snowflake.Init(cfg.NodeID); err != nil {
		logger.Error("snowflake init failed", "module", "main", "error", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("database open failed", "module", "main", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	store := repository.NewStore(database)
	settings := repository.NewSettingsRepository(database)

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	fetcher := fetch.NewClient(httpClient)
	icons := fetch.NewIconFetcher(httpClient, cfg.IconDir)

	pipeline := feedsync.NewPipeline()
	pipeline.AddContentPrefilter(sanitizer.NewPolicy())

	orchestrator := feedsync.NewOrchestrator(store, fetcher, settings, pipeline,
		feedsync.WithIconFetcher(icons),
		feedsync.WithFetchCache(cfg.FetchCacheFor),
	)

	sched := scheduler.New(store.Feeds(), orchestrator, cfg.TickInterval, cfg.MaxConcurrent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	logger.Info("feedloop started", "module", "main", "db", cfg.DBPath, "tick", cfg.TickInterval.String())

	<-ctx.Done()
	logger.Info("shutting down", "module", "main")
	sched.Stop()
}
