package main

import (
	"context"
	"log"
	"time"

	"researchgraph/internal/activities"
	"researchgraph/internal/arxiv"
	"researchgraph/internal/config"
	"researchgraph/internal/logging"
	"researchgraph/internal/providers"
	"researchgraph/internal/storage"
	"researchgraph/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal dial failed", zap.Error(err))
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		logger.Fatal("provider setup failed", zap.Error(err))
	}
	a := activities.NewActivities(cfg, db, arxiv.NewClient(cfg.ArxivAPIBase), pm, logger)
	activities.Register(w, a)

	logger.Info("researchgraph worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
