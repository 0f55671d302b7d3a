package main

import (
	"log"
	"net/http"

	"researchgraph/internal/api"
	"researchgraph/internal/config"
	"researchgraph/internal/logging"

	"github.com/joho/godotenv"
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

	h := api.NewServer(cfg, logger)
	logger.Info("researchgraph api listening",
		zap.String("addr", cfg.APIAddr),
		zap.String("llm_providers", cfg.LLMProviders),
		zap.String("embed_providers", cfg.EmbedProviders))
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}
