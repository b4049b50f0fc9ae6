package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibetravels/internal/app"
	"vibetravels/internal/config"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/postgres"
	"vibetravels/internal/service/generation"
	"vibetravels/internal/service/limiter"
	"vibetravels/internal/service/llm"
	"vibetravels/internal/service/reaper"
	"vibetravels/internal/worker"
)

func runReaper(ctx context.Context, reaperService *reaper.ReaperService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := reaperService.Sweep(false)
			if err != nil {
				logger.Log.WithError(err).Error("Stuck generation sweep failed")
				continue
			}
			if result.Reaped > 0 {
				logger.Log.WithField("reaped", result.Reaped).Info("Failed stuck generations")
			}
			if _, err := reaperService.CompletePastPlans(); err != nil {
				logger.Log.WithError(err).Error("Failed to complete past plans")
			}
		}
	}
}

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	cfg := app.NewConfig(database, appConfig)

	aiClient, err := llm.NewAIClient(&appConfig.LLM, appConfig.Models)
	if err != nil {
		logger.Log.Fatalf("Failed to create AI client: %v", err)
	}

	limiterService := limiter.NewLimiterService(database, appConfig.Limits.MonthlyGenerations)
	generationService := generation.NewGenerationService(cfg, aiClient, limiterService)
	reaperService := reaper.NewReaperService(database, appConfig.Worker.JobTimeout, appConfig.Worker.ReaperBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Log.Info("Shutdown signal received")
		cancel()
	}()

	go runReaper(ctx, reaperService, appConfig.Worker.ReaperInterval)

	pool := worker.NewPool(database, generationService, appConfig.Worker)

	logger.Log.WithField("workers", appConfig.Worker.Count).Info("Worker pool starting")

	if err := pool.Run(ctx); err != nil && err != context.Canceled {
		logger.Log.Fatalf("Worker pool stopped: %v", err)
	}

	logger.Log.Info("Worker pool stopped")
}
