package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"rental-pipeline/config"
	"rental-pipeline/llm"
	"rental-pipeline/models"
	"rental-pipeline/routing"
	"rental-pipeline/services"
	"rental-pipeline/storage"
	"rental-pipeline/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Rental Snapshot Pipeline starting ===")
	logger.Info("Config — source: %s | commute workers: %d (pacing %dms) | scoring: %d | keywords: %d | batch: %d",
		cfg.SnapshotSource, cfg.CommuteWorkers, cfg.CommutePacingMs,
		cfg.ScoringWorkers, cfg.KeywordWorkers, cfg.UpsertBatchSize)

	// pre-flight: missing credentials abort before any row is processed
	if cfg.RoutingAPIKey == "" {
		logger.Error("ROUTING_API_KEY is not set")
		os.Exit(1)
	}
	if cfg.LLMAPIKey == "" {
		logger.Error("LLM_API_KEY is not set")
		os.Exit(1)
	}

	audit, err := storage.NewAuditWriter(cfg.AuditDir)
	if err != nil {
		logger.Error("Failed to create audit writer: %v", err)
		os.Exit(1)
	}
	defer audit.Close()

	store, err := storage.NewPostgresStore(cfg.DSN(), audit, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	today := time.Now()
	current, previous, skipped, err := storage.LoadSnapshotPair(cfg.SnapshotDir, cfg.SnapshotSource, today)
	if err != nil {
		logger.Error("Failed to load today's snapshot: %v", err)
		os.Exit(1)
	}
	if len(current) == 0 {
		logger.Error("Today's snapshot contains no usable rows. Exiting.")
		os.Exit(1)
	}

	report := &models.RunReport{SnapshotRows: len(current), Skipped: skipped}
	logger.Info("Loaded %d listings for today, %d from yesterday (%d rows skipped)",
		len(current), len(previous), skipped)

	resolver := services.NewRegionResolver(store, logger)
	kept := resolver.Gate(current, report)

	stored, err := store.FetchDerived()
	if err != nil {
		logger.Warn("Store tier unavailable for carry-forward, recomputing instead: %v", err)
		stored = nil
	}
	cache := services.NewCarryForwardCache(previous, stored, logger)
	cache.Fill(kept)

	routingSvc, err := routing.New(cfg.RoutingAPIKey, cfg.RoutingBaseURL)
	if err != nil {
		logger.Error("Failed to create routing client: %v", err)
		os.Exit(1)
	}
	chat := llm.New(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	enricher := services.NewEnricher(cfg, routingSvc, chat, logger)
	enricher.Enrich(context.Background(), kept, report)

	engine := services.NewUpsertEngine(store, logger, cfg.UpsertBatchSize)
	if err := engine.Run(kept, report); err != nil {
		logger.Error("Upsert failed: %v", err)
		os.Exit(1)
	}

	outPath := storage.SnapshotPath(cfg.SnapshotDir, cfg.SnapshotSource, today)
	if err := storage.WriteSnapshot(outPath, kept); err != nil {
		logger.Error("Failed to write enriched snapshot: %v", err)
	} else {
		logger.Info("Enriched snapshot saved to %s", outPath)
	}

	fmt.Printf("\n  Done. Rows: %d | dropped: %d | new: %d | updated: %d | skipped: %d | errored: %d\n",
		report.SnapshotRows, report.DroppedInvalidRegion, report.New, report.Updated,
		report.Skipped, report.Errored)
	fmt.Printf("  Calls — commute: %d (fallbacks: %d, failures: %d) | scoring: %d | keywords: %d\n",
		report.CommuteCalls, report.CommuteFallbacks, report.CommuteFailures,
		report.ScoringCalls, report.KeywordCalls)
	fmt.Printf("  Commute rows — filled: %d | skipped: %d | replay log: %s\n\n",
		report.CommuteFilled, report.CommuteSkipped, audit.Path())
}
