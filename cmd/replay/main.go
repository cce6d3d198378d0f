// Package main replays a recorded trading day through the engine twice and
// verifies the two decision logs are identical.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/replay"
	"krx-scalp-lab/internal/storage"
	chstore "krx-scalp-lab/internal/storage/clickhouse"
	"krx-scalp-lab/internal/storage/memory"
	"krx-scalp-lab/internal/storage/migrations"
	"krx-scalp-lab/internal/universe"
	"krx-scalp-lab/internal/verification"
)

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	date := flag.String("date", "", "Trading date to replay, YYYYMMDD (default: today)")
	maxReport := flag.Int("max-divergences", 20, "Maximum divergences to print (0 = unlimited)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	params, err := engine.ParamsFrom(cfg)
	if err != nil {
		logger.Fatalf("Failed to map engine parameters: %v", err)
	}
	if !*useMemory && cfg.ClickhouseDSN == "" {
		logger.Fatal("CLICKHOUSE_DSN is required (use --use-memory for in-memory storage)")
	}

	if *date == "" {
		loc, err := time.LoadLocation("Asia/Seoul")
		if err != nil {
			logger.Fatalf("Failed to load KST location: %v", err)
		}
		*date = time.Now().In(loc).Format("20060102")
	}

	ctx := context.Background()

	var logStore storage.SnapshotLogStore = memory.NewSnapshotLogStore()
	if !*useMemory {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()
		logStore = chstore.NewSnapshotLogStore(chConn)
	}

	uni := universe.New(cfg.Watchlist, cfg.HedgeCode)
	runner := replay.NewRunner(params, uni.Snapshot(), logStore, cfg.StartingEquity, logger)

	logger.Printf("Replaying %s twice", *date)

	first, err := runner.Run(ctx, *date)
	if err != nil {
		logger.Fatalf("First replay failed: %v", err)
	}
	second, err := runner.Run(ctx, *date)
	if err != nil {
		logger.Fatalf("Second replay failed: %v", err)
	}

	divergences := verification.Compare(first, second, *maxReport)
	if len(divergences) == 0 {
		logger.Printf("Decision logs identical: %d intents, net %.0f, %d cycles",
			len(first.Intents), first.FinalDay.RealizedNetPnL, first.FinalDay.CycleCount)
		return
	}

	logger.Printf("Decision logs diverge in %d place(s):", len(divergences))
	for _, d := range divergences {
		logger.Printf("  %s", d.String())
	}
	os.Exit(1)
}
