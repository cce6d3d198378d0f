// Package main runs the backtester over stored daily bars and writes the
// performance report.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"krx-scalp-lab/internal/backtest"
	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/perf"
	"krx-scalp-lab/internal/reporting"
	"krx-scalp-lab/internal/storage"
	chstore "krx-scalp-lab/internal/storage/clickhouse"
	"krx-scalp-lab/internal/storage/memory"
	"krx-scalp-lab/internal/storage/migrations"
	pgstore "krx-scalp-lab/internal/storage/postgres"
	"krx-scalp-lab/internal/universe"
)

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	from := flag.String("from", "", "Start date, YYYYMMDD (default: 30 days ago)")
	to := flag.String("to", "", "End date, YYYYMMDD (default: yesterday)")
	outputDir := flag.String("output-dir", "output", "Report output directory")
	useMemory := flag.Bool("use-memory", false, "Use in-memory stores for trades and summaries")
	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	params, err := engine.ParamsFrom(cfg)
	if err != nil {
		logger.Fatalf("Failed to map engine parameters: %v", err)
	}
	if cfg.ClickhouseDSN == "" {
		logger.Fatal("CLICKHOUSE_DSN is required; run the ingester first")
	}
	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required (use --use-memory for in-memory trade storage)")
	}

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		logger.Fatalf("Failed to load KST location: %v", err)
	}
	now := time.Now().In(loc)
	if *from == "" {
		*from = now.AddDate(0, 0, -30).Format("20060102")
	}
	if *to == "" {
		*to = now.AddDate(0, 0, -1).Format("20060102")
	}

	ctx := context.Background()

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Fatalf("Failed to prepare clickhouse: %v", err)
	}
	defer chConn.Close()
	barStore := chstore.NewDailyBarStore(chConn)

	var tradeStore storage.TradeRecordStore = memory.NewTradeRecordStore()
	var summaryStore storage.DaySummaryStore = memory.NewDaySummaryStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to apply postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeRecordStore(pool)
		summaryStore = pgstore.NewDaySummaryStore(pool)
	}

	uni := universe.New(cfg.Watchlist, cfg.HedgeCode)
	runner, err := backtest.NewRunner(params, uni.Snapshot(), barStore, tradeStore, summaryStore,
		cfg.StartingEquity, cfg.FillModel, logger)
	if err != nil {
		logger.Fatalf("Failed to create backtest runner: %v", err)
	}

	logger.Printf("Backtesting [%s, %s] with fill model %s", *from, *to, cfg.FillModel)
	start := time.Now()

	summaries, err := runner.Run(ctx, *from, *to)
	if err != nil {
		logger.Fatalf("Backtest failed: %v", err)
	}

	trades, err := tradeStore.GetByDateRange(ctx, *from, *to)
	if err != nil {
		logger.Fatalf("Failed to load trades for reporting: %v", err)
	}
	stats := perf.Compute(trades)

	if err := reporting.Write(*outputDir, summaries, trades); err != nil {
		logger.Fatalf("Failed to write report: %v", err)
	}

	logger.Printf("Backtest complete in %v: %d days, %d trades, win rate %.1f%%, total net %.0f; report in %s/",
		time.Since(start), len(summaries), stats.Trades, stats.WinRate*100, stats.TotalNet, *outputDir)
}
