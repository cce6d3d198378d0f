// Package main renders the trading report from stored day summaries and
// trade records.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/perf"
	"krx-scalp-lab/internal/reporting"
	"krx-scalp-lab/internal/storage/migrations"
	pgstore "krx-scalp-lab/internal/storage/postgres"
)

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	from := flag.String("from", "", "Start date, YYYYMMDD (default: 30 days ago)")
	to := flag.String("to", "", "End date, YYYYMMDD (default: today)")
	outputDir := flag.String("output-dir", "output", "Report output directory")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
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
		*to = now.Format("20060102")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to apply postgres migrations: %v", err)
	}

	summaries, err := pgstore.NewDaySummaryStore(pool).GetByDateRange(ctx, *from, *to)
	if err != nil {
		logger.Fatalf("Failed to load day summaries: %v", err)
	}
	trades, err := pgstore.NewTradeRecordStore(pool).GetByDateRange(ctx, *from, *to)
	if err != nil {
		logger.Fatalf("Failed to load trades: %v", err)
	}
	if len(summaries) == 0 && len(trades) == 0 {
		logger.Fatalf("No data in [%s, %s]", *from, *to)
	}

	if err := reporting.Write(*outputDir, summaries, trades); err != nil {
		logger.Fatalf("Failed to write report: %v", err)
	}

	stats := perf.Compute(trades)
	logger.Printf("Report for [%s, %s] written to %s/: %d days, %d trades, total net %.0f",
		*from, *to, *outputDir, len(summaries), stats.Trades, stats.TotalNet)
}
