// Package main backfills daily bars for the configured universe plus the
// index into bar storage, for backtesting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krx-scalp-lab/internal/broker"
	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
	chstore "krx-scalp-lab/internal/storage/clickhouse"
	"krx-scalp-lab/internal/storage/memory"
	"krx-scalp-lab/internal/storage/migrations"
	"krx-scalp-lab/internal/universe"
)

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	from := flag.String("from", "", "Start date, YYYYMMDD (default: 30 days ago)")
	to := flag.String("to", "", "End date, YYYYMMDD (default: yesterday)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of ClickHouse")
	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccountNo == "" {
		logger.Fatal("Brokerage credentials are required (API key, secret, account number)")
	}
	if !*useMemory && cfg.ClickhouseDSN == "" {
		logger.Fatal("CLICKHOUSE_DSN is required (use --use-memory for in-memory storage)")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping...", sig)
		cancel()
	}()

	var barStore storage.DailyBarStore = memory.NewDailyBarStore()
	if !*useMemory {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()
		barStore = chstore.NewDailyBarStore(chConn)
	}

	client, err := broker.NewClient(cfg.BaseURL, cfg.AppKey, cfg.AppSecret, cfg.AccountNo, cfg.Mode == config.ModePaper, logger)
	if err != nil {
		logger.Fatalf("Failed to create broker client: %v", err)
	}

	uni := universe.New(cfg.Watchlist, cfg.HedgeCode)
	codes := uni.Codes()
	if len(codes) == 0 {
		logger.Fatal("WATCHLIST is empty; nothing to ingest")
	}

	logger.Printf("Ingesting %d instruments plus the index for [%s, %s]", len(codes), *from, *to)

	if err := run(ctx, client, barStore, codes, *from, *to, logger); err != nil {
		if err == context.Canceled {
			logger.Println("Ingestion cancelled")
			return
		}
		logger.Fatalf("Ingestion failed: %v", err)
	}
	logger.Println("Ingestion complete")
}

func run(ctx context.Context, client *broker.Client, barStore storage.DailyBarStore, codes []string, from, to string, logger *log.Logger) error {
	indexBars, err := client.GetIndexBars(ctx, broker.IndexKOSPI, from, to)
	if err != nil {
		return fmt.Errorf("fetch index bars: %w", err)
	}
	if err := insert(ctx, barStore, indexBars); err != nil {
		return fmt.Errorf("store index bars: %w", err)
	}
	logger.Printf("Stored %d index bars", len(indexBars))

	for _, code := range codes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bars, err := client.GetDailyBars(ctx, code, from, to)
		if err != nil {
			return fmt.Errorf("fetch bars for %s: %w", code, err)
		}
		if err := insert(ctx, barStore, bars); err != nil {
			return fmt.Errorf("store bars for %s: %w", code, err)
		}
		logger.Printf("Stored %d bars for %s", len(bars), code)
	}
	return nil
}

// insert writes bars one by one so a re-run over an overlapping range skips
// already-stored days instead of failing the whole batch.
func insert(ctx context.Context, barStore storage.DailyBarStore, bars []*domain.DailyBar) error {
	for _, bar := range bars {
		err := barStore.InsertBulk(ctx, []*domain.DailyBar{bar})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return err
		}
	}
	return nil
}
