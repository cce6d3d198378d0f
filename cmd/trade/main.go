// Package main runs the live trading loop: poll quotes during the KST
// session, drive one engine cycle per tick, record snapshots for replay,
// and persist trades and the day summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krx-scalp-lab/internal/alert"
	"krx-scalp-lab/internal/broker"
	"krx-scalp-lab/internal/broker/stub"
	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/execution"
	"krx-scalp-lab/internal/marketdata"
	"krx-scalp-lab/internal/observability"
	"krx-scalp-lab/internal/storage"
	chstore "krx-scalp-lab/internal/storage/clickhouse"
	"krx-scalp-lab/internal/storage/memory"
	"krx-scalp-lab/internal/storage/migrations"
	pgstore "krx-scalp-lab/internal/storage/postgres"
	"krx-scalp-lab/internal/universe"
)

// Trader owns the live session loop and its day state.
type Trader struct {
	cfg      *config.Config
	params   engine.Params
	client   *broker.Client
	uni      *universe.Universe
	poller   *marketdata.Poller
	recorder *marketdata.Recorder
	metrics  *observability.Metrics
	emitter  *alert.Emitter
	logger   *log.Logger

	tradeStore   storage.TradeRecordStore
	summaryStore storage.DaySummaryStore
	orderStore   storage.OrderRecordStore

	loc    *time.Location
	dryRun bool

	// Day state, owned by the loop goroutine.
	driver    *engine.Driver
	day       domain.DayAccount
	dayTrades []*domain.TradeRecord
	dayOpen   bool
}

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	useStream := flag.Bool("stream", false, "Feed quotes from the websocket stream instead of REST polling")
	dryRun := flag.Bool("dry-run", false, "Fill orders in-process instead of submitting to the brokerage")
	flag.Parse()

	logger := log.New(os.Stderr, "[trade] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	params, err := engine.ParamsFrom(cfg)
	if err != nil {
		logger.Fatalf("Failed to map engine parameters: %v", err)
	}
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccountNo == "" {
		logger.Fatal("Brokerage credentials are required (API key, secret, account number)")
	}
	if !*useMemory && (cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "") {
		logger.Fatal("POSTGRES_DSN and CLICKHOUSE_DSN are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := broker.NewClient(cfg.BaseURL, cfg.AppKey, cfg.AppSecret, cfg.AccountNo, cfg.Mode == config.ModePaper, logger)
	if err != nil {
		logger.Fatalf("Failed to create broker client: %v", err)
	}

	tradeStore, summaryStore, orderStore, snapLogStore, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		logger.Fatalf("Failed to load KST location: %v", err)
	}

	uni := universe.New(cfg.Watchlist, cfg.HedgeCode)
	go uni.RunPoolRefresher(ctx, client, cfg.PoolTopN, time.Duration(cfg.PoolRefreshSec)*time.Second, logger)

	tracker := marketdata.NewIndexTracker()
	if err := tracker.Seed(ctx, client, broker.IndexKOSPI, time.Now().In(loc)); err != nil {
		// Without the MA the regime filter falls back to breadth.
		logger.Printf("Index MA seeding failed, using breadth fallback: %v", err)
	}

	var quotes marketdata.QuoteSource = client
	if *useStream {
		approvalKey, err := client.ApprovalKey(ctx)
		if err != nil {
			logger.Fatalf("Failed to issue websocket approval key: %v", err)
		}
		streamer := marketdata.NewStreamer(cfg.WSURL, approvalKey, uni.Codes(), nil, logger)
		if err := streamer.Start(ctx); err != nil {
			logger.Fatalf("Failed to start quote stream: %v", err)
		}
		defer streamer.Close()
		quotes = streamer
		logger.Printf("Quote stream connected to %s", cfg.WSURL)
	}

	poller, err := marketdata.NewPoller(quotes, client, tracker, broker.IndexKOSPI, logger)
	if err != nil {
		logger.Fatalf("Failed to create poller: %v", err)
	}

	sinks := []alert.Sink{alert.NewLogSink(logger)}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.WebhookURL))
	}

	trader := &Trader{
		cfg:          cfg,
		params:       params,
		client:       client,
		uni:          uni,
		poller:       poller,
		recorder:     marketdata.NewRecorder(snapLogStore),
		metrics:      observability.NewMetrics(""),
		emitter:      alert.NewEmitter(cfg.AlertDedupSec, logger, sinks...),
		logger:       logger,
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
		orderStore:   orderStore,
		loc:          loc,
		dryRun:       *dryRun,
	}
	if *dryRun {
		logger.Println("Dry run: orders fill in-process and never reach the brokerage")
	}

	if cfg.MetricsAddr != "" {
		go trader.startMetricsServer(cfg.MetricsAddr)
	}

	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Printf("Starting %s-mode trading: universe=%d hedge=%s tick=%s session=%s-%s",
		cfg.Mode, len(uni.Codes()), cfg.HedgeCode, cfg.TickInterval, cfg.SessionOpen, cfg.SessionClose)

	err = trader.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Trading loop error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores wires the trade, summary, order and snapshot-log stores.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (
	storage.TradeRecordStore, storage.DaySummaryStore, storage.OrderRecordStore, storage.SnapshotLogStore, func(), error,
) {
	if useMemory {
		return memory.NewTradeRecordStore(), memory.NewDaySummaryStore(),
			memory.NewOrderRecordStore(), memory.NewSnapshotLogStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("apply clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewTradeRecordStore(pool), pgstore.NewDaySummaryStore(pool),
		pgstore.NewOrderRecordStore(pool), chstore.NewSnapshotLogStore(chConn), cleanup, nil
}

// Run drives the session ticker until the context is cancelled. A day opens
// on the first in-session tick and finalizes at session close (or shutdown).
func (t *Trader) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if t.dayOpen {
				t.finalizeDay(context.Background())
			}
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick evaluates one scheduler tick against the session clock.
func (t *Trader) tick(ctx context.Context) {
	now := time.Now().In(t.loc)

	if !t.inSession(now) {
		if t.dayOpen {
			t.finalizeDay(ctx)
		}
		return
	}

	today := now.Format("20060102")
	if t.dayOpen && t.day.TradeDate != today {
		t.finalizeDay(ctx)
	}
	if !t.dayOpen {
		if err := t.openDay(today); err != nil {
			t.logger.Printf("Failed to open day %s: %v", today, err)
			return
		}
	}

	// Universe changes apply between cycles, never within one.
	t.driver.SetUniverse(t.uni.Snapshot())

	batch, err := t.poller.Collect(ctx, t.uni.Codes())
	if err != nil {
		t.logger.Printf("Snapshot collection failed, skipping tick: %v", err)
		return
	}
	if err := t.recorder.Record(ctx, batch); err != nil {
		t.logger.Printf("Snapshot recording failed: %v", err)
	}

	day, result, err := t.driver.Cycle(ctx, t.day, batch)
	if err != nil {
		t.logger.Printf("Cycle failed: %v", err)
		return
	}
	t.day = day

	t.persistCycle(ctx, result)
}

// openDay constructs the driver and account for a new trading day.
func (t *Trader) openDay(tradeDate string) error {
	var backend execution.Backend = broker.NewBackend(t.client)
	if t.dryRun {
		backend = stub.New()
	}
	orch := execution.New(backend, t.cfg.MaxOrderNotional, t.logger)
	driver, err := engine.NewDriver(t.params, t.uni.Snapshot(), orch, t.emitter, t.metrics, t.logger)
	if err != nil {
		return err
	}

	t.driver = driver
	t.day = domain.DayAccount{TradeDate: tradeDate, StartingEquity: t.cfg.StartingEquity}
	t.dayTrades = nil
	t.dayOpen = true
	t.logger.Printf("Day %s opened with equity %.0f", tradeDate, t.cfg.StartingEquity)
	return nil
}

// persistCycle writes the cycle's order records and closed trades.
func (t *Trader) persistCycle(ctx context.Context, result engine.CycleResult) {
	for i, res := range result.Results {
		if i >= len(result.Intents) {
			break
		}
		intent := result.Intents[i]
		record := &domain.OrderRecord{
			Key:         intent.Key,
			TradeDate:   intent.TradeDate,
			CycleSeq:    intent.CycleSeq,
			Code:        intent.Code,
			Side:        string(intent.Side),
			Quantity:    intent.Quantity,
			Reason:      string(intent.Reason),
			Outcome:     string(res.Outcome),
			FilledQty:   res.FilledQty,
			FillPrice:   res.FillPrice,
			BrokerOrder: res.BrokerOrder,
			Message:     res.Message,
			TimestampMs: res.TimestampMs,
		}
		if err := t.orderStore.Insert(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			t.logger.Printf("Failed to persist order record %s: %v", intent.Key, err)
		}
	}

	if len(result.Trades) > 0 {
		if err := t.tradeStore.InsertBulk(ctx, result.Trades); err != nil {
			t.logger.Printf("Failed to persist trades: %v", err)
		}
		t.dayTrades = append(t.dayTrades, result.Trades...)
	}
}

// finalizeDay writes the day summary and clears the day state.
func (t *Trader) finalizeDay(ctx context.Context) {
	summary := engine.Summarize(&t.day, t.dayTrades)
	if err := t.summaryStore.Insert(ctx, summary); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		t.logger.Printf("Failed to persist day summary for %s: %v", t.day.TradeDate, err)
	}

	t.logger.Printf("Day %s finalized: trades=%d net=%.0f halt=%q cycles=%d",
		t.day.TradeDate, summary.TradesClosed, summary.RealizedNetPnL,
		summary.HaltCondition, summary.CycleCount)

	t.driver = nil
	t.dayTrades = nil
	t.dayOpen = false
}

// inSession reports whether now falls inside the configured trading session.
func (t *Trader) inSession(now time.Time) bool {
	openH, openM, _ := config.ParseClock(t.cfg.SessionOpen)
	closeH, closeM, _ := config.ParseClock(t.cfg.SessionClose)

	minutes := now.Hour()*60 + now.Minute()
	return minutes >= openH*60+openM && minutes < closeH*60+closeM
}

func (t *Trader) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	t.logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		t.logger.Printf("Metrics server error: %v", err)
	}
}
