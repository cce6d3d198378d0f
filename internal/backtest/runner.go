package backtest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"krx-scalp-lab/internal/alert"
	"krx-scalp-lab/internal/bars"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/execution"
	"krx-scalp-lab/internal/storage"
)

// Runner iterates a date range and drives the engine over synthesized tick
// sequences. Each day runs on a fresh DayAccount and position book; nothing
// crosses days except storage contents.
type Runner struct {
	params   engine.Params
	universe map[string]*domain.Instrument

	barStore     storage.DailyBarStore
	tradeStore   storage.TradeRecordStore
	summaryStore storage.DaySummaryStore

	startingEquity float64
	fillModel      string
	logger         *log.Logger
	loc            *time.Location
}

// NewRunner creates a backtest runner.
func NewRunner(
	params engine.Params,
	universe map[string]*domain.Instrument,
	barStore storage.DailyBarStore,
	tradeStore storage.TradeRecordStore,
	summaryStore storage.DaySummaryStore,
	startingEquity float64,
	fillModel string,
	logger *log.Logger,
) (*Runner, error) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return nil, fmt.Errorf("failed to load KST location: %w", err)
	}
	if fillModel != FillImmediate && fillModel != FillNextTick {
		return nil, fmt.Errorf("unknown fill model %q", fillModel)
	}
	return &Runner{
		params:         params,
		universe:       universe,
		barStore:       barStore,
		tradeStore:     tradeStore,
		summaryStore:   summaryStore,
		startingEquity: startingEquity,
		fillModel:      fillModel,
		logger:         logger,
		loc:            loc,
	}, nil
}

// Run backtests every stored trading date in [from, to] and returns the day
// summaries in date order.
func (r *Runner) Run(ctx context.Context, from, to string) ([]*domain.DaySummary, error) {
	dates, err := r.barStore.GetDates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no daily bars in [%s, %s]", from, to)
	}

	summaries := make([]*domain.DaySummary, 0, len(dates))
	for _, date := range dates {
		summary, err := r.runDay(ctx, date)
		if err != nil {
			return summaries, fmt.Errorf("backtest failed on %s: %w", date, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// runDay synthesizes the day's ticks and drives the engine through them.
func (r *Runner) runDay(ctx context.Context, date string) (*domain.DaySummary, error) {
	dayBars, err := r.barStore.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars: %w", err)
	}

	var indexTicks []bars.Tick
	instTicks := make(map[string][]bars.Tick)
	for _, bar := range dayBars {
		ticks, err := bars.Synthesize(bar, r.loc)
		if err != nil {
			if r.logger != nil {
				r.logger.Printf("skipping bar %s %s: %v", bar.Code, bar.TradeDate, err)
			}
			continue
		}
		if bar.Code == domain.IndexRecordCode {
			indexTicks = ticks
			continue
		}
		if _, ok := r.universe[bar.Code]; ok {
			instTicks[bar.Code] = ticks
		}
	}
	if len(instTicks) == 0 {
		return nil, fmt.Errorf("no universe bars for %s", date)
	}

	indexMA, err := r.indexMA(ctx, date)
	if err != nil {
		return nil, err
	}

	backend, err := NewSimBackend(r.fillModel)
	if err != nil {
		return nil, err
	}
	orch := execution.New(backend, 0, nil)
	emitter := alert.NewEmitter(0, r.logger, alertSinks(r.logger)...)
	driver, err := engine.NewDriver(r.params, r.universe, orch, emitter, nil, r.logger)
	if err != nil {
		return nil, err
	}

	day := domain.DayAccount{TradeDate: date, StartingEquity: r.startingEquity}
	var trades []*domain.TradeRecord

	for i := 0; i < bars.TicksPerDay; i++ {
		batch := r.assembleBatch(date, i, instTicks, indexTicks, indexMA)
		backend.SetPrices(lastPrices(batch))

		var result engine.CycleResult
		day, result, err = driver.Cycle(ctx, day, batch)
		if err != nil {
			return nil, err
		}
		trades = append(trades, result.Trades...)
	}

	if len(trades) > 0 {
		if err := r.tradeStore.InsertBulk(ctx, trades); err != nil {
			return nil, fmt.Errorf("failed to persist trades: %w", err)
		}
	}

	summary := engine.Summarize(&day, trades)
	if err := r.summaryStore.Insert(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to persist summary: %w", err)
	}

	if r.logger != nil {
		r.logger.Printf("day %s: trades=%d net=%.0f halt=%q",
			date, summary.TradesClosed, summary.RealizedNetPnL, summary.HaltCondition)
	}
	return summary, nil
}

// assembleBatch builds tick i's snapshot batch from the synthesized
// sequences.
func (r *Runner) assembleBatch(date string, i int, instTicks map[string][]bars.Tick, indexTicks []bars.Tick, indexMA float64) *domain.SnapshotBatch {
	batch := &domain.SnapshotBatch{TradeDate: date}

	for _, ticks := range instTicks {
		tick := ticks[i]
		snap := tick.Snapshot
		batch.Snapshots = append(batch.Snapshots, &snap)
		batch.TimestampMs = tick.TimestampMs
	}
	// Map iteration order must not leak into the decision sequence.
	sort.Slice(batch.Snapshots, func(a, b int) bool {
		return batch.Snapshots[a].Code < batch.Snapshots[b].Code
	})

	if len(indexTicks) > i {
		tick := indexTicks[i]
		batch.Index = &domain.IndexSnapshot{
			Level:       tick.Snapshot.Last,
			MA20:        indexMA,
			TimestampMs: tick.TimestampMs,
		}
		batch.TimestampMs = tick.TimestampMs
	}
	return batch
}

// indexMA returns the 20-session moving average of index closes ending the
// session before date, or 0 when fewer than 20 sessions are stored. The
// regime filter falls back to market breadth when it is 0.
func (r *Runner) indexMA(ctx context.Context, date string) (float64, error) {
	history, err := r.barStore.GetByCode(ctx, domain.IndexRecordCode, "00000000", date)
	if err != nil {
		return 0, fmt.Errorf("failed to load index history: %w", err)
	}

	var closes []float64
	for _, bar := range history {
		if bar.TradeDate < date {
			closes = append(closes, bar.Close)
		}
	}
	if len(closes) < 20 {
		return 0, nil
	}

	var sum float64
	for _, c := range closes[len(closes)-20:] {
		sum += c
	}
	return sum / 20, nil
}

func lastPrices(batch *domain.SnapshotBatch) map[string]float64 {
	last := make(map[string]float64, len(batch.Snapshots))
	for _, s := range batch.Snapshots {
		if s.Valid() {
			last[s.Code] = s.Last
		}
	}
	return last
}

func alertSinks(logger *log.Logger) []alert.Sink {
	if logger == nil {
		return nil
	}
	return []alert.Sink{alert.NewLogSink(logger)}
}
