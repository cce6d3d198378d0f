// Package engine drives one full trading cycle: snapshot validation, regime
// classification, signal ranking, risk evaluation, order submission and alert
// emission. The driver is mode-agnostic: live, backtest and replay runs feed
// it the same snapshot batches and receive identical decisions.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"krx-scalp-lab/internal/alert"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/execution"
	"krx-scalp-lab/internal/observability"
	"krx-scalp-lab/internal/regime"
	"krx-scalp-lab/internal/risk"
	"krx-scalp-lab/internal/signal"
)

// CycleResult carries everything one cycle decided. Callers persist what
// they need; the driver keeps no history.
type CycleResult struct {
	CycleSeq       int
	TimestampMs    int64
	Regime         regime.Regime
	Verdict        domain.Verdict
	Scores         []*domain.Score
	Entries        []risk.EntryDecision
	Intents        []*domain.OrderIntent
	Results        []*domain.OrderResult
	Trades         []*domain.TradeRecord
	Alerts         []domain.AlertEvent
	SnapshotErrors int
}

// Params configure a Driver.
type Params struct {
	Signal   signal.Params
	Regime   regime.Params
	Governor risk.GovernorParams
	Book     risk.BookParams

	HedgeCode        string
	CutoffHour       int // KST hour of the EOD liquidation cutoff
	CutoffMinute     int
	StuckOrderCycles int // 0 disables the stuck-order alert
}

// Driver owns the position book and the day-cycle critical section. One
// cycle fully completes before the next begins; the DayAccount is an
// explicit value passed in and returned updated.
type Driver struct {
	params   Params
	universe map[string]*domain.Instrument
	governor *risk.Governor
	book     *risk.Book
	orch     *execution.Orchestrator
	emitter  *alert.Emitter
	metrics  *observability.Metrics // nil disables
	logger   *log.Logger
	loc      *time.Location
}

// NewDriver wires a driver over the given universe, orchestrator and alert
// emitter. metrics may be nil.
func NewDriver(
	params Params,
	universe map[string]*domain.Instrument,
	orch *execution.Orchestrator,
	emitter *alert.Emitter,
	metrics *observability.Metrics,
	logger *log.Logger,
) (*Driver, error) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return nil, fmt.Errorf("failed to load KST location: %w", err)
	}
	return &Driver{
		params:   params,
		universe: universe,
		governor: risk.NewGovernor(params.Governor),
		book:     risk.NewBook(params.Book),
		orch:     orch,
		emitter:  emitter,
		metrics:  metrics,
		logger:   logger,
		loc:      loc,
	}, nil
}

// Book exposes the position book for callers that need position state
// between cycles (status reporting, day finalization).
func (d *Driver) Book() *risk.Book {
	return d.book
}

// SetUniverse swaps the instrument set for subsequent cycles. Universe
// changes apply between cycles, never within one.
func (d *Driver) SetUniverse(universe map[string]*domain.Instrument) {
	d.universe = universe
}

// Cycle runs one full evaluation over the snapshot batch and returns the
// updated day account plus the cycle's decisions. Decisions depend only on
// the batch contents and prior state, never on the mode or wall clock.
func (d *Driver) Cycle(ctx context.Context, day domain.DayAccount, batch *domain.SnapshotBatch) (domain.DayAccount, CycleResult, error) {
	started := time.Now()

	if batch == nil {
		return day, CycleResult{}, fmt.Errorf("nil snapshot batch")
	}
	if batch.TradeDate != day.TradeDate {
		return day, CycleResult{}, fmt.Errorf("batch date %s does not match day %s", batch.TradeDate, day.TradeDate)
	}

	day.CycleCount++
	result := CycleResult{
		CycleSeq:    day.CycleCount,
		TimestampMs: batch.TimestampMs,
	}

	// Validate: data errors skip the instrument for the cycle.
	valid := make([]*domain.MarketSnapshot, 0, len(batch.Snapshots))
	last := make(map[string]float64, len(batch.Snapshots))
	for _, s := range batch.Snapshots {
		if !s.Valid() {
			result.SnapshotErrors++
			continue
		}
		valid = append(valid, s)
		last[s.Code] = s.Last
	}

	result.Regime = regime.Classify(batch.Index, valid, d.params.Regime)
	result.Scores = signal.Rank(valid, d.universe, d.params.Signal)

	day.UnrealizedNetPnL = d.book.MarkToMarket(last)

	haltedBefore := day.Halted()
	result.Verdict = d.governor.Evaluate(&day)

	eod := d.pastCutoff(batch.TimestampMs)
	if eod && !day.EODLiquidated {
		day.EODLiquidated = true
		day.EntryLock = true
		d.emitter.Queue(domain.AlertEvent{
			Kind:        domain.AlertEODLiquidation,
			TimestampMs: batch.TimestampMs,
			Payload:     fmt.Sprintf("cutoff reached, liquidating %d open positions", d.openPositionCount()),
		})
	}
	if !haltedBefore {
		d.queueHaltAlert(result.Verdict, &day, batch.TimestampMs)
	}

	// Governor halts force every position out under the day-halt reason; EOD
	// is the weakest reason and only tags positions nothing else released.
	dayHalt := day.TargetReached || day.HardStopTripped || day.SoftCutTripped
	d.book.EvaluateExits(batch.TimestampMs, last, result.Regime, dayHalt, eod)
	result.Entries = d.book.EvaluateEntries(batch.TimestampMs, result.Scores, d.universe, last, result.Regime, &day, d.params.HedgeCode)

	result.Intents = d.book.Intents(day.TradeDate, day.CycleCount, last)

	d.orch.BeginCycle(batch.TimestampMs)
	for _, intent := range result.Intents {
		res, err := d.orch.Submit(ctx, intent)
		if err != nil {
			return day, result, fmt.Errorf("failed to submit %s %s: %w", intent.Side, intent.Code, err)
		}
		result.Results = append(result.Results, res)

		trade, sellFailed, err := d.book.ApplyResult(&day, res, batch.TimestampMs)
		if err != nil {
			return day, result, fmt.Errorf("failed to apply order result: %w", err)
		}
		if trade != nil {
			result.Trades = append(result.Trades, trade)
		}
		if sellFailed {
			d.emitter.Queue(domain.AlertEvent{
				Kind:        domain.AlertSellFailed,
				TimestampMs: batch.TimestampMs,
				Payload:     fmt.Sprintf("sell for %s rejected, position kept: %s", res.Code, res.Message),
			})
		}
	}

	for _, code := range d.book.StuckPositions(d.params.StuckOrderCycles) {
		d.emitter.Queue(domain.AlertEvent{
			Kind:        domain.AlertOrderStuck,
			TimestampMs: batch.TimestampMs,
			Payload:     fmt.Sprintf("order for %s unconfirmed for %d+ cycles", code, d.params.StuckOrderCycles),
		})
	}

	result.Alerts = d.emitter.Flush(ctx)

	d.record(&day, &result, started)
	return day, result, nil
}

// queueHaltAlert raises the alert for a halt verdict on the cycle it first
// fires.
func (d *Driver) queueHaltAlert(verdict domain.Verdict, day *domain.DayAccount, nowMs int64) {
	var kind domain.AlertKind
	switch verdict {
	case domain.VerdictTargetReached:
		kind = domain.AlertTargetReached
	case domain.VerdictHardStop:
		kind = domain.AlertHardStop
	case domain.VerdictSoftCut:
		kind = domain.AlertSoftCut
	default:
		return
	}
	d.emitter.Queue(domain.AlertEvent{
		Kind:        kind,
		TimestampMs: nowMs,
		Payload: fmt.Sprintf("day halt %s: realized net %.0f KRW (%.2f%%)",
			verdict, day.RealizedNetPnL, day.RealizedRatio()*100),
	})
}

// pastCutoff reports whether the batch timestamp, in KST, is at or past the
// configured liquidation cutoff.
func (d *Driver) pastCutoff(tsMs int64) bool {
	t := time.UnixMilli(tsMs).In(d.loc)
	return t.Hour()*60+t.Minute() >= d.params.CutoffHour*60+d.params.CutoffMinute
}

func (d *Driver) openPositionCount() int {
	long, hedge := d.book.OpenCount()
	return long + hedge
}

func (d *Driver) record(day *domain.DayAccount, result *CycleResult, started time.Time) {
	if d.logger != nil && (len(result.Intents) > 0 || result.Verdict != domain.VerdictContinue) {
		d.logger.Printf("cycle %d regime=%s verdict=%s intents=%d trades=%d realized=%.0f",
			result.CycleSeq, result.Regime, result.Verdict, len(result.Intents), len(result.Trades), day.RealizedNetPnL)
	}
	if d.metrics == nil {
		return
	}
	d.metrics.CyclesTotal.Inc()
	d.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	d.metrics.SnapshotErrors.Add(float64(result.SnapshotErrors))
	for _, res := range result.Results {
		d.metrics.OrdersSubmitted.WithLabelValues(string(res.Side), string(res.Outcome)).Inc()
	}
	d.metrics.OrderRetries.Add(float64(d.orch.Retries()))
	for _, event := range result.Alerts {
		d.metrics.AlertsEmitted.WithLabelValues(string(event.Kind)).Inc()
	}
	d.metrics.OpenPositions.Set(float64(d.openPositionCount()))
	d.metrics.DayRealizedPnL.Set(day.RealizedNetPnL)
}

// Summarize builds the end-of-day summary from the finalized day account
// and its closed trades.
func Summarize(day *domain.DayAccount, trades []*domain.TradeRecord) *domain.DaySummary {
	wins := 0
	for _, tr := range trades {
		if tr.Win() {
			wins++
		}
	}
	return &domain.DaySummary{
		TradeDate:        day.TradeDate,
		StartingEquity:   day.StartingEquity,
		RealizedGrossPnL: day.RealizedGrossPnL,
		RealizedNetPnL:   day.RealizedNetPnL,
		FeesPaid:         day.FeesPaid,
		HaltCondition:    day.HaltCondition(),
		TradesClosed:     day.TradesClosed,
		WinCount:         wins,
		PositionsOpened:  day.PositionsOpened,
		CycleCount:       day.CycleCount,
	}
}
