package engine

import (
	"context"
	"reflect"
	"testing"
	"time"

	"krx-scalp-lab/internal/alert"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/execution"
	"krx-scalp-lab/internal/regime"
	"krx-scalp-lab/internal/risk"
	"krx-scalp-lab/internal/signal"
)

// fillBackend fills every order at the intent's reference price.
type fillBackend struct {
	rejectSells bool
	submits     []*domain.OrderIntent
}

func (b *fillBackend) Submit(_ context.Context, intent *domain.OrderIntent) (execution.BrokerResponse, error) {
	b.submits = append(b.submits, intent)
	if b.rejectSells && intent.Side == domain.SideSell {
		return execution.BrokerResponse{State: execution.StateRejected, Message: "rejected"}, nil
	}
	return execution.BrokerResponse{
		State:     execution.StateFilled,
		FilledQty: intent.Quantity,
		FillPrice: intent.Price,
		OrderNo:   "T" + intent.Key[:8],
	}, nil
}

func (b *fillBackend) Inquire(_ context.Context, _ string) (execution.BrokerResponse, error) {
	return execution.BrokerResponse{State: execution.StatePending}, nil
}

func testUniverse() map[string]*domain.Instrument {
	return map[string]*domain.Instrument{
		"005930": {Code: "005930", Name: "Samsung Electronics", Tradable: true},
		"000660": {Code: "000660", Name: "SK hynix", Tradable: true},
		"114800": {Code: "114800", Name: "KODEX Inverse", Tradable: true, Hedge: true},
	}
}

func testParams() Params {
	book := risk.DefaultBookParams()
	book.CooldownSec = 0
	return Params{
		Signal:           signal.DefaultParams(),
		Regime:           regime.DefaultParams(),
		Governor:         risk.DefaultGovernorParams(),
		Book:             book,
		HedgeCode:        "114800",
		CutoffHour:       15,
		CutoffMinute:     15,
		StuckOrderCycles: 3,
	}
}

func newTestDriver(t *testing.T, backend execution.Backend) *Driver {
	t.Helper()
	orch := execution.New(backend, 0, nil)
	emitter := alert.NewEmitter(0, nil)
	d, err := NewDriver(testParams(), testUniverse(), orch, emitter, nil, nil)
	if err != nil {
		t.Fatalf("NewDriver() error: %v", err)
	}
	return d
}

func kstMs(t *testing.T, hour, minute int) int64 {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("Failed to load KST: %v", err)
	}
	return time.Date(2026, 1, 2, hour, minute, 0, 0, loc).UnixMilli()
}

func strongSnapshot(code string, last float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Code:       code,
		Open:       last / 1.05,
		Last:       last,
		High:       last,
		Low:        last / 1.06,
		Volume:     500000,
		ChangeRate: 5.0,
	}
}

func batchAt(tsMs int64, index *domain.IndexSnapshot, snaps ...*domain.MarketSnapshot) *domain.SnapshotBatch {
	return &domain.SnapshotBatch{
		TradeDate:   "20260102",
		TimestampMs: tsMs,
		Index:       index,
		Snapshots:   snaps,
	}
}

func bullIndex() *domain.IndexSnapshot {
	return &domain.IndexSnapshot{Level: 2600, MA20: 2500}
}

func newDay() domain.DayAccount {
	return domain.DayAccount{TradeDate: "20260102", StartingEquity: 10000000}
}

func TestCycle_EntryAndExitRoundTrip(t *testing.T) {
	backend := &fillBackend{}
	d := newTestDriver(t, backend)
	day := newDay()

	// Cycle 1: a strong candidate in a bullish regime opens a position.
	day, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if result.Regime != regime.Bullish {
		t.Fatalf("Regime = %s, want BULLISH", result.Regime)
	}
	if len(result.Intents) != 1 || result.Intents[0].Side != domain.SideBuy {
		t.Fatalf("Intents = %+v, want one buy", result.Intents)
	}
	if day.PositionsOpened != 1 {
		t.Errorf("PositionsOpened = %d, want 1", day.PositionsOpened)
	}
	if day.CycleCount != 1 {
		t.Errorf("CycleCount = %d, want 1", day.CycleCount)
	}

	// Cycle 2: price clears the take-profit band, the position closes.
	day, result, err = d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 10), bullIndex(), strongSnapshot("005930", 10200)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("Trades = %d, want 1", len(result.Trades))
	}
	if result.Trades[0].ExitReason != string(domain.ExitReasonTakeProfit) {
		t.Errorf("ExitReason = %s, want TAKE_PROFIT", result.Trades[0].ExitReason)
	}
	if day.TradesClosed != 1 {
		t.Errorf("TradesClosed = %d, want 1", day.TradesClosed)
	}
	if day.RealizedNetPnL <= 0 {
		t.Errorf("RealizedNetPnL = %.2f, want positive after a 2%% move", day.RealizedNetPnL)
	}
}

func TestCycle_HardStopLiquidatesAndAlerts(t *testing.T) {
	backend := &fillBackend{}
	d := newTestDriver(t, backend)
	day := newDay()

	// Open a position first.
	day, _, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}

	// Push realized P&L through the hard stop.
	day.RealizedNetPnL = -350000

	day, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 10), bullIndex(), strongSnapshot("005930", 10050)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if result.Verdict != domain.VerdictHardStop {
		t.Fatalf("Verdict = %s, want HARD_STOP", result.Verdict)
	}
	if len(result.Trades) != 1 || result.Trades[0].ExitReason != string(domain.ExitReasonDayHalt) {
		t.Errorf("Expected a forced DAY_HALT liquidation, got %+v", result.Trades)
	}

	found := false
	for _, event := range result.Alerts {
		if event.Kind == domain.AlertHardStop {
			found = true
		}
	}
	if !found {
		t.Error("Expected a hard_stop alert on the halt cycle")
	}

	// The alert fires only on the transition cycle.
	_, result, err = d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 20), bullIndex(), strongSnapshot("005930", 10050)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	for _, event := range result.Alerts {
		if event.Kind == domain.AlertHardStop {
			t.Error("hard_stop alert must not repeat after the transition")
		}
	}
}

func TestCycle_EODLiquidation(t *testing.T) {
	backend := &fillBackend{}
	d := newTestDriver(t, backend)
	day := newDay()

	day, _, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}

	// Price stays inside every band; only the clock forces the exit.
	day, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 15, 15), bullIndex(), strongSnapshot("005930", 10050)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if !day.EODLiquidated {
		t.Error("EODLiquidated flag not set at the cutoff")
	}
	if len(result.Trades) != 1 || result.Trades[0].ExitReason != string(domain.ExitReasonEndOfDay) {
		t.Errorf("Expected an END_OF_DAY exit, got %+v", result.Trades)
	}

	found := false
	for _, event := range result.Alerts {
		if event.Kind == domain.AlertEODLiquidation {
			found = true
		}
	}
	if !found {
		t.Error("Expected an eod_liquidation alert")
	}

	// No re-entry after the cutoff.
	_, result, err = d.Cycle(context.Background(), day, batchAt(kstMs(t, 15, 20), bullIndex(), strongSnapshot("005930", 10050)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Intents) != 0 {
		t.Errorf("Intents after cutoff = %d, want 0", len(result.Intents))
	}
	for _, event := range result.Alerts {
		if event.Kind == domain.AlertEODLiquidation {
			t.Error("eod_liquidation alert must be emitted once")
		}
	}
}

func TestCycle_HedgeMaxHoldRunsOnBatchClock(t *testing.T) {
	backend := &fillBackend{}
	params := testParams()
	params.Book.HedgeMaxHold = 30 * time.Minute
	orch := execution.New(backend, 0, nil)
	d, err := NewDriver(params, testUniverse(), orch, alert.NewEmitter(0, nil), nil, nil)
	if err != nil {
		t.Fatalf("NewDriver() error: %v", err)
	}
	day := newDay()

	bearIndex := &domain.IndexSnapshot{Level: 2400, MA20: 2500}

	// Cycle 1 at 10:00: the bearish regime opens the hedge at 5,000.
	day, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bearIndex, strongSnapshot("114800", 5000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Intents) != 1 || result.Intents[0].Code != "114800" {
		t.Fatalf("Intents = %+v, want one hedge buy", result.Intents)
	}

	// Cycle 2 an hour of batch time later, price inside every band: only
	// the holding clock can release the hedge. The engine must measure it
	// against the batch timestamps, not the wall clock.
	day, result, err = d.Cycle(context.Background(), day, batchAt(kstMs(t, 11, 0), bearIndex, strongSnapshot("114800", 5000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("Trades = %d, want the hedge released on the time limit", len(result.Trades))
	}
	tr := result.Trades[0]
	if tr.ExitReason != string(domain.ExitReasonHedgeTimeLimit) {
		t.Errorf("ExitReason = %s, want HEDGE_TIME_LIMIT", tr.ExitReason)
	}
	if tr.EntryTimeMs != kstMs(t, 10, 0) {
		t.Errorf("EntryTimeMs = %d, want the opening batch clock %d", tr.EntryTimeMs, kstMs(t, 10, 0))
	}
	if tr.ExitTimeMs != kstMs(t, 11, 0) {
		t.Errorf("ExitTimeMs = %d, want the closing batch clock %d", tr.ExitTimeMs, kstMs(t, 11, 0))
	}
	if day.TradesClosed != 1 {
		t.Errorf("TradesClosed = %d, want 1", day.TradesClosed)
	}
}

func TestCycle_SellFailureRaisesAlert(t *testing.T) {
	backend := &fillBackend{}
	d := newTestDriver(t, backend)
	day := newDay()

	day, _, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}

	backend.rejectSells = true
	day, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 10), bullIndex(), strongSnapshot("005930", 10200)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("Trades = %d, want 0 after a rejected sell", len(result.Trades))
	}

	found := false
	for _, event := range result.Alerts {
		if event.Kind == domain.AlertSellFailed {
			found = true
		}
	}
	if !found {
		t.Error("Expected a sell_failed alert")
	}

	// The preserved reason retries next cycle; a fill closes the trade.
	backend.rejectSells = false
	day, result, err = d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 20), bullIndex(), strongSnapshot("005930", 10200)))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if len(result.Trades) != 1 || result.Trades[0].ExitReason != string(domain.ExitReasonTakeProfit) {
		t.Errorf("Expected the retried TAKE_PROFIT exit to close, got %+v", result.Trades)
	}
	if day.TradesClosed != 1 {
		t.Errorf("TradesClosed = %d, want 1", day.TradesClosed)
	}
}

func TestCycle_InvalidSnapshotsSkipped(t *testing.T) {
	backend := &fillBackend{}
	d := newTestDriver(t, backend)
	day := newDay()

	bad := &domain.MarketSnapshot{Code: "000660", Last: 5000} // missing open/high
	_, result, err := d.Cycle(context.Background(), day, batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000), bad))
	if err != nil {
		t.Fatalf("Cycle() error: %v", err)
	}
	if result.SnapshotErrors != 1 {
		t.Errorf("SnapshotErrors = %d, want 1", result.SnapshotErrors)
	}
	for _, s := range result.Scores {
		if s.Code == "000660" {
			t.Error("Invalid snapshot must not be ranked")
		}
	}
}

func TestCycle_DateMismatchIsError(t *testing.T) {
	d := newTestDriver(t, &fillBackend{})
	day := newDay()

	batch := batchAt(kstMs(t, 10, 0), bullIndex(), strongSnapshot("005930", 10000))
	batch.TradeDate = "20260103"
	if _, _, err := d.Cycle(context.Background(), day, batch); err == nil {
		t.Error("Expected an error for a batch from another trading day")
	}
}

func TestCycle_DeterministicAcrossRuns(t *testing.T) {
	run := func() []*domain.OrderIntent {
		d := newTestDriver(t, &fillBackend{})
		day := newDay()

		var intents []*domain.OrderIntent
		ticks := []struct {
			hour, minute int
			price        float64
		}{
			{10, 0, 10000},
			{10, 10, 10050},
			{10, 20, 10200},
			{10, 30, 10100},
		}
		for _, tick := range ticks {
			var result CycleResult
			var err error
			day, result, err = d.Cycle(context.Background(), day, batchAt(
				kstMs(t, tick.hour, tick.minute), bullIndex(),
				strongSnapshot("005930", tick.price), strongSnapshot("000660", tick.price*2)))
			if err != nil {
				t.Fatalf("Cycle() error: %v", err)
			}
			intents = append(intents, result.Intents...)
		}
		return intents
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Error("Two runs over the same snapshot sequence must emit identical intents")
	}
}

func TestSummarize(t *testing.T) {
	day := &domain.DayAccount{
		TradeDate:        "20260102",
		StartingEquity:   10000000,
		RealizedGrossPnL: 52000,
		RealizedNetPnL:   47000,
		FeesPaid:         5000,
		TargetReached:    true,
		TradesClosed:     3,
		PositionsOpened:  4,
		CycleCount:       120,
	}
	trades := []*domain.TradeRecord{
		{NetPnL: 30000},
		{NetPnL: 25000},
		{NetPnL: -8000},
	}

	sum := Summarize(day, trades)
	if sum.WinCount != 2 {
		t.Errorf("WinCount = %d, want 2", sum.WinCount)
	}
	if sum.HaltCondition != "TARGET_REACHED" {
		t.Errorf("HaltCondition = %q, want TARGET_REACHED", sum.HaltCondition)
	}
	if sum.CycleCount != 120 {
		t.Errorf("CycleCount = %d", sum.CycleCount)
	}
}
