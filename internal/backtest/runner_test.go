package backtest

import (
	"context"
	"testing"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/engine"
	"krx-scalp-lab/internal/regime"
	"krx-scalp-lab/internal/risk"
	"krx-scalp-lab/internal/signal"
	"krx-scalp-lab/internal/storage/memory"
)

func runnerParams() engine.Params {
	book := risk.DefaultBookParams()
	book.CooldownSec = 0
	book.EntryThreshold = 0.75
	return engine.Params{
		Signal:       signal.DefaultParams(),
		Regime:       regime.DefaultParams(),
		Governor:     risk.DefaultGovernorParams(),
		Book:         book,
		HedgeCode:    "114800",
		CutoffHour:   15,
		CutoffMinute: 15,
	}
}

func runnerUniverse() map[string]*domain.Instrument {
	return map[string]*domain.Instrument{
		"005930": {Code: "005930", Tradable: true},
		"114800": {Code: "114800", Tradable: true, Hedge: true},
	}
}

// upBar gaps 5% over the prior close, makes its high at the 13:00 tick and
// fades into the close: the 09:00 tick ranks and enters at 10,000, the
// 15:20 pullback off the 10,100 high trips the trailing stop.
func upBar(code, date string) *domain.DailyBar {
	return &domain.DailyBar{
		Code: code, TradeDate: date,
		Open: 10000, High: 10100, Low: 10000, Close: 10000,
		PrevClose: 9500, Volume: 400000,
	}
}

func newRunner(t *testing.T, barStore *memory.DailyBarStore, fillModel string) (*Runner, *memory.TradeRecordStore, *memory.DaySummaryStore) {
	t.Helper()
	trades := memory.NewTradeRecordStore()
	summaries := memory.NewDaySummaryStore()
	r, err := NewRunner(runnerParams(), runnerUniverse(), barStore, trades, summaries, 10000000, fillModel, nil)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	return r, trades, summaries
}

func TestRunner_SingleDayRoundTrip(t *testing.T) {
	ctx := context.Background()
	barStore := memory.NewDailyBarStore()
	if err := barStore.InsertBulk(ctx, []*domain.DailyBar{upBar("005930", "20260102")}); err != nil {
		t.Fatalf("InsertBulk() error: %v", err)
	}

	r, tradeStore, summaryStore := newRunner(t, barStore, FillImmediate)
	summaries, err := r.Run(ctx, "20260101", "20260131")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}

	sum := summaries[0]
	if sum.PositionsOpened != 1 {
		t.Errorf("PositionsOpened = %d, want 1", sum.PositionsOpened)
	}
	if sum.TradesClosed != 1 {
		t.Errorf("TradesClosed = %d, want 1", sum.TradesClosed)
	}
	if sum.CycleCount != 4 {
		t.Errorf("CycleCount = %d, want one per synthesized tick", sum.CycleCount)
	}

	trades, err := tradeStore.GetByDate(ctx, "20260102")
	if err != nil {
		t.Fatalf("GetByDate() error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Persisted trades = %d, want 1", len(trades))
	}
	if trades[0].ExitReason != string(domain.ExitReasonTrailingStop) {
		t.Errorf("ExitReason = %s, want TRAILING_STOP from the pullback off the high", trades[0].ExitReason)
	}
	if trades[0].EntryPrice != 10000 || trades[0].ExitPrice != 10000 {
		t.Errorf("Entry/exit = %.0f/%.0f, want 10000/10000", trades[0].EntryPrice, trades[0].ExitPrice)
	}

	stored, err := summaryStore.GetByDate(ctx, "20260102")
	if err != nil {
		t.Fatalf("Summary not persisted: %v", err)
	}
	if stored.RealizedNetPnL != sum.RealizedNetPnL {
		t.Error("Stored summary diverges from the returned one")
	}
}

func TestRunner_DaysAreIsolated(t *testing.T) {
	ctx := context.Background()
	barStore := memory.NewDailyBarStore()
	err := barStore.InsertBulk(ctx, []*domain.DailyBar{
		upBar("005930", "20260102"),
		upBar("005930", "20260105"),
	})
	if err != nil {
		t.Fatalf("InsertBulk() error: %v", err)
	}

	r, _, _ := newRunner(t, barStore, FillImmediate)
	summaries, err := r.Run(ctx, "20260101", "20260131")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}

	// Identical bars must produce identical day results.
	if summaries[0].RealizedNetPnL != summaries[1].RealizedNetPnL {
		t.Errorf("Day results diverge: %.2f vs %.2f",
			summaries[0].RealizedNetPnL, summaries[1].RealizedNetPnL)
	}
	if summaries[0].TradeDate != "20260102" || summaries[1].TradeDate != "20260105" {
		t.Errorf("Dates = %s, %s", summaries[0].TradeDate, summaries[1].TradeDate)
	}
}

func TestRunner_NextTickDelaysTheFill(t *testing.T) {
	ctx := context.Background()
	barStore := memory.NewDailyBarStore()
	if err := barStore.InsertBulk(ctx, []*domain.DailyBar{upBar("005930", "20260102")}); err != nil {
		t.Fatalf("InsertBulk() error: %v", err)
	}

	r, tradeStore, _ := newRunner(t, barStore, FillNextTick)
	summaries, err := r.Run(ctx, "20260101", "20260131")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// The 09:00 buy stays pending until the 10:30 tick, and the trailing
	// sell at 15:20 stays pending past the last tick, so the position
	// opens but no trade closes within the day.
	sum := summaries[0]
	if sum.PositionsOpened != 1 {
		t.Errorf("PositionsOpened = %d, want 1", sum.PositionsOpened)
	}
	if sum.TradesClosed != 0 {
		t.Errorf("TradesClosed = %d, want 0 with the delayed fill", sum.TradesClosed)
	}

	trades, err := tradeStore.GetByDate(ctx, "20260102")
	if err != nil {
		t.Fatalf("GetByDate() error: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("Persisted trades = %d, want 0", len(trades))
	}
}

func TestRunner_BearishDayEntersHedge(t *testing.T) {
	ctx := context.Background()
	barStore := memory.NewDailyBarStore()
	err := barStore.InsertBulk(ctx, []*domain.DailyBar{
		// A 15% collapse drags mean breadth far below the bear threshold.
		{Code: "005930", TradeDate: "20260102", Open: 10000, High: 10100, Low: 8500, Close: 8600, PrevClose: 10000, Volume: 400000},
		// The inverse instrument rallies while the market falls.
		{Code: "114800", TradeDate: "20260102", Open: 5000, High: 5400, Low: 4990, Close: 5350, PrevClose: 5000, Volume: 300000},
	})
	if err != nil {
		t.Fatalf("InsertBulk() error: %v", err)
	}

	r, tradeStore, _ := newRunner(t, barStore, FillImmediate)
	if _, err := r.Run(ctx, "20260101", "20260131"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	trades, err := tradeStore.GetByDate(ctx, "20260102")
	if err != nil {
		t.Fatalf("GetByDate() error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Trades = %d, want the hedge round trip", len(trades))
	}
	if !trades[0].Hedge || trades[0].Code != "114800" {
		t.Errorf("Trade = %+v, want a hedge trade in 114800", trades[0])
	}
}

func TestRunner_EmptyRangeIsError(t *testing.T) {
	r, _, _ := newRunner(t, memory.NewDailyBarStore(), FillImmediate)
	if _, err := r.Run(context.Background(), "20260101", "20260131"); err == nil {
		t.Error("Expected an error for a range without bars")
	}
}
