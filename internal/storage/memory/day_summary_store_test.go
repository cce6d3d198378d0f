package memory

import (
	"context"
	"errors"
	"testing"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

func TestDaySummaryStore_InsertAndGet(t *testing.T) {
	store := NewDaySummaryStore()
	ctx := context.Background()

	s := &domain.DaySummary{
		TradeDate:        "20260102",
		StartingEquity:   10000000,
		RealizedGrossPnL: 150000,
		RealizedNetPnL:   128000,
		FeesPaid:         22000,
		HaltCondition:    "TARGET_REACHED",
		TradesClosed:     7,
		WinCount:         5,
		PositionsOpened:  8,
		CycleCount:       180,
	}

	if err := store.Insert(ctx, s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByDate(ctx, "20260102")
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}

	if got.RealizedNetPnL != s.RealizedNetPnL {
		t.Errorf("RealizedNetPnL mismatch: got %f, want %f", got.RealizedNetPnL, s.RealizedNetPnL)
	}
	if got.HaltCondition != "TARGET_REACHED" {
		t.Errorf("HaltCondition mismatch: got %s", got.HaltCondition)
	}
}

func TestDaySummaryStore_DuplicateKey(t *testing.T) {
	store := NewDaySummaryStore()
	ctx := context.Background()

	s := &domain.DaySummary{TradeDate: "20260102", StartingEquity: 10000000}

	if err := store.Insert(ctx, s); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, s)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDaySummaryStore_NotFound(t *testing.T) {
	store := NewDaySummaryStore()
	ctx := context.Background()

	_, err := store.GetByDate(ctx, "20260102")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_, err = store.GetLatest(ctx)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from empty GetLatest, got %v", err)
	}
}

func TestDaySummaryStore_GetByDateRangeAndLatest(t *testing.T) {
	store := NewDaySummaryStore()
	ctx := context.Background()

	for _, d := range []string{"20260106", "20260102", "20260105"} {
		if err := store.Insert(ctx, &domain.DaySummary{TradeDate: d, StartingEquity: 10000000}); err != nil {
			t.Fatalf("Insert %s failed: %v", d, err)
		}
	}

	got, err := store.GetByDateRange(ctx, "20260102", "20260105")
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(got))
	}
	if got[0].TradeDate != "20260102" || got[1].TradeDate != "20260105" {
		t.Errorf("Expected ascending dates, got %s, %s", got[0].TradeDate, got[1].TradeDate)
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.TradeDate != "20260106" {
		t.Errorf("Expected latest 20260106, got %s", latest.TradeDate)
	}
}
