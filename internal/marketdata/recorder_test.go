package marketdata

import (
	"context"
	"testing"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage/memory"
)

func TestRecord(t *testing.T) {
	store := memory.NewSnapshotLogStore()
	recorder := NewRecorder(store)

	batch := &domain.SnapshotBatch{
		TradeDate:   "20260102",
		TimestampMs: 1000,
		Index:       &domain.IndexSnapshot{Level: 2600, MA20: 2550, TimestampMs: 1000},
		Snapshots: []*domain.MarketSnapshot{
			{Code: "005930", Open: 70000, Last: 71000, High: 71500, Low: 69800, Volume: 100, ChangeRate: 2.45},
		},
	}
	if err := recorder.Record(context.Background(), batch); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	rows, err := store.GetByDate(context.Background(), "20260102")
	if err != nil {
		t.Fatalf("GetByDate() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	var index, stock *domain.RecordedSnapshot
	for _, r := range rows {
		if r.Code == domain.IndexRecordCode {
			index = r
		} else {
			stock = r
		}
	}
	if index == nil || stock == nil {
		t.Fatalf("rows = %+v, want one index row and one instrument row", rows)
	}
	if index.Last != 2600 || index.Open != 2550 {
		t.Errorf("Index row = %+v, want level in Last and MA20 in Open", index)
	}
	if stock.Code != "005930" || stock.Last != 71000 || stock.ChangeRate != 2.45 {
		t.Errorf("Instrument row = %+v", stock)
	}
}

func TestRecord_NilBatch(t *testing.T) {
	recorder := NewRecorder(memory.NewSnapshotLogStore())
	if err := recorder.Record(context.Background(), nil); err == nil {
		t.Error("Expected an error for a nil batch")
	}
}

func TestRecord_BatchWithoutIndex(t *testing.T) {
	store := memory.NewSnapshotLogStore()
	recorder := NewRecorder(store)

	batch := &domain.SnapshotBatch{
		TradeDate:   "20260102",
		TimestampMs: 1000,
		Snapshots: []*domain.MarketSnapshot{
			{Code: "005930", Open: 70000, Last: 71000, High: 71500},
		},
	}
	if err := recorder.Record(context.Background(), batch); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	rows, err := store.GetByDate(context.Background(), "20260102")
	if err != nil {
		t.Fatalf("GetByDate() error: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "005930" {
		t.Errorf("rows = %+v, want only the instrument row", rows)
	}
}
