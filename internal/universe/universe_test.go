package universe

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"krx-scalp-lab/internal/domain"
)

type fakeRanking struct {
	leaders []*domain.Instrument
	err     error
	calls   int
}

func (f *fakeRanking) VolumeLeaders(_ context.Context, _ int) ([]*domain.Instrument, error) {
	f.calls++
	return f.leaders, f.err
}

func TestNew_WatchlistAndHedge(t *testing.T) {
	u := New([]string{"005930", "000660"}, "114800")

	merged := u.Snapshot()
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}
	if !merged["114800"].Hedge {
		t.Error("Hedge instrument not flagged")
	}
	if merged["005930"].Hedge {
		t.Error("Watchlist instrument must not be flagged as hedge")
	}
	if !merged["005930"].Tradable {
		t.Error("Watchlist instrument must be tradable")
	}

	want := []string{"000660", "005930", "114800"}
	if got := u.Codes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Codes() = %v, want %v", got, want)
	}
}

func TestNew_HedgeInWatchlistStaysHedge(t *testing.T) {
	u := New([]string{"005930", "114800"}, "114800")
	if !u.Snapshot()["114800"].Hedge {
		t.Error("Hedge flag lost when the hedge code appears in the watchlist")
	}
}

func TestRefreshPool_MergesLeaders(t *testing.T) {
	u := New([]string{"005930"}, "114800")
	source := &fakeRanking{leaders: []*domain.Instrument{
		{Code: "035720", Name: "Kakao"},
		{Code: "005930", Name: "Samsung Electronics"},
		{Code: "114800"}, // the hedge never enters the pool
	}}

	if err := u.RefreshPool(context.Background(), source, 30); err != nil {
		t.Fatalf("RefreshPool() error: %v", err)
	}

	merged := u.Snapshot()
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}
	if !merged["035720"].Tradable {
		t.Error("Pool instrument must be tradable")
	}
	if merged["114800"] == nil || !merged["114800"].Hedge {
		t.Error("Hedge flag must survive the refresh")
	}
}

func TestRefreshPool_ReplacesPreviousPool(t *testing.T) {
	u := New([]string{"005930"}, "114800")
	source := &fakeRanking{leaders: []*domain.Instrument{{Code: "035720"}}}
	if err := u.RefreshPool(context.Background(), source, 30); err != nil {
		t.Fatalf("RefreshPool() error: %v", err)
	}

	source.leaders = []*domain.Instrument{{Code: "035420"}}
	if err := u.RefreshPool(context.Background(), source, 30); err != nil {
		t.Fatalf("RefreshPool() error: %v", err)
	}

	merged := u.Snapshot()
	if _, ok := merged["035720"]; ok {
		t.Error("Stale pool member survived the refresh")
	}
	if _, ok := merged["035420"]; !ok {
		t.Error("New pool member missing")
	}
}

func TestRefreshPool_ErrorKeepsOldPool(t *testing.T) {
	u := New(nil, "114800")
	source := &fakeRanking{leaders: []*domain.Instrument{{Code: "035720"}}}
	if err := u.RefreshPool(context.Background(), source, 30); err != nil {
		t.Fatalf("RefreshPool() error: %v", err)
	}

	source.err = errors.New("ranking api down")
	if err := u.RefreshPool(context.Background(), source, 30); err == nil {
		t.Fatal("Expected the refresh error to propagate")
	}
	if _, ok := u.Snapshot()["035720"]; !ok {
		t.Error("Failed refresh must keep the previous pool")
	}
}

func TestRefreshPool_DisabledByZeroTopN(t *testing.T) {
	u := New(nil, "114800")
	source := &fakeRanking{}
	if err := u.RefreshPool(context.Background(), source, 0); err != nil {
		t.Fatalf("RefreshPool() error: %v", err)
	}
	if source.calls != 0 {
		t.Error("topN 0 must not call the ranking source")
	}
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	u := New([]string{"005930"}, "114800")
	u.Snapshot()["005930"].Tradable = false
	if !u.Snapshot()["005930"].Tradable {
		t.Error("Mutating a snapshot must not affect the universe")
	}
}
