package signal

import (
	"math"
	"testing"

	"krx-scalp-lab/internal/domain"
)

func testUniverse(codes ...string) map[string]*domain.Instrument {
	u := make(map[string]*domain.Instrument)
	for _, c := range codes {
		u[c] = &domain.Instrument{Code: c, Tradable: true}
	}
	return u
}

func snap(code string, open, last, high float64, volume int64, changeRate float64) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Code: code, Open: open, Last: last, High: high, Low: open,
		Volume: volume, ChangeRate: changeRate, TimestampMs: 1000,
	}
}

func TestRank_FullWeightScore(t *testing.T) {
	// +5% from open, +5% change, at the day high, sole candidate
	// (volume percentile 1) scores exactly 1.0.
	snaps := []*domain.MarketSnapshot{
		snap("005930", 10000, 10500, 10500, 500000, 5.0),
	}

	scores := Rank(snaps, testUniverse("005930"), DefaultParams())

	if len(scores) != 1 {
		t.Fatalf("Expected 1 score, got %d", len(scores))
	}
	if math.Abs(scores[0].Value-1.0) > 1e-9 {
		t.Errorf("Expected score 1.0, got %g", scores[0].Value)
	}
}

func TestRank_OrderingAndTies(t *testing.T) {
	snaps := []*domain.MarketSnapshot{
		snap("035420", 10000, 10300, 10400, 300000, 3.0),
		snap("005930", 10000, 10500, 10500, 500000, 5.0),
		snap("000660", 10000, 10500, 10500, 500000, 5.0), // same inputs as 005930 except code
	}

	scores := Rank(snaps, testUniverse("005930", "000660", "035420"), DefaultParams())

	if len(scores) != 3 {
		t.Fatalf("Expected 3 scores, got %d", len(scores))
	}
	if scores[len(scores)-1].Code != "035420" {
		t.Errorf("Weakest candidate should rank last, got %s", scores[len(scores)-1].Code)
	}
	// Volume tie between 005930 and 000660 is broken by code, so their volume
	// percentiles differ, but both outrank the weaker candidate.
	if scores[0].Value < scores[1].Value {
		t.Errorf("Scores not descending: %g then %g", scores[0].Value, scores[1].Value)
	}
}

func TestRank_DeterministicTieBreak(t *testing.T) {
	// Identical volume and price action: percentile assignment ties by code,
	// making the whole ranking reproducible.
	snaps := []*domain.MarketSnapshot{
		snap("000660", 10000, 10200, 10200, 400000, 2.0),
		snap("005930", 10000, 10200, 10200, 400000, 2.0),
	}

	first := Rank(snaps, testUniverse("005930", "000660"), DefaultParams())
	reversed := Rank([]*domain.MarketSnapshot{snaps[1], snaps[0]}, testUniverse("005930", "000660"), DefaultParams())

	if first[0].Code != reversed[0].Code || first[1].Code != reversed[1].Code {
		t.Errorf("Ranking depends on input order: %s,%s vs %s,%s",
			first[0].Code, first[1].Code, reversed[0].Code, reversed[1].Code)
	}
}

func TestRank_Exclusions(t *testing.T) {
	p := DefaultParams()
	universe := testUniverse("005930", "000660", "035420", "068270", "005380")
	universe["114800"] = &domain.Instrument{Code: "114800", Tradable: true, Hedge: true}

	tests := []struct {
		name string
		s    *domain.MarketSnapshot
	}{
		{"below min price", snap("005930", 900, 950, 960, 500000, 2.0)},
		{"below min volume", snap("000660", 10000, 10200, 10300, 50000, 2.0)},
		{"change rate too low", snap("035420", 10000, 10020, 10100, 500000, 0.2)},
		{"overextended", snap("068270", 10000, 11200, 11300, 500000, 12.0)},
		{"data error", snap("005380", 0, 10200, 10300, 500000, 2.0)},
		{"hedge instrument", snap("114800", 10000, 10200, 10300, 500000, 2.0)},
		{"unknown instrument", snap("999999", 10000, 10200, 10300, 500000, 2.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := Rank([]*domain.MarketSnapshot{tt.s}, universe, p)
			if len(scores) != 0 {
				t.Errorf("Expected exclusion, got score %+v", scores[0])
			}
		})
	}
}

func TestRank_ClampsOverdriveFactors(t *testing.T) {
	// +8% open gain clamps the open-gain factor at 1.
	snaps := []*domain.MarketSnapshot{
		snap("005930", 10000, 10800, 10900, 500000, 8.0),
	}

	scores := Rank(snaps, testUniverse("005930"), DefaultParams())

	if len(scores) != 1 {
		t.Fatalf("Expected 1 score, got %d", len(scores))
	}
	if scores[0].OpenGain != 1.0 {
		t.Errorf("Expected clamped open gain 1.0, got %g", scores[0].OpenGain)
	}
	if scores[0].ChangeRate != 1.0 {
		t.Errorf("Expected clamped change factor 1.0, got %g", scores[0].ChangeRate)
	}
	if scores[0].Value > 1.0+1e-9 {
		t.Errorf("Score must stay within [0,1], got %g", scores[0].Value)
	}
}

func TestRank_EmptyInput(t *testing.T) {
	if got := Rank(nil, testUniverse("005930"), DefaultParams()); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}
}
