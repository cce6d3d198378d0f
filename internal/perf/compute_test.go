package perf

import (
	"math"
	"testing"

	"krx-scalp-lab/internal/domain"
)

func trade(id string, exitMs int64, net float64) *domain.TradeRecord {
	return &domain.TradeRecord{TradeID: id, ExitTimeMs: exitMs, NetPnL: net}
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil)
	if stats.Trades != 0 || stats.WinRate != 0 {
		t.Errorf("Empty input: %+v", stats)
	}
}

func TestCompute_BasicAggregates(t *testing.T) {
	trades := []*domain.TradeRecord{
		trade("a", 1000, 10000),
		trade("b", 2000, -4000),
		trade("c", 3000, 6000),
		trade("d", 4000, -2000),
	}

	stats := Compute(trades)
	if stats.Trades != 4 || stats.Wins != 2 {
		t.Errorf("Trades/Wins = %d/%d, want 4/2", stats.Trades, stats.Wins)
	}
	if stats.WinRate != 0.5 {
		t.Errorf("WinRate = %.2f, want 0.50", stats.WinRate)
	}
	if stats.TotalNet != 10000 {
		t.Errorf("TotalNet = %.0f, want 10000", stats.TotalNet)
	}
	if stats.NetMean != 2500 {
		t.Errorf("NetMean = %.0f, want 2500", stats.NetMean)
	}
	if stats.NetMin != -4000 || stats.NetMax != 10000 {
		t.Errorf("Min/Max = %.0f/%.0f", stats.NetMin, stats.NetMax)
	}
	// Sorted nets: -4000, -2000, 6000, 10000; median interpolates the middle.
	if stats.NetMedian != 2000 {
		t.Errorf("NetMedian = %.0f, want 2000", stats.NetMedian)
	}
}

func TestCompute_Percentiles(t *testing.T) {
	// Nets 1..5: P25 sits halfway between the 2nd and... exactly on rank 1.
	trades := []*domain.TradeRecord{
		trade("a", 1000, 1),
		trade("b", 2000, 2),
		trade("c", 3000, 3),
		trade("d", 4000, 4),
		trade("e", 5000, 5),
	}

	stats := Compute(trades)
	if stats.NetMedian != 3 {
		t.Errorf("NetMedian = %.2f, want 3", stats.NetMedian)
	}
	if stats.NetP25 != 2 {
		t.Errorf("NetP25 = %.2f, want 2", stats.NetP25)
	}
	if stats.NetP75 != 4 {
		t.Errorf("NetP75 = %.2f, want 4", stats.NetP75)
	}
	if math.Abs(stats.NetP10-1.4) > 1e-9 {
		t.Errorf("NetP10 = %.2f, want 1.4", stats.NetP10)
	}
	if math.Abs(stats.NetP90-4.6) > 1e-9 {
		t.Errorf("NetP90 = %.2f, want 4.6", stats.NetP90)
	}
}

func TestCompute_Stddev(t *testing.T) {
	trades := []*domain.TradeRecord{
		trade("a", 1000, 2),
		trade("b", 2000, 4),
		trade("c", 3000, 4),
		trade("d", 4000, 4),
		trade("e", 5000, 5),
		trade("f", 6000, 5),
		trade("g", 7000, 7),
		trade("h", 8000, 9),
	}

	stats := Compute(trades)
	// Sample stddev of the classic 2,4,4,4,5,5,7,9 series.
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(stats.NetStddev-want) > 1e-9 {
		t.Errorf("NetStddev = %.6f, want %.6f", stats.NetStddev, want)
	}

	single := Compute([]*domain.TradeRecord{trade("a", 1000, 5)})
	if single.NetStddev != 0 {
		t.Errorf("Single-trade stddev = %.2f, want 0", single.NetStddev)
	}
}

func TestCompute_MaxDrawdownFollowsExitOrder(t *testing.T) {
	// Cumulative curve: 10000, 4000, 12000, 3000 -> deepest drop 9000.
	trades := []*domain.TradeRecord{
		trade("a", 1000, 10000),
		trade("b", 2000, -6000),
		trade("c", 3000, 8000),
		trade("d", 4000, -9000),
	}

	stats := Compute(trades)
	if stats.MaxDrawdown != 9000 {
		t.Errorf("MaxDrawdown = %.0f, want 9000", stats.MaxDrawdown)
	}

	// Shuffled input must produce the same path-dependent figures.
	shuffled := []*domain.TradeRecord{trades[3], trades[0], trades[2], trades[1]}
	if got := Compute(shuffled); got.MaxDrawdown != 9000 {
		t.Errorf("Shuffled MaxDrawdown = %.0f, want 9000", got.MaxDrawdown)
	}
}

func TestCompute_MaxConsecutiveLosses(t *testing.T) {
	trades := []*domain.TradeRecord{
		trade("a", 1000, -1),
		trade("b", 2000, -1),
		trade("c", 3000, 5),
		trade("d", 4000, -1),
		trade("e", 5000, -1),
		trade("f", 6000, -1),
		trade("g", 7000, 2),
	}

	stats := Compute(trades)
	if stats.MaxConsecutiveLosses != 3 {
		t.Errorf("MaxConsecutiveLosses = %d, want 3", stats.MaxConsecutiveLosses)
	}
}
