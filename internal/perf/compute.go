// Package perf aggregates closed trades into performance statistics.
package perf

import (
	"math"
	"sort"

	"krx-scalp-lab/internal/domain"
)

// Stats summarizes a set of closed trades.
type Stats struct {
	Trades  int
	Wins    int
	WinRate float64 // wins / trades, 0 when empty

	TotalNet  float64
	NetMean   float64
	NetMedian float64
	NetP10    float64
	NetP25    float64
	NetP75    float64
	NetP90    float64
	NetMin    float64
	NetMax    float64
	NetStddev float64 // sample standard deviation, 0 below 2 trades

	MaxDrawdown          float64 // deepest drop of the cumulative net curve, >= 0
	MaxConsecutiveLosses int
}

// Compute aggregates the trades. Inputs are re-sorted by (exit time, trade
// ID) so path-dependent figures do not depend on caller ordering.
func Compute(trades []*domain.TradeRecord) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	ordered := make([]*domain.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ExitTimeMs != ordered[j].ExitTimeMs {
			return ordered[i].ExitTimeMs < ordered[j].ExitTimeMs
		}
		return ordered[i].TradeID < ordered[j].TradeID
	})

	stats := Stats{Trades: len(ordered)}

	nets := make([]float64, len(ordered))
	var cum, peak float64
	var losses int
	for i, tr := range ordered {
		nets[i] = tr.NetPnL
		stats.TotalNet += tr.NetPnL
		if tr.Win() {
			stats.Wins++
		}

		cum += tr.NetPnL
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > stats.MaxDrawdown {
			stats.MaxDrawdown = dd
		}

		if tr.NetPnL < 0 {
			losses++
			if losses > stats.MaxConsecutiveLosses {
				stats.MaxConsecutiveLosses = losses
			}
		} else {
			losses = 0
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
	stats.NetMean = stats.TotalNet / float64(stats.Trades)

	sorted := make([]float64, len(nets))
	copy(sorted, nets)
	sort.Float64s(sorted)
	stats.NetMin = sorted[0]
	stats.NetMax = sorted[len(sorted)-1]
	stats.NetMedian = percentile(sorted, 50)
	stats.NetP10 = percentile(sorted, 10)
	stats.NetP25 = percentile(sorted, 25)
	stats.NetP75 = percentile(sorted, 75)
	stats.NetP90 = percentile(sorted, 90)

	if len(nets) > 1 {
		var ss float64
		for _, v := range nets {
			d := v - stats.NetMean
			ss += d * d
		}
		stats.NetStddev = math.Sqrt(ss / float64(len(nets)-1))
	}

	return stats
}

// percentile interpolates linearly between the closest ranks of an ascending
// slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
