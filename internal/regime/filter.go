// Package regime classifies the broad market as bullish or bearish to gate
// long entries against hedge entries.
package regime

import "krx-scalp-lab/internal/domain"

// Regime is the market-wide classification for one cycle.
type Regime string

// Regime values.
const (
	Bullish Regime = "BULLISH"
	Bearish Regime = "BEARISH"
)

// Params tune the fallback estimator.
type Params struct {
	// BreadthBearThreshold is the mean change rate (percent) below which the
	// breadth fallback classifies BEARISH. Used only when no usable index
	// snapshot is available.
	BreadthBearThreshold float64
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{BreadthBearThreshold: -0.5}
}

// Classify compares the index level against its 20-period moving average.
// Level at or above the MA is BULLISH. When the index snapshot is missing or
// its MA is zero, the regime is estimated from universe breadth instead.
// Stateless per cycle; a single-cycle flip is acted on immediately.
func Classify(index *domain.IndexSnapshot, snapshots []*domain.MarketSnapshot, p Params) Regime {
	if index != nil && index.MA20 > 0 {
		if index.Level >= index.MA20 {
			return Bullish
		}
		return Bearish
	}
	return classifyBreadth(snapshots, p)
}

// classifyBreadth estimates the regime from the mean change rate of valid
// candidate snapshots.
func classifyBreadth(snapshots []*domain.MarketSnapshot, p Params) Regime {
	var sum float64
	var n int
	for _, s := range snapshots {
		if s == nil || !s.Valid() {
			continue
		}
		sum += s.ChangeRate
		n++
	}
	if n == 0 {
		return Bullish
	}
	if sum/float64(n) < p.BreadthBearThreshold {
		return Bearish
	}
	return Bullish
}
