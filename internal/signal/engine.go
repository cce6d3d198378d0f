// Package signal ranks candidate instruments by intraday momentum. Ranking is
// a pure function of the cycle's snapshots, so live and backtest runs produce
// identical orderings for identical inputs.
package signal

import (
	"sort"

	"krx-scalp-lab/internal/domain"
)

// Params are the scoring weights and exclusion filters.
type Params struct {
	ChangeNorm      float64 // change ratio earning full weight (0.05 = +5%)
	WeightChange    float64
	WeightOpenGain  float64
	WeightProximity float64
	WeightVolume    float64

	MinPrice      float64 // exclude below this last price (KRW)
	MinVolume     int64   // exclude below this cumulative volume
	MinChangeRate float64 // exclude below this change rate (percent)
	MaxChangeRate float64 // overextension guard (percent)
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		ChangeNorm:      0.05,
		WeightChange:    0.4,
		WeightOpenGain:  0.2,
		WeightProximity: 0.2,
		WeightVolume:    0.2,
		MinPrice:        1000,
		MinVolume:       100000,
		MinChangeRate:   0.5,
		MaxChangeRate:   10.0,
	}
}

// Rank scores the cycle's candidate snapshots and returns them ordered by
// score descending, ties broken by instrument code ascending. Excluded
// instruments (filters, data errors, the hedge instrument) do not appear.
func Rank(snapshots []*domain.MarketSnapshot, universe map[string]*domain.Instrument, p Params) []*domain.Score {
	candidates := filter(snapshots, universe, p)
	if len(candidates) == 0 {
		return nil
	}

	volumeRank := volumePercentiles(candidates)

	scores := make([]*domain.Score, 0, len(candidates))
	for _, s := range candidates {
		openGain := clamp01(((s.Last - s.Open) / s.Open) / p.ChangeNorm)
		change := clamp01((s.ChangeRate / 100) / p.ChangeNorm)
		proximity := 1 - (s.High-s.Last)/s.High
		volRank := volumeRank[s.Code]

		value := p.WeightChange*change +
			p.WeightOpenGain*openGain +
			p.WeightProximity*proximity +
			p.WeightVolume*volRank

		scores = append(scores, &domain.Score{
			Code:       s.Code,
			Value:      value,
			OpenGain:   openGain,
			ChangeRate: change,
			Proximity:  proximity,
			VolumeRank: volRank,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].Code < scores[j].Code
	})

	return scores
}

// filter drops snapshots that fail the liquidity/price-move filters, carry
// invalid data, or belong to the hedge instrument.
func filter(snapshots []*domain.MarketSnapshot, universe map[string]*domain.Instrument, p Params) []*domain.MarketSnapshot {
	var out []*domain.MarketSnapshot
	for _, s := range snapshots {
		if s == nil || !s.Valid() {
			continue
		}
		inst, ok := universe[s.Code]
		if !ok || !inst.Tradable || inst.Hedge {
			continue
		}
		if s.Last < p.MinPrice {
			continue
		}
		if s.Volume < p.MinVolume {
			continue
		}
		if s.ChangeRate < p.MinChangeRate || s.ChangeRate > p.MaxChangeRate {
			continue
		}
		out = append(out, s)
	}
	return out
}

// volumePercentiles ranks candidates by cumulative volume (ties by code) and
// maps each code to its percentile in [0,1]; the largest volume gets 1.
func volumePercentiles(candidates []*domain.MarketSnapshot) map[string]float64 {
	ranked := make([]*domain.MarketSnapshot, len(candidates))
	copy(ranked, candidates)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Volume != ranked[j].Volume {
			return ranked[i].Volume < ranked[j].Volume
		}
		return ranked[i].Code < ranked[j].Code
	})

	out := make(map[string]float64, len(ranked))
	if len(ranked) == 1 {
		out[ranked[0].Code] = 1
		return out
	}
	for i, s := range ranked {
		out[s.Code] = float64(i) / float64(len(ranked)-1)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
