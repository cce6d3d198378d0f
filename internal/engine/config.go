package engine

import (
	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/regime"
	"krx-scalp-lab/internal/risk"
	"krx-scalp-lab/internal/signal"
)

// ParamsFrom maps loaded configuration onto driver parameters. All binaries
// that drive cycles go through this one mapping so live, backtest and replay
// cannot drift apart.
func ParamsFrom(cfg *config.Config) (Params, error) {
	cutoffHour, cutoffMinute, err := config.ParseClock(cfg.CutoffTime)
	if err != nil {
		return Params{}, err
	}

	return Params{
		Signal: signal.Params{
			ChangeNorm:      cfg.ChangeNorm,
			WeightChange:    cfg.WeightChange,
			WeightOpenGain:  cfg.WeightOpenGain,
			WeightProximity: cfg.WeightProximity,
			WeightVolume:    cfg.WeightVolume,
			MinPrice:        cfg.MinPrice,
			MinVolume:       cfg.MinVolume,
			MinChangeRate:   cfg.MinChangeRate,
			MaxChangeRate:   cfg.MaxChangeRate,
		},
		Regime: regime.Params{
			BreadthBearThreshold: cfg.BreadthBearThreshold,
		},
		Governor: risk.GovernorParams{
			TargetPct:                 cfg.DailyTargetPct,
			MaxLossPct:                cfg.DailyMaxLossPct,
			SoftCutPct:                cfg.DailySoftCutPct,
			SoftCutIncludesUnrealized: cfg.SoftCutIncludesUnrealized,
		},
		Book: risk.BookParams{
			TakeProfitPct:       cfg.TakeProfitPct,
			StopPct:             cfg.StopPct,
			TrailPct:            cfg.TrailPct,
			HedgeTakeProfitPct:  cfg.HedgeTakeProfitPct,
			HedgeStopPct:        cfg.HedgeStopPct,
			HedgeTrailPct:       cfg.HedgeTrailPct,
			HedgeMaxHold:        cfg.HedgeMaxHold,
			EntryThreshold:      cfg.EntryThreshold,
			MaxPositions:        cfg.MaxPositions,
			MaxHedgePositions:   cfg.MaxHedgePositions,
			CooldownSec:         cfg.CooldownSec,
			PerInstrumentBudget: cfg.PerInstrumentBudget,
			TotalBudget:         cfg.TotalBudget,
			CommissionRate:      cfg.CommissionRate,
			SellTaxSlippage:     cfg.SellTaxSlippage,
		},
		HedgeCode:        cfg.HedgeCode,
		CutoffHour:       cutoffHour,
		CutoffMinute:     cutoffMinute,
		StuckOrderCycles: cfg.StuckOrderCycles,
	}, nil
}
