// Package risk owns per-day and per-position risk control: the day risk
// governor and the position risk state machine.
package risk

import "krx-scalp-lab/internal/domain"

// GovernorParams are the day-level halt thresholds, in percent of starting
// equity.
type GovernorParams struct {
	TargetPct  float64 // daily profit target (positive)
	MaxLossPct float64 // primary loss limit (negative)
	SoftCutPct float64 // secondary loss cut between max-loss and zero (negative)

	// SoftCutIncludesUnrealized switches the soft-cut comparison to
	// (realized + unrealized) / starting equity. Off by default.
	SoftCutIncludesUnrealized bool
}

// DefaultGovernorParams returns the production defaults.
func DefaultGovernorParams() GovernorParams {
	return GovernorParams{
		TargetPct:  1.0,
		MaxLossPct: -3.0,
		SoftCutPct: -2.0,
	}
}

// Governor enforces the day-level halts. Flags on the DayAccount are
// monotonic: once a halt fires, Evaluate keeps returning it for the rest of
// the day regardless of later P&L.
type Governor struct {
	params GovernorParams
}

// NewGovernor creates a day risk governor.
func NewGovernor(params GovernorParams) *Governor {
	return &Governor{params: params}
}

// Evaluate classifies the day from the realized P&L ratio and sets the
// corresponding halt flag plus the entry lock. Comparisons are inclusive at
// every threshold. Severity order: hard stop, then target, then soft cut.
func (g *Governor) Evaluate(day *domain.DayAccount) domain.Verdict {
	// Sticky flags from earlier cycles.
	switch {
	case day.HardStopTripped:
		return domain.VerdictHardStop
	case day.TargetReached:
		return domain.VerdictTargetReached
	case day.SoftCutTripped:
		return domain.VerdictSoftCut
	}

	ratioPct := day.RealizedRatio() * 100

	softRatioPct := ratioPct
	if g.params.SoftCutIncludesUnrealized {
		softRatioPct = day.TotalRatio() * 100
	}

	switch {
	case ratioPct <= g.params.MaxLossPct:
		day.HardStopTripped = true
		day.EntryLock = true
		return domain.VerdictHardStop
	case ratioPct >= g.params.TargetPct:
		day.TargetReached = true
		day.EntryLock = true
		return domain.VerdictTargetReached
	case softRatioPct <= g.params.SoftCutPct:
		day.SoftCutTripped = true
		day.EntryLock = true
		return domain.VerdictSoftCut
	default:
		return domain.VerdictContinue
	}
}
