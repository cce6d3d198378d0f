package domain

// Verdict is the day risk governor's classification of the trading day.
type Verdict string

// Verdict constants, in severity order.
const (
	VerdictContinue      Verdict = "CONTINUE"
	VerdictHardStop      Verdict = "HARD_STOP"      // realized ratio <= max-loss threshold
	VerdictTargetReached Verdict = "TARGET_REACHED" // realized ratio >= target threshold
	VerdictSoftCut       Verdict = "SOFT_CUT"       // realized ratio <= secondary cut threshold
)

// DayAccount is the single per-day risk ledger. It is an explicit value
// passed into and returned from each cycle, never ambient state, so
// multiple trading days replay in sequence without cross-contamination.
// Halt flags are monotonic within a day: once set they stay set until
// day rollover.
type DayAccount struct {
	TradeDate      string  // KST trading date, YYYYMMDD
	StartingEquity float64 // equity at day open (KRW)

	RealizedGrossPnL float64 // sum of gross P&L over closed trades
	RealizedNetPnL   float64 // gross minus fees, taxes and slippage
	FeesPaid         float64 // commissions + sell tax/slippage accumulated
	UnrealizedNetPnL float64 // mark-to-market estimate, refreshed per cycle

	TargetReached   bool // monotonic
	HardStopTripped bool // monotonic
	SoftCutTripped  bool // monotonic
	EODLiquidated   bool // monotonic
	EntryLock       bool // blocks all new entries for the rest of the day

	PositionsOpened int // confirmed buy fills today
	TradesClosed    int // confirmed sell fills today
	CycleCount      int // cycles evaluated today
}

// RealizedRatio returns realized net P&L as a fraction of starting equity.
func (d *DayAccount) RealizedRatio() float64 {
	if d.StartingEquity <= 0 {
		return 0
	}
	return d.RealizedNetPnL / d.StartingEquity
}

// TotalRatio returns (realized + unrealized) net P&L over starting equity.
// Used by the optional unrealized-inclusive soft cut.
func (d *DayAccount) TotalRatio() float64 {
	if d.StartingEquity <= 0 {
		return 0
	}
	return (d.RealizedNetPnL + d.UnrealizedNetPnL) / d.StartingEquity
}

// Halted reports whether any day-level halt condition has fired.
func (d *DayAccount) Halted() bool {
	return d.TargetReached || d.HardStopTripped || d.SoftCutTripped || d.EODLiquidated
}

// HaltCondition names the first halt flag set, or empty when none fired.
// Order matches verdict severity: hard stop, then target, then soft cut,
// then EOD.
func (d *DayAccount) HaltCondition() string {
	switch {
	case d.HardStopTripped:
		return string(VerdictHardStop)
	case d.TargetReached:
		return string(VerdictTargetReached)
	case d.SoftCutTripped:
		return string(VerdictSoftCut)
	case d.EODLiquidated:
		return "EOD_LIQUIDATION"
	default:
		return ""
	}
}
