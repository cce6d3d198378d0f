package domain

// PositionState is the lifecycle state of a position record.
// Flat has no record: a Position exists only between entry intent and
// confirmed exit fill.
type PositionState string

// Position state constants.
const (
	PositionEntering PositionState = "ENTERING" // buy intent emitted, fill unconfirmed
	PositionOpen     PositionState = "OPEN"     // buy confirmed, exit not yet triggered
	PositionExiting  PositionState = "EXITING"  // sell intent emitted, fill unconfirmed
	PositionClosed   PositionState = "CLOSED"   // sell confirmed; terminal
)

// ExitReason identifies why a position left the Open state.
type ExitReason string

// Exit reason codes, ranked. ExitPriority defines the order.
const (
	ExitReasonDayHalt        ExitReason = "DAY_HALT"         // governor hard stop / soft cut / target
	ExitReasonStopLoss       ExitReason = "STOP_LOSS"        // last <= fixed stop price
	ExitReasonTrailingStop   ExitReason = "TRAILING_STOP"    // last <= high-water mark * (1 - trail)
	ExitReasonTakeProfit     ExitReason = "TAKE_PROFIT"      // last >= entry * (1 + take profit)
	ExitReasonHedgeTimeLimit ExitReason = "HEDGE_TIME_LIMIT" // hedge held past max hold
	ExitReasonHedgeRebound   ExitReason = "HEDGE_REBOUND"    // regime back to bullish while hedged
	ExitReasonEndOfDay       ExitReason = "END_OF_DAY"       // market-close liquidation
)

// exitRank orders exit reasons from most to least urgent. When several
// conditions hold in the same cycle the lowest rank wins; a day-level
// liquidation reason always overrides an individual-position reason.
var exitRank = map[ExitReason]int{
	ExitReasonDayHalt:        0,
	ExitReasonStopLoss:       1,
	ExitReasonTrailingStop:   2,
	ExitReasonTakeProfit:     3,
	ExitReasonHedgeTimeLimit: 4,
	ExitReasonHedgeRebound:   5,
	ExitReasonEndOfDay:       6,
}

// ExitPriority returns the rank of an exit reason; lower is more urgent.
// Unknown reasons rank last.
func ExitPriority(r ExitReason) int {
	if rank, ok := exitRank[r]; ok {
		return rank
	}
	return len(exitRank)
}

// Position is one open exposure in a single instrument. At most one
// non-terminal Position exists per instrument at any time. Created on a
// buy intent, destroyed only via a confirmed sell OrderResult.
type Position struct {
	Code           string        // instrument code
	Hedge          bool          // true when the position is the inverse-ETF hedge
	State          PositionState // current lifecycle state
	EntryPrice     float64       // confirmed buy fill price (KRW)
	EntryTimeMs    int64         // confirmed buy fill timestamp (ms)
	Quantity       int64         // shares held
	InvestedAmount float64       // EntryPrice * Quantity at fill
	StopPrice      float64       // fixed stop; set once at fill, never moves
	HighWaterMark  float64       // highest last price seen since entry
	ExitReason     ExitReason    // chosen exit reason; preserved across sell retries

	// UnconfirmedCycles counts consecutive cycles the pending order stayed
	// partial/unknown; drives the stuck-order escalation alert.
	UnconfirmedCycles int
}

// UnrealizedGross returns the mark-to-market gross P&L at the given price.
func (p *Position) UnrealizedGross(last float64) float64 {
	return (last - p.EntryPrice) * float64(p.Quantity)
}
