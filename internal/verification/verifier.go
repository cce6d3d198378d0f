// Package verification compares decision logs to prove that two runs over
// the same snapshot sequence made the same decisions.
package verification

import (
	"fmt"
	"math"

	"krx-scalp-lab/internal/domain"
)

// FloatTolerance bounds the allowed difference on monetary fields. KRW
// prices are integral, so any real divergence clears it by orders of
// magnitude.
const FloatTolerance = 1e-9

// FieldDivergence names one mismatched field between two decision logs.
type FieldDivergence struct {
	Where string // "intent[3]" or "final_day"
	Field string
	A, B  string
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s.%s: %s != %s", d.Where, d.Field, d.A, d.B)
}

// Compare reports up to maxReport divergences between two decision logs, in
// encounter order. An empty result means the logs are equal. maxReport <= 0
// reports everything.
func Compare(a, b *domain.DecisionLog, maxReport int) []FieldDivergence {
	var out []FieldDivergence
	report := func(where, field string, av, bv any) bool {
		out = append(out, FieldDivergence{
			Where: where,
			Field: field,
			A:     fmt.Sprintf("%v", av),
			B:     fmt.Sprintf("%v", bv),
		})
		return maxReport > 0 && len(out) >= maxReport
	}

	if len(a.Intents) != len(b.Intents) {
		if report("intents", "len", len(a.Intents), len(b.Intents)) {
			return out
		}
	}

	n := len(a.Intents)
	if len(b.Intents) < n {
		n = len(b.Intents)
	}
	for i := 0; i < n; i++ {
		if full := compareIntent(fmt.Sprintf("intent[%d]", i), a.Intents[i], b.Intents[i], report); full {
			return out
		}
	}

	compareDay("final_day", &a.FinalDay, &b.FinalDay, report)
	if maxReport > 0 && len(out) > maxReport {
		out = out[:maxReport]
	}
	return out
}

func compareIntent(where string, a, b *domain.OrderIntent, report func(string, string, any, any) bool) bool {
	type check struct {
		field  string
		eq     bool
		av, bv any
	}
	for _, c := range []check{
		{"key", a.Key == b.Key, a.Key, b.Key},
		{"trade_date", a.TradeDate == b.TradeDate, a.TradeDate, b.TradeDate},
		{"cycle_seq", a.CycleSeq == b.CycleSeq, a.CycleSeq, b.CycleSeq},
		{"code", a.Code == b.Code, a.Code, b.Code},
		{"side", a.Side == b.Side, a.Side, b.Side},
		{"quantity", a.Quantity == b.Quantity, a.Quantity, b.Quantity},
		{"reason", a.Reason == b.Reason, a.Reason, b.Reason},
		{"price", within(a.Price, b.Price), a.Price, b.Price},
	} {
		if !c.eq {
			if report(where, c.field, c.av, c.bv) {
				return true
			}
		}
	}
	return false
}

func compareDay(where string, a, b *domain.DayAccount, report func(string, string, any, any) bool) {
	type check struct {
		field  string
		eq     bool
		av, bv any
	}
	for _, c := range []check{
		{"trade_date", a.TradeDate == b.TradeDate, a.TradeDate, b.TradeDate},
		{"starting_equity", within(a.StartingEquity, b.StartingEquity), a.StartingEquity, b.StartingEquity},
		{"realized_gross_pnl", within(a.RealizedGrossPnL, b.RealizedGrossPnL), a.RealizedGrossPnL, b.RealizedGrossPnL},
		{"realized_net_pnl", within(a.RealizedNetPnL, b.RealizedNetPnL), a.RealizedNetPnL, b.RealizedNetPnL},
		{"fees_paid", within(a.FeesPaid, b.FeesPaid), a.FeesPaid, b.FeesPaid},
		{"unrealized_net_pnl", within(a.UnrealizedNetPnL, b.UnrealizedNetPnL), a.UnrealizedNetPnL, b.UnrealizedNetPnL},
		{"target_reached", a.TargetReached == b.TargetReached, a.TargetReached, b.TargetReached},
		{"hard_stop_tripped", a.HardStopTripped == b.HardStopTripped, a.HardStopTripped, b.HardStopTripped},
		{"soft_cut_tripped", a.SoftCutTripped == b.SoftCutTripped, a.SoftCutTripped, b.SoftCutTripped},
		{"eod_liquidated", a.EODLiquidated == b.EODLiquidated, a.EODLiquidated, b.EODLiquidated},
		{"entry_lock", a.EntryLock == b.EntryLock, a.EntryLock, b.EntryLock},
		{"positions_opened", a.PositionsOpened == b.PositionsOpened, a.PositionsOpened, b.PositionsOpened},
		{"trades_closed", a.TradesClosed == b.TradesClosed, a.TradesClosed, b.TradesClosed},
		{"cycle_count", a.CycleCount == b.CycleCount, a.CycleCount, b.CycleCount},
	} {
		if !c.eq {
			if report(where, c.field, c.av, c.bv) {
				return
			}
		}
	}
}

func within(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
