package risk

import (
	"fmt"
	"sort"
	"time"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/idhash"
	"krx-scalp-lab/internal/regime"
)

// BookParams are the per-position exit rules and entry gates.
type BookParams struct {
	TakeProfitPct float64 // percent over entry
	StopPct       float64 // percent under entry; fixes the stop price at fill
	TrailPct      float64 // percent under the high-water mark

	HedgeTakeProfitPct float64
	HedgeStopPct       float64
	HedgeTrailPct      float64
	HedgeMaxHold       time.Duration

	EntryThreshold    float64
	MaxPositions      int
	MaxHedgePositions int
	CooldownSec       int // re-entry cooldown after a close; 0 disables

	PerInstrumentBudget float64
	TotalBudget         float64

	CommissionRate  float64 // per side
	SellTaxSlippage float64 // sells only
}

// DefaultBookParams returns the production defaults.
func DefaultBookParams() BookParams {
	return BookParams{
		TakeProfitPct:       1.5,
		StopPct:             1.0,
		TrailPct:            0.7,
		HedgeTakeProfitPct:  1.0,
		HedgeStopPct:        0.5,
		HedgeTrailPct:       0.3,
		HedgeMaxHold:        120 * time.Minute,
		EntryThreshold:      0.8,
		MaxPositions:        5,
		MaxHedgePositions:   1,
		CooldownSec:         600,
		PerInstrumentBudget: 2000000,
		TotalBudget:         10000000,
		CommissionRate:      0.00015,
		SellTaxSlippage:     0.002,
	}
}

// EntryDecision is one gated entry the book wants to open this cycle.
type EntryDecision struct {
	Code     string
	Hedge    bool
	Quantity int64
	Price    float64 // reference price at decision time
}

// Book is the position risk state machine. It owns every non-terminal
// Position; at most one exists per instrument. Positions advance to Open or
// Closed only via ApplyResult with a confirmed OrderResult.
type Book struct {
	params    BookParams
	positions map[string]*domain.Position
	closedAt  map[string]int64 // code -> last confirmed close timestamp (ms)
}

// NewBook creates an empty position book.
func NewBook(params BookParams) *Book {
	return &Book{
		params:    params,
		positions: make(map[string]*domain.Position),
		closedAt:  make(map[string]int64),
	}
}

// Positions returns the non-terminal positions ordered by code.
func (b *Book) Positions() []*domain.Position {
	out := make([]*domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		copy := *p
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// OpenCount returns the number of non-terminal long and hedge positions.
func (b *Book) OpenCount() (long, hedge int) {
	for _, p := range b.positions {
		if p.Hedge {
			hedge++
		} else {
			long++
		}
	}
	return long, hedge
}

// MarkToMarket ratchets each open position's high-water mark and returns the
// estimated unrealized net P&L (gross minus the exit-side fees that selling
// at the current price would incur). Positions without a price this cycle
// keep their previous mark.
func (b *Book) MarkToMarket(last map[string]float64) float64 {
	var unrealized float64
	for _, p := range b.positions {
		if p.State != domain.PositionOpen && p.State != domain.PositionExiting {
			continue
		}
		price, ok := last[p.Code]
		if !ok || price <= 0 {
			continue
		}
		if p.State == domain.PositionOpen && price > p.HighWaterMark {
			p.HighWaterMark = price
		}
		notional := price * float64(p.Quantity)
		exitFees := notional * (b.params.CommissionRate + b.params.SellTaxSlippage)
		unrealized += p.UnrealizedGross(price) - exitFees
	}
	return unrealized
}

// EvaluateExits walks every Open position and transitions those with a
// triggered exit condition to Exiting, recording exactly one reason chosen
// by rank. dayHalt forces every Open position out regardless of price; eod
// is the weakest reason and only applies when nothing else triggered.
// Positions already Exiting keep their recorded reason. Returns the codes
// transitioned this cycle, ordered by code.
func (b *Book) EvaluateExits(nowMs int64, last map[string]float64, reg regime.Regime, dayHalt, eod bool) []string {
	var transitioned []string
	for _, p := range b.positions {
		if p.State != domain.PositionOpen {
			continue
		}
		reason, ok := b.exitReason(p, nowMs, last[p.Code], reg, dayHalt, eod)
		if !ok {
			continue
		}
		p.State = domain.PositionExiting
		p.ExitReason = reason
		transitioned = append(transitioned, p.Code)
	}
	sort.Strings(transitioned)
	return transitioned
}

// exitReason gathers every exit condition that holds and returns the most
// urgent one per domain.ExitPriority.
func (b *Book) exitReason(p *domain.Position, nowMs int64, lastPrice float64, reg regime.Regime, dayHalt, eod bool) (domain.ExitReason, bool) {
	if dayHalt {
		return domain.ExitReasonDayHalt, true
	}

	// A reason recorded by an earlier cycle survives a failed sell; the same
	// exit is re-attempted rather than re-evaluated (a day halt still takes
	// precedence above).
	if p.ExitReason != "" {
		return p.ExitReason, true
	}

	tp, trail := b.params.TakeProfitPct, b.params.TrailPct
	if p.Hedge {
		tp, trail = b.params.HedgeTakeProfitPct, b.params.HedgeTrailPct
	}

	var triggered []domain.ExitReason

	if lastPrice > 0 {
		if lastPrice <= p.StopPrice {
			triggered = append(triggered, domain.ExitReasonStopLoss)
		}
		if p.HighWaterMark > p.EntryPrice && lastPrice <= p.HighWaterMark*(1-trail/100) {
			triggered = append(triggered, domain.ExitReasonTrailingStop)
		}
		if lastPrice >= p.EntryPrice*(1+tp/100) {
			triggered = append(triggered, domain.ExitReasonTakeProfit)
		}
	}

	if p.Hedge {
		if b.params.HedgeMaxHold > 0 && nowMs-p.EntryTimeMs >= b.params.HedgeMaxHold.Milliseconds() {
			triggered = append(triggered, domain.ExitReasonHedgeTimeLimit)
		}
		if reg == regime.Bullish {
			triggered = append(triggered, domain.ExitReasonHedgeRebound)
		}
	}

	if eod {
		triggered = append(triggered, domain.ExitReasonEndOfDay)
	}

	if len(triggered) == 0 {
		return "", false
	}

	best := triggered[0]
	for _, r := range triggered[1:] {
		if domain.ExitPriority(r) < domain.ExitPriority(best) {
			best = r
		}
	}
	return best, true
}

// EvaluateEntries applies the entry gates to the cycle's ranking and creates
// Entering positions for the accepted candidates. BULLISH admits ranked long
// entries; BEARISH admits only the designated hedge instrument. No entries
// while the day is locked.
func (b *Book) EvaluateEntries(
	nowMs int64,
	scores []*domain.Score,
	universe map[string]*domain.Instrument,
	last map[string]float64,
	reg regime.Regime,
	day *domain.DayAccount,
	hedgeCode string,
) []EntryDecision {
	if day.EntryLock || day.Halted() {
		return nil
	}

	var decisions []EntryDecision

	if reg == regime.Bullish {
		longCount, _ := b.OpenCount()
		for _, s := range scores {
			if s.Value < b.params.EntryThreshold {
				break // descending order: nothing below passes
			}
			if longCount >= b.params.MaxPositions {
				break
			}
			if !b.admit(s.Code, nowMs) {
				continue
			}
			price := last[s.Code]
			qty := b.quantityFor(price)
			if qty <= 0 {
				continue
			}
			b.create(s.Code, false, qty, price)
			decisions = append(decisions, EntryDecision{Code: s.Code, Quantity: qty, Price: price})
			longCount++
		}
		return decisions
	}

	// BEARISH: hedge entry only.
	if hedgeCode == "" {
		return nil
	}
	if inst, ok := universe[hedgeCode]; !ok || !inst.Tradable {
		return nil
	}
	_, hedgeCount := b.OpenCount()
	if hedgeCount >= b.params.MaxHedgePositions {
		return nil
	}
	if !b.admit(hedgeCode, nowMs) {
		return nil
	}
	price := last[hedgeCode]
	qty := b.quantityFor(price)
	if qty <= 0 {
		return nil
	}
	b.create(hedgeCode, true, qty, price)
	return []EntryDecision{{Code: hedgeCode, Hedge: true, Quantity: qty, Price: price}}
}

// admit checks the per-instrument gates: no existing position, cooldown
// elapsed.
func (b *Book) admit(code string, nowMs int64) bool {
	if _, exists := b.positions[code]; exists {
		return false
	}
	if b.params.CooldownSec > 0 {
		if closed, ok := b.closedAt[code]; ok {
			if nowMs-closed < int64(b.params.CooldownSec)*1000 {
				return false
			}
		}
	}
	return true
}

// quantityFor sizes an entry: floor(min(per-instrument budget, remaining
// total budget) / price).
func (b *Book) quantityFor(price float64) int64 {
	if price <= 0 {
		return 0
	}
	var committed float64
	for _, p := range b.positions {
		committed += p.InvestedAmount
	}
	budget := b.params.PerInstrumentBudget
	if remaining := b.params.TotalBudget - committed; remaining < budget {
		budget = remaining
	}
	return int64(budget / price)
}

func (b *Book) create(code string, hedge bool, qty int64, price float64) {
	b.positions[code] = &domain.Position{
		Code:           code,
		Hedge:          hedge,
		State:          domain.PositionEntering,
		Quantity:       qty,
		InvestedAmount: price * float64(qty),
	}
}

// Intents builds the cycle's OrderIntents from the pending positions: a buy
// per Entering position, a sell per Exiting position. Sells come first so
// liquidations free budget before new money goes out. Ordered by code within
// each side.
func (b *Book) Intents(tradeDate string, cycleSeq int, last map[string]float64) []*domain.OrderIntent {
	var buys, sells []*domain.OrderIntent
	for _, p := range b.positions {
		switch p.State {
		case domain.PositionEntering:
			buys = append(buys, &domain.OrderIntent{
				Key:       idhash.IntentKey(tradeDate, cycleSeq, p.Code, string(domain.SideBuy), ""),
				TradeDate: tradeDate,
				CycleSeq:  cycleSeq,
				Code:      p.Code,
				Side:      domain.SideBuy,
				Quantity:  p.Quantity,
				Price:     last[p.Code],
			})
		case domain.PositionExiting:
			sells = append(sells, &domain.OrderIntent{
				Key:       idhash.IntentKey(tradeDate, cycleSeq, p.Code, string(domain.SideSell), string(p.ExitReason)),
				TradeDate: tradeDate,
				CycleSeq:  cycleSeq,
				Code:      p.Code,
				Side:      domain.SideSell,
				Quantity:  p.Quantity,
				Reason:    p.ExitReason,
				Price:     last[p.Code],
			})
		}
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].Code < buys[j].Code })
	sort.Slice(sells, func(i, j int) bool { return sells[i].Code < sells[j].Code })
	return append(sells, buys...)
}

// ApplyResult advances the position for one OrderResult and updates the day
// ledger. Confirmed buys open the position and charge the buy commission;
// confirmed sells close it, realize net P&L and produce a TradeRecord.
// Rejected sells put the position back to Open with its exit reason intact
// (sellFailed reports that). Partial/unknown results leave the position
// pending and bump its unconfirmed-cycle counter.
func (b *Book) ApplyResult(day *domain.DayAccount, res *domain.OrderResult, nowMs int64) (trade *domain.TradeRecord, sellFailed bool, err error) {
	p, ok := b.positions[res.Code]
	if !ok {
		return nil, false, fmt.Errorf("order result for unknown position %s", res.Code)
	}

	switch {
	case res.Side == domain.SideBuy && p.State == domain.PositionEntering:
		switch res.Outcome {
		case domain.OutcomeFilled:
			stop := b.params.StopPct
			if p.Hedge {
				stop = b.params.HedgeStopPct
			}
			p.State = domain.PositionOpen
			p.EntryPrice = res.FillPrice
			p.EntryTimeMs = res.TimestampMs
			p.Quantity = res.FilledQty
			p.InvestedAmount = res.FillPrice * float64(res.FilledQty)
			p.StopPrice = res.FillPrice * (1 - stop/100)
			p.HighWaterMark = res.FillPrice
			p.UnconfirmedCycles = 0

			buyFee := p.InvestedAmount * b.params.CommissionRate
			day.FeesPaid += buyFee
			day.RealizedNetPnL -= buyFee
			day.PositionsOpened++
		case domain.OutcomeRejected:
			delete(b.positions, res.Code)
		default:
			p.UnconfirmedCycles++
		}

	case res.Side == domain.SideSell && p.State == domain.PositionExiting:
		switch res.Outcome {
		case domain.OutcomeFilled:
			exitNotional := res.FillPrice * float64(res.FilledQty)
			gross := (res.FillPrice - p.EntryPrice) * float64(res.FilledQty)
			sellFee := exitNotional * b.params.CommissionRate
			sellTax := exitNotional * b.params.SellTaxSlippage
			buyFee := p.InvestedAmount * b.params.CommissionRate

			day.RealizedGrossPnL += gross
			day.RealizedNetPnL += gross - sellFee - sellTax
			day.FeesPaid += sellFee + sellTax
			day.TradesClosed++

			trade = &domain.TradeRecord{
				TradeID:     idhash.TradeID(day.TradeDate, p.Code, p.EntryTimeMs, res.TimestampMs),
				TradeDate:   day.TradeDate,
				Code:        p.Code,
				Hedge:       p.Hedge,
				EntryTimeMs: p.EntryTimeMs,
				EntryPrice:  p.EntryPrice,
				ExitTimeMs:  res.TimestampMs,
				ExitPrice:   res.FillPrice,
				Quantity:    res.FilledQty,
				GrossPnL:    gross,
				Fees:        buyFee + sellFee + sellTax,
				NetPnL:      gross - buyFee - sellFee - sellTax,
				ExitReason:  string(p.ExitReason),
			}

			delete(b.positions, res.Code)
			b.closedAt[res.Code] = nowMs
		case domain.OutcomeRejected:
			// Position stays tracked with quantity unchanged; the exit
			// reason is preserved so the same exit retries next cycle.
			p.State = domain.PositionOpen
			p.UnconfirmedCycles = 0
			sellFailed = true
		default:
			p.UnconfirmedCycles++
		}

	default:
		return nil, false, fmt.Errorf("order result %s/%s does not match position state %s",
			res.Code, res.Side, p.State)
	}

	return trade, sellFailed, nil
}

// StuckPositions returns the codes whose pending order has stayed
// unconfirmed for at least the given number of cycles. 0 disables.
func (b *Book) StuckPositions(threshold int) []string {
	if threshold <= 0 {
		return nil
	}
	var out []string
	for _, p := range b.positions {
		if p.UnconfirmedCycles >= threshold {
			out = append(out, p.Code)
		}
	}
	sort.Strings(out)
	return out
}
