package domain

// TradeRecord is one closed round trip: confirmed buy fill through
// confirmed sell fill. Corresponds to the trade_records table.
type TradeRecord struct {
	TradeID   string // deterministic hash (idhash.TradeID)
	TradeDate string // KST trading date, YYYYMMDD
	Code      string // instrument code
	Hedge     bool   // hedge-instrument round trip

	EntryTimeMs int64   // buy fill timestamp (ms)
	EntryPrice  float64 // buy fill price (KRW)
	ExitTimeMs  int64   // sell fill timestamp (ms)
	ExitPrice   float64 // sell fill price (KRW)
	Quantity    int64   // shares

	GrossPnL   float64 // (exit - entry) * quantity
	Fees       float64 // buy commission + sell commission + sell tax/slippage
	NetPnL     float64 // gross minus fees
	ExitReason string  // exit reason code
}

// Win reports whether the round trip closed with positive net P&L.
func (t *TradeRecord) Win() bool {
	return t.NetPnL > 0
}
