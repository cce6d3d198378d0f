package domain

// DaySummary is the end-of-day record persisted once per trading day,
// consumed by cmd/report and cmd/server. Corresponds to the
// day_summaries table.
type DaySummary struct {
	TradeDate        string  // KST trading date, YYYYMMDD
	StartingEquity   float64 // equity at day open (KRW)
	RealizedGrossPnL float64 // gross realized P&L
	RealizedNetPnL   float64 // net realized P&L
	FeesPaid         float64 // commissions + taxes/slippage
	HaltCondition    string  // HARD_STOP | TARGET_REACHED | SOFT_CUT | EOD_LIQUIDATION | ""
	TradesClosed     int     // round trips completed
	WinCount         int     // round trips with positive net P&L
	PositionsOpened  int     // confirmed buy fills
	CycleCount       int     // cycles evaluated
}

// DecisionLog is the in-memory decision trace of one driven run: every
// order intent in emission order plus the final day account. Two runs
// over the same snapshot sequence must produce equal decision logs;
// the verifier checks exactly that.
type DecisionLog struct {
	Intents  []*OrderIntent
	FinalDay DayAccount
}
