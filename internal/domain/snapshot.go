package domain

// MarketSnapshot holds per-instrument quote fields at a point in time.
// One record per tradable instrument per cycle; consumed read-only.
type MarketSnapshot struct {
	Code        string  // instrument code
	Name        string  // instrument name (may be empty in backtest)
	Open        float64 // day open price (KRW)
	Last        float64 // last traded price (KRW)
	High        float64 // day high price (KRW)
	Low         float64 // day low price (KRW)
	Volume      int64   // cumulative traded shares
	ChangeRate  float64 // exchange-reported change vs previous close, percent
	TimestampMs int64   // Unix timestamp in milliseconds
}

// Valid reports whether the snapshot carries usable price data.
// Invalid snapshots are data errors: the instrument is skipped for the cycle.
func (s *MarketSnapshot) Valid() bool {
	return s != nil && s.Code != "" && s.Open > 0 && s.Last > 0 && s.High > 0
}

// IndexSnapshot carries the broad-market index level and its externally
// computed 20-period moving average for the regime filter.
type IndexSnapshot struct {
	Level       float64 // current index level
	MA20        float64 // 20-period moving average of daily closes
	TimestampMs int64   // Unix timestamp in milliseconds
}

// SnapshotBatch is one cycle's worth of market data: the index record plus
// one snapshot per universe instrument, all observed at the same tick.
type SnapshotBatch struct {
	TradeDate   string // KST trading date, YYYYMMDD
	TimestampMs int64  // cycle timestamp in milliseconds
	Index       *IndexSnapshot
	Snapshots   []*MarketSnapshot
}
