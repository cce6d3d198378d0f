package domain

// DailyBar is one instrument's daily OHLCV record. Ingested from the
// brokerage daily-price API; backtest input. Corresponds to the
// daily_bars table in ClickHouse.
type DailyBar struct {
	Code      string  // instrument code
	TradeDate string  // KST trading date, YYYYMMDD
	Open      float64 // day open (KRW)
	High      float64 // day high (KRW)
	Low       float64 // day low (KRW)
	Close     float64 // day close (KRW)
	PrevClose float64 // previous session close; 0 when unknown
	Volume    int64   // total traded shares
}

// RecordedSnapshot is one snapshot-log row written during live runs and
// replayed by cmd/replay. Index rows carry the index level in Last and
// the MA20 in Open, with Code set to IndexRecordCode.
type RecordedSnapshot struct {
	TradeDate   string  // YYYYMMDD
	TimestampMs int64   // observation timestamp (ms)
	Code        string  // instrument code, or IndexRecordCode
	Open        float64 // day open, or index MA20 for index rows
	Last        float64 // last price, or index level for index rows
	High        float64 // day high (0 for index rows)
	Low         float64 // day low (0 for index rows)
	Volume      int64   // cumulative volume (0 for index rows)
	ChangeRate  float64 // change vs previous close, percent
}

// IndexRecordCode marks index-level rows in the snapshot log.
const IndexRecordCode = "INDEX"
