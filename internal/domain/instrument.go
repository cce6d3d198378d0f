package domain

// Instrument represents a tradable KRX equity or ETF.
// Reference data is immutable within a trading day.
type Instrument struct {
	Code     string // 6-digit KRX issue code, e.g. "005930"
	Name     string // human-readable issue name
	Tradable bool   // false excludes the instrument from ranking and entries
	Hedge    bool   // true marks the designated inverse-ETF hedge instrument
}
