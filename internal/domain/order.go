package domain

// OrderSide is the direction of an order.
type OrderSide string

// Order side constants.
const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderOutcome classifies a brokerage response. Partial and unknown-pending
// are treated conservatively as not-yet-confirmed: the position stays in its
// pending state and the intent is retried next cycle.
type OrderOutcome string

// Order outcome constants.
const (
	OutcomeFilled   OrderOutcome = "filled"
	OutcomeRejected OrderOutcome = "rejected"
	OutcomePartial  OrderOutcome = "partial"
	OutcomeUnknown  OrderOutcome = "unknown-pending"
)

// OrderIntent is a requested action produced by the position state machine.
type OrderIntent struct {
	Key       string     // deterministic idempotency key (idhash.IntentKey)
	TradeDate string     // KST trading date, YYYYMMDD
	CycleSeq  int        // cycle sequence number within the day
	Code      string     // instrument code
	Side      OrderSide  // buy or sell
	Quantity  int64      // shares
	Reason    ExitReason // exit reason for sells; empty for buys
	Price     float64    // reference price at intent time (market orders)
}

// OrderResult is the brokerage outcome for one intent. It is the only
// channel by which a Position advances from a pending state to a
// confirmed one.
type OrderResult struct {
	Key         string       // intent idempotency key
	Code        string       // instrument code
	Side        OrderSide    // buy or sell
	Outcome     OrderOutcome // classified outcome
	FilledQty   int64        // shares filled (0 unless filled/partial)
	FillPrice   float64      // fill price (0 unless filled/partial)
	BrokerOrder string       // brokerage order number, when assigned
	Message     string       // rejection or error detail
	TimestampMs int64        // result timestamp in milliseconds
}

// Confirmed reports whether the result finalizes the intent. Partial and
// unknown-pending results leave the position pending for retry.
func (r *OrderResult) Confirmed() bool {
	return r.Outcome == OutcomeFilled || r.Outcome == OutcomeRejected
}

// OrderRecord is the audit row persisted for every submitted intent.
type OrderRecord struct {
	Key         string  // intent idempotency key
	TradeDate   string  // YYYYMMDD
	CycleSeq    int     // cycle sequence within the day
	Code        string  // instrument code
	Side        string  // buy | sell
	Quantity    int64   // requested shares
	Reason      string  // intent reason code ("" for entries)
	Outcome     string  // classified outcome
	FilledQty   int64   // shares filled
	FillPrice   float64 // fill price
	BrokerOrder string  // brokerage order number
	Message     string  // rejection or error detail
	TimestampMs int64   // result timestamp (ms)
}
