package domain

// AlertKind identifies the class of an alert event for de-duplication.
type AlertKind string

// Alert kind constants.
const (
	AlertTargetReached  AlertKind = "target_reached"
	AlertHardStop       AlertKind = "hard_stop"
	AlertSoftCut        AlertKind = "soft_cut"
	AlertEODLiquidation AlertKind = "eod_liquidation"
	AlertSellFailed     AlertKind = "sell_failed"
	AlertOrderStuck     AlertKind = "order_stuck"
)

// AlertEvent is a structured alert raised by the engine for external
// delivery. Events are ephemeral; only the last-emitted timestamp per
// kind survives, for de-duplication.
type AlertEvent struct {
	Kind        AlertKind // event class
	TimestampMs int64     // cycle timestamp in milliseconds
	Payload     string    // human-readable detail
}
