package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TradeID computes a deterministic trade_id for a closed round trip.
// Formula: SHA256(trade_date|code|entry_time_ms|exit_time_ms)
// Returns hex-encoded hash (64 characters).
func TradeID(tradeDate, code string, entryTimeMs, exitTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		tradeDate,
		code,
		entryTimeMs,
		exitTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
