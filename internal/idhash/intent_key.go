package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// IntentKey computes the deterministic idempotency key for an order intent.
// Formula: SHA256(trade_date|cycle_seq|code|side|reason), base58-encoded.
// Base58 keeps the key short enough to double as a broker client order tag.
func IntentKey(tradeDate string, cycleSeq int, code, side, reason string) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		tradeDate,
		cycleSeq,
		code,
		side,
		reason,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
