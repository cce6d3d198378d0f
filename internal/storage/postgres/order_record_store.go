package postgres

import (
	"context"
	"fmt"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// OrderRecordStore implements storage.OrderRecordStore using PostgreSQL.
type OrderRecordStore struct {
	pool *Pool
}

// NewOrderRecordStore creates a new OrderRecordStore.
func NewOrderRecordStore(pool *Pool) *OrderRecordStore {
	return &OrderRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderRecordStore = (*OrderRecordStore)(nil)

// Insert adds a new order record. Returns ErrDuplicateKey if key exists.
func (s *OrderRecordStore) Insert(ctx context.Context, r *domain.OrderRecord) error {
	if r == nil || r.Key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO order_records (
			key, trade_date, cycle_seq, code, side, quantity, reason,
			outcome, filled_qty, fill_price, broker_order, message, timestamp_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Key, r.TradeDate, r.CycleSeq, r.Code, r.Side, r.Quantity, r.Reason,
		r.Outcome, r.FilledQty, r.FillPrice, r.BrokerOrder, r.Message, r.TimestampMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order record: %w", err)
	}
	return nil
}

// GetByDate retrieves all records for a trading date, ordered by
// (cycle_seq ASC, code ASC, side ASC).
func (s *OrderRecordStore) GetByDate(ctx context.Context, tradeDate string) ([]*domain.OrderRecord, error) {
	query := `
		SELECT
			key, trade_date, cycle_seq, code, side, quantity, reason,
			outcome, filled_qty, fill_price, broker_order, message, timestamp_ms
		FROM order_records
		WHERE trade_date = $1
		ORDER BY cycle_seq ASC, code ASC, side ASC
	`

	rows, err := s.pool.Query(ctx, query, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("get order records by date: %w", err)
	}
	defer rows.Close()

	var records []*domain.OrderRecord
	for rows.Next() {
		var r domain.OrderRecord
		err := rows.Scan(
			&r.Key, &r.TradeDate, &r.CycleSeq, &r.Code, &r.Side, &r.Quantity, &r.Reason,
			&r.Outcome, &r.FilledQty, &r.FillPrice, &r.BrokerOrder, &r.Message, &r.TimestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order record row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order record rows: %w", err)
	}

	return records, nil
}
