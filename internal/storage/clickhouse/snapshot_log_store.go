package clickhouse

import (
	"context"
	"fmt"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// SnapshotLogStore implements storage.SnapshotLogStore using ClickHouse.
// The log is append-only; duplicates are not checked.
type SnapshotLogStore struct {
	conn *Conn
}

// NewSnapshotLogStore creates a new SnapshotLogStore.
func NewSnapshotLogStore(conn *Conn) *SnapshotLogStore {
	return &SnapshotLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotLogStore = (*SnapshotLogStore)(nil)

// Append adds snapshot rows.
func (s *SnapshotLogStore) Append(ctx context.Context, rows []*domain.RecordedSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if r == nil || r.Code == "" || r.TradeDate == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO snapshot_log (
			trade_date, timestamp_ms, code, open, last, high, low, volume, change_rate
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.TradeDate, uint64(r.TimestampMs), r.Code,
			r.Open, r.Last, r.High, r.Low, uint64(r.Volume), r.ChangeRate,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDate retrieves all rows for a trading date, ordered by (timestamp_ms ASC, code ASC).
func (s *SnapshotLogStore) GetByDate(ctx context.Context, tradeDate string) ([]*domain.RecordedSnapshot, error) {
	query := `
		SELECT trade_date, timestamp_ms, code, open, last, high, low, volume, change_rate
		FROM snapshot_log
		WHERE trade_date = ?
		ORDER BY timestamp_ms ASC, code ASC
	`

	rows, err := s.conn.Query(ctx, query, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("query snapshot log by date: %w", err)
	}
	defer rows.Close()

	var result []*domain.RecordedSnapshot
	for rows.Next() {
		var r domain.RecordedSnapshot
		var timestampMs, volume uint64

		err := rows.Scan(
			&r.TradeDate, &timestampMs, &r.Code,
			&r.Open, &r.Last, &r.High, &r.Low, &volume, &r.ChangeRate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot log row: %w", err)
		}

		r.TimestampMs = int64(timestampMs)
		r.Volume = int64(volume)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot log rows: %w", err)
	}

	return result, nil
}
