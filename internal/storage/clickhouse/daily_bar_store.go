package clickhouse

import (
	"context"
	"fmt"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// DailyBarStore implements storage.DailyBarStore using ClickHouse.
type DailyBarStore struct {
	conn *Conn
}

// NewDailyBarStore creates a new DailyBarStore.
func NewDailyBarStore(conn *Conn) *DailyBarStore {
	return &DailyBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyBarStore = (*DailyBarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (code, trade_date).
func (s *DailyBarStore) InsertBulk(ctx context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		code      string
		tradeDate string
	}
	seen := make(map[key]struct{})
	for _, b := range bars {
		if b == nil || b.Code == "" || b.TradeDate == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Code, b.TradeDate}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Code, b.TradeDate)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (
			code, trade_date, open, high, low, close, prev_close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Code, b.TradeDate, b.Open, b.High, b.Low, b.Close, b.PrevClose,
			uint64(b.Volume),
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

// GetByDate retrieves all bars for a trading date, ordered by code ASC.
func (s *DailyBarStore) GetByDate(ctx context.Context, tradeDate string) ([]*domain.DailyBar, error) {
	query := `
		SELECT code, trade_date, open, high, low, close, prev_close, volume
		FROM daily_bars
		WHERE trade_date = ?
		ORDER BY code ASC
	`

	rows, err := s.conn.Query(ctx, query, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("query bars by date: %w", err)
	}
	defer rows.Close()

	return scanDailyBars(rows)
}

// GetByCode retrieves bars for an instrument within [from, to], ordered by trade_date ASC.
func (s *DailyBarStore) GetByCode(ctx context.Context, code, from, to string) ([]*domain.DailyBar, error) {
	query := `
		SELECT code, trade_date, open, high, low, close, prev_close, volume
		FROM daily_bars
		WHERE code = ? AND trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC
	`

	rows, err := s.conn.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars by code: %w", err)
	}
	defer rows.Close()

	return scanDailyBars(rows)
}

// GetDates retrieves distinct trading dates with bars in [from, to], ascending.
func (s *DailyBarStore) GetDates(ctx context.Context, from, to string) ([]string, error) {
	query := `
		SELECT DISTINCT trade_date
		FROM daily_bars
		WHERE trade_date >= ? AND trade_date <= ?
		ORDER BY trade_date ASC
	`

	rows, err := s.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bar dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan bar date row: %w", err)
		}
		dates = append(dates, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar date rows: %w", err)
	}

	return dates, nil
}

// exists checks if a bar with the given key exists.
func (s *DailyBarStore) exists(ctx context.Context, code, tradeDate string) (bool, error) {
	query := `
		SELECT count(*) FROM daily_bars
		WHERE code = ? AND trade_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, code, tradeDate).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanDailyBars scans multiple rows.
func scanDailyBars(rows chRows) ([]*domain.DailyBar, error) {
	var bars []*domain.DailyBar

	for rows.Next() {
		var b domain.DailyBar
		var volume uint64

		err := rows.Scan(
			&b.Code, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close, &b.PrevClose,
			&volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily bar row: %w", err)
		}

		b.Volume = int64(volume)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bar rows: %w", err)
	}

	return bars, nil
}
