package storage

import (
	"context"

	"krx-scalp-lab/internal/domain"
)

// DailyBarStore provides access to daily_bars storage.
type DailyBarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (code, trade_date).
	InsertBulk(ctx context.Context, bars []*domain.DailyBar) error

	// GetByDate retrieves all bars for a trading date, ordered by code ASC.
	GetByDate(ctx context.Context, tradeDate string) ([]*domain.DailyBar, error)

	// GetByCode retrieves bars for an instrument within [from, to] (inclusive),
	// ordered by trade_date ASC.
	GetByCode(ctx context.Context, code, from, to string) ([]*domain.DailyBar, error)

	// GetDates retrieves the distinct trading dates with bars in [from, to],
	// ordered ascending.
	GetDates(ctx context.Context, from, to string) ([]string, error)
}

// SnapshotLogStore provides access to the recorded snapshot log.
type SnapshotLogStore interface {
	// Append adds snapshot rows; duplicates are not checked (append-only log).
	Append(ctx context.Context, rows []*domain.RecordedSnapshot) error

	// GetByDate retrieves all rows for a trading date, ordered by
	// (timestamp_ms ASC, code ASC).
	GetByDate(ctx context.Context, tradeDate string) ([]*domain.RecordedSnapshot, error)
}

// OrderRecordStore provides access to order_records storage.
type OrderRecordStore interface {
	// Insert adds a new order record. Returns ErrDuplicateKey if key exists.
	Insert(ctx context.Context, r *domain.OrderRecord) error

	// GetByDate retrieves all records for a trading date, ordered by
	// (cycle_seq ASC, code ASC, side ASC).
	GetByDate(ctx context.Context, tradeDate string) ([]*domain.OrderRecord, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByDate retrieves all trades for a trading date, ordered by
	// (exit_time_ms ASC, trade_id ASC).
	GetByDate(ctx context.Context, tradeDate string) ([]*domain.TradeRecord, error)

	// GetByDateRange retrieves trades within [from, to] (inclusive), ordered by
	// (exit_time_ms ASC, trade_id ASC).
	GetByDateRange(ctx context.Context, from, to string) ([]*domain.TradeRecord, error)
}

// DaySummaryStore provides access to day_summaries storage.
type DaySummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if trade_date exists.
	Insert(ctx context.Context, s *domain.DaySummary) error

	// GetByDate retrieves the summary for a trading date. Returns ErrNotFound if not exists.
	GetByDate(ctx context.Context, tradeDate string) (*domain.DaySummary, error)

	// GetByDateRange retrieves summaries within [from, to] (inclusive), ordered by trade_date ASC.
	GetByDateRange(ctx context.Context, from, to string) ([]*domain.DaySummary, error)

	// GetLatest retrieves the most recent summary. Returns ErrNotFound when empty.
	GetLatest(ctx context.Context) (*domain.DaySummary, error)
}
