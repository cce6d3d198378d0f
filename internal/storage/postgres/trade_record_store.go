package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordInsert = `
	INSERT INTO trade_records (
		trade_id, trade_date, code, hedge,
		entry_time_ms, entry_price, exit_time_ms, exit_price, quantity,
		gross_pnl, fees, net_pnl, exit_reason
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		$10, $11, $12, $13
	)
`

const tradeRecordColumns = `
	trade_id, trade_date, code, hedge,
	entry_time_ms, entry_price, exit_time_ms, exit_price, quantity,
	gross_pnl, fees, net_pnl, exit_reason
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, tradeRecordInsert,
		t.TradeID, t.TradeDate, t.Code, t.Hedge,
		t.EntryTimeMs, t.EntryPrice, t.ExitTimeMs, t.ExitPrice, t.Quantity,
		t.GrossPnL, t.Fees, t.NetPnL, t.ExitReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, tradeRecordInsert,
			t.TradeID, t.TradeDate, t.Code, t.Hedge,
			t.EntryTimeMs, t.EntryPrice, t.ExitTimeMs, t.ExitPrice, t.Quantity,
			t.GrossPnL, t.Fees, t.NetPnL, t.ExitReason,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByDate retrieves all trades for a trading date, ordered by
// (exit_time_ms ASC, trade_id ASC).
func (s *TradeRecordStore) GetByDate(ctx context.Context, tradeDate string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE trade_date = $1
		ORDER BY exit_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("get trade records by date: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetByDateRange retrieves trades within [from, to] (inclusive), ordered by
// (exit_time_ms ASC, trade_id ASC).
func (s *TradeRecordStore) GetByDateRange(ctx context.Context, from, to string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY exit_time_ms ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("get trade records by date range: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord

	err := row.Scan(
		&t.TradeID, &t.TradeDate, &t.Code, &t.Hedge,
		&t.EntryTimeMs, &t.EntryPrice, &t.ExitTimeMs, &t.ExitPrice, &t.Quantity,
		&t.GrossPnL, &t.Fees, &t.NetPnL, &t.ExitReason,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
