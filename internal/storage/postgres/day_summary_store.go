package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// DaySummaryStore implements storage.DaySummaryStore using PostgreSQL.
type DaySummaryStore struct {
	pool *Pool
}

// NewDaySummaryStore creates a new DaySummaryStore.
func NewDaySummaryStore(pool *Pool) *DaySummaryStore {
	return &DaySummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DaySummaryStore = (*DaySummaryStore)(nil)

const daySummaryColumns = `
	trade_date, starting_equity, realized_gross_pnl, realized_net_pnl, fees_paid,
	halt_condition, trades_closed, win_count, positions_opened, cycle_count
`

// Insert adds a new summary. Returns ErrDuplicateKey if trade_date exists.
func (s *DaySummaryStore) Insert(ctx context.Context, d *domain.DaySummary) error {
	if d == nil || d.TradeDate == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO day_summaries (
			trade_date, starting_equity, realized_gross_pnl, realized_net_pnl, fees_paid,
			halt_condition, trades_closed, win_count, positions_opened, cycle_count
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.pool.Exec(ctx, query,
		d.TradeDate, d.StartingEquity, d.RealizedGrossPnL, d.RealizedNetPnL, d.FeesPaid,
		d.HaltCondition, d.TradesClosed, d.WinCount, d.PositionsOpened, d.CycleCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert day summary: %w", err)
	}
	return nil
}

// GetByDate retrieves the summary for a trading date. Returns ErrNotFound if not exists.
func (s *DaySummaryStore) GetByDate(ctx context.Context, tradeDate string) (*domain.DaySummary, error) {
	query := `SELECT ` + daySummaryColumns + ` FROM day_summaries WHERE trade_date = $1`

	row := s.pool.QueryRow(ctx, query, tradeDate)
	d, err := scanDaySummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get day summary by date: %w", err)
	}
	return d, nil
}

// GetByDateRange retrieves summaries within [from, to] (inclusive), ordered by trade_date ASC.
func (s *DaySummaryStore) GetByDateRange(ctx context.Context, from, to string) ([]*domain.DaySummary, error) {
	query := `
		SELECT ` + daySummaryColumns + `
		FROM day_summaries
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("get day summaries by date range: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.DaySummary
	for rows.Next() {
		d, err := scanDaySummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan day summary row: %w", err)
		}
		summaries = append(summaries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day summary rows: %w", err)
	}

	return summaries, nil
}

// GetLatest retrieves the most recent summary. Returns ErrNotFound when empty.
func (s *DaySummaryStore) GetLatest(ctx context.Context) (*domain.DaySummary, error) {
	query := `SELECT ` + daySummaryColumns + ` FROM day_summaries ORDER BY trade_date DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query)
	d, err := scanDaySummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest day summary: %w", err)
	}
	return d, nil
}

// scanDaySummary scans a single row into a DaySummary.
func scanDaySummary(row pgx.Row) (*domain.DaySummary, error) {
	var d domain.DaySummary

	err := row.Scan(
		&d.TradeDate, &d.StartingEquity, &d.RealizedGrossPnL, &d.RealizedNetPnL, &d.FeesPaid,
		&d.HaltCondition, &d.TradesClosed, &d.WinCount, &d.PositionsOpened, &d.CycleCount,
	)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
