package memory

import (
	"context"
	"sort"
	"sync"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// DaySummaryStore is an in-memory implementation of storage.DaySummaryStore.
type DaySummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DaySummary // keyed by trade_date
}

// NewDaySummaryStore creates a new in-memory day summary store.
func NewDaySummaryStore() *DaySummaryStore {
	return &DaySummaryStore{
		data: make(map[string]*domain.DaySummary),
	}
}

// Insert adds a new summary. Returns ErrDuplicateKey if trade_date exists.
func (s *DaySummaryStore) Insert(_ context.Context, d *domain.DaySummary) error {
	if d == nil || d.TradeDate == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.TradeDate]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *d
	s.data[d.TradeDate] = &copy
	return nil
}

// GetByDate retrieves the summary for a trading date. Returns ErrNotFound if not exists.
func (s *DaySummaryStore) GetByDate(_ context.Context, tradeDate string) (*domain.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[tradeDate]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *d
	return &copy, nil
}

// GetByDateRange retrieves summaries within [from, to] (inclusive), ordered by trade_date ASC.
func (s *DaySummaryStore) GetByDateRange(_ context.Context, from, to string) ([]*domain.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DaySummary
	for _, d := range s.data {
		if d.TradeDate >= from && d.TradeDate <= to {
			copy := *d
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TradeDate < result[j].TradeDate
	})

	return result, nil
}

// GetLatest retrieves the most recent summary. Returns ErrNotFound when empty.
func (s *DaySummaryStore) GetLatest(_ context.Context) (*domain.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.DaySummary
	for _, d := range s.data {
		if latest == nil || d.TradeDate > latest.TradeDate {
			latest = d
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

var _ storage.DaySummaryStore = (*DaySummaryStore)(nil)
