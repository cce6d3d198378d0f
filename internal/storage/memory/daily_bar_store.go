package memory

import (
	"context"
	"sort"
	"sync"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

type barKey struct {
	code      string
	tradeDate string
}

// DailyBarStore is an in-memory implementation of storage.DailyBarStore.
type DailyBarStore struct {
	mu   sync.RWMutex
	data map[barKey]*domain.DailyBar
}

// NewDailyBarStore creates a new in-memory daily bar store.
func NewDailyBarStore() *DailyBarStore {
	return &DailyBarStore{
		data: make(map[barKey]*domain.DailyBar),
	}
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate (code, trade_date).
func (s *DailyBarStore) InsertBulk(_ context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[barKey]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Code == "" || b.TradeDate == "" {
			return storage.ErrInvalidInput
		}
		k := barKey{b.Code, b.TradeDate}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		s.data[barKey{b.Code, b.TradeDate}] = &copy
	}

	return nil
}

// GetByDate retrieves all bars for a trading date, ordered by code ASC.
func (s *DailyBarStore) GetByDate(_ context.Context, tradeDate string) ([]*domain.DailyBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyBar
	for k, b := range s.data {
		if k.tradeDate == tradeDate {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})

	return result, nil
}

// GetByCode retrieves bars for an instrument within [from, to], ordered by trade_date ASC.
func (s *DailyBarStore) GetByCode(_ context.Context, code, from, to string) ([]*domain.DailyBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyBar
	for k, b := range s.data {
		if k.code == code && k.tradeDate >= from && k.tradeDate <= to {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TradeDate < result[j].TradeDate
	})

	return result, nil
}

// GetDates retrieves distinct trading dates with bars in [from, to], ascending.
func (s *DailyBarStore) GetDates(_ context.Context, from, to string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		if k.tradeDate >= from && k.tradeDate <= to {
			seen[k.tradeDate] = struct{}{}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return dates, nil
}

var _ storage.DailyBarStore = (*DailyBarStore)(nil)
