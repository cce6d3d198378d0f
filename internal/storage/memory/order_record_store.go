package memory

import (
	"context"
	"sort"
	"sync"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// OrderRecordStore is an in-memory implementation of storage.OrderRecordStore.
type OrderRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OrderRecord // keyed by intent key
}

// NewOrderRecordStore creates a new in-memory order record store.
func NewOrderRecordStore() *OrderRecordStore {
	return &OrderRecordStore{
		data: make(map[string]*domain.OrderRecord),
	}
}

// Insert adds a new order record. Returns ErrDuplicateKey if key exists.
func (s *OrderRecordStore) Insert(_ context.Context, r *domain.OrderRecord) error {
	if r == nil || r.Key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.Key] = &copy
	return nil
}

// GetByDate retrieves all records for a trading date, ordered by
// (cycle_seq ASC, code ASC, side ASC).
func (s *OrderRecordStore) GetByDate(_ context.Context, tradeDate string) ([]*domain.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderRecord
	for _, r := range s.data {
		if r.TradeDate == tradeDate {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CycleSeq != result[j].CycleSeq {
			return result[i].CycleSeq < result[j].CycleSeq
		}
		if result[i].Code != result[j].Code {
			return result[i].Code < result[j].Code
		}
		return result[i].Side < result[j].Side
	})

	return result, nil
}

var _ storage.OrderRecordStore = (*OrderRecordStore)(nil)
