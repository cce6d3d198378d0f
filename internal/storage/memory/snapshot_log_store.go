package memory

import (
	"context"
	"sort"
	"sync"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// SnapshotLogStore is an in-memory implementation of storage.SnapshotLogStore.
type SnapshotLogStore struct {
	mu   sync.RWMutex
	rows []*domain.RecordedSnapshot
}

// NewSnapshotLogStore creates a new in-memory snapshot log store.
func NewSnapshotLogStore() *SnapshotLogStore {
	return &SnapshotLogStore{}
}

// Append adds snapshot rows; the log is append-only, duplicates are not checked.
func (s *SnapshotLogStore) Append(_ context.Context, rows []*domain.RecordedSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if r == nil || r.Code == "" || r.TradeDate == "" {
			return storage.ErrInvalidInput
		}
		copy := *r
		s.rows = append(s.rows, &copy)
	}

	return nil
}

// GetByDate retrieves all rows for a trading date, ordered by (timestamp_ms ASC, code ASC).
func (s *SnapshotLogStore) GetByDate(_ context.Context, tradeDate string) ([]*domain.RecordedSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RecordedSnapshot
	for _, r := range s.rows {
		if r.TradeDate == tradeDate {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Code < result[j].Code
	})

	return result, nil
}

var _ storage.SnapshotLogStore = (*SnapshotLogStore)(nil)
