// Package marketdata assembles live snapshot batches from the brokerage
// quote APIs and the real-time quote stream.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"krx-scalp-lab/internal/domain"
)

// maSeedSessions is how many prior daily closes the 20-period MA needs
// before the live level completes the window.
const maSeedSessions = 19

// HistorySource provides daily index closes for seeding the tracker.
type HistorySource interface {
	GetIndexCloses(ctx context.Context, indexCode, from, to string) ([]float64, error)
}

// IndexTracker maintains the rolling 20-period index MA: 19 stored daily
// closes plus the live level. Until fully seeded it reports MA20 = 0, which
// the regime filter treats as "no MA, use breadth".
type IndexTracker struct {
	mu     sync.Mutex
	closes []float64
}

// NewIndexTracker creates an unseeded tracker.
func NewIndexTracker() *IndexTracker {
	return &IndexTracker{}
}

// Seed loads the most recent daily closes strictly before now's date and
// keeps the last 19.
func (t *IndexTracker) Seed(ctx context.Context, src HistorySource, indexCode string, now time.Time) error {
	from := now.AddDate(0, 0, -60).Format("20060102")
	to := now.AddDate(0, 0, -1).Format("20060102")

	closes, err := src.GetIndexCloses(ctx, indexCode, from, to)
	if err != nil {
		return fmt.Errorf("failed to seed index MA: %w", err)
	}
	if len(closes) > maSeedSessions {
		closes = closes[len(closes)-maSeedSessions:]
	}

	t.mu.Lock()
	t.closes = append(t.closes[:0], closes...)
	t.mu.Unlock()
	return nil
}

// Observe combines the live level with the seeded closes into an index
// snapshot. An under-seeded tracker reports MA20 = 0.
func (t *IndexTracker) Observe(level float64, timestampMs int64) *domain.IndexSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &domain.IndexSnapshot{Level: level, TimestampMs: timestampMs}
	if len(t.closes) < maSeedSessions || level <= 0 {
		return snap
	}

	sum := level
	for _, c := range t.closes {
		sum += c
	}
	snap.MA20 = sum / float64(len(t.closes)+1)
	return snap
}

// Seeded reports whether the tracker holds a full MA window.
func (t *IndexTracker) Seeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.closes) >= maSeedSessions
}
