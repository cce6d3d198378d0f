// Package universe maintains the candidate instrument set: a static
// watchlist, the designated hedge instrument, and an optional volume-leader
// pool refreshed from the broker ranking API.
package universe

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"krx-scalp-lab/internal/domain"
)

// RankingSource supplies the current volume leaders. Implemented by the
// broker client.
type RankingSource interface {
	VolumeLeaders(ctx context.Context, topN int) ([]*domain.Instrument, error)
}

// Universe is the merged candidate set. Reads return copies; pool refreshes
// swap state between cycles, never within one.
type Universe struct {
	mu        sync.RWMutex
	static    map[string]*domain.Instrument
	pool      map[string]*domain.Instrument
	hedgeCode string
}

// New builds a universe from the configured watchlist and hedge code. The
// hedge instrument is always present and flagged.
func New(watchlist []string, hedgeCode string) *Universe {
	static := make(map[string]*domain.Instrument, len(watchlist)+1)
	for _, code := range watchlist {
		if code == hedgeCode {
			continue
		}
		static[code] = &domain.Instrument{Code: code, Tradable: true}
	}
	if hedgeCode != "" {
		static[hedgeCode] = &domain.Instrument{Code: hedgeCode, Tradable: true, Hedge: true}
	}
	return &Universe{
		static:    static,
		pool:      make(map[string]*domain.Instrument),
		hedgeCode: hedgeCode,
	}
}

// HedgeCode returns the designated hedge instrument code.
func (u *Universe) HedgeCode() string {
	return u.hedgeCode
}

// Snapshot returns the merged candidate map. The watchlist wins on overlap
// so manual flags survive pool refreshes.
func (u *Universe) Snapshot() map[string]*domain.Instrument {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]*domain.Instrument, len(u.static)+len(u.pool))
	for code, inst := range u.pool {
		copy := *inst
		out[code] = &copy
	}
	for code, inst := range u.static {
		copy := *inst
		out[code] = &copy
	}
	return out
}

// Codes returns the merged instrument codes, sorted.
func (u *Universe) Codes() []string {
	merged := u.Snapshot()
	codes := make([]string, 0, len(merged))
	for code := range merged {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RefreshPool replaces the volume-leader pool from the ranking source. The
// hedge instrument never enters the pool.
func (u *Universe) RefreshPool(ctx context.Context, source RankingSource, topN int) error {
	if topN <= 0 {
		return nil
	}
	leaders, err := source.VolumeLeaders(ctx, topN)
	if err != nil {
		return fmt.Errorf("failed to fetch volume leaders: %w", err)
	}

	pool := make(map[string]*domain.Instrument, len(leaders))
	for _, inst := range leaders {
		if inst.Code == "" || inst.Code == u.hedgeCode {
			continue
		}
		pool[inst.Code] = &domain.Instrument{Code: inst.Code, Name: inst.Name, Tradable: true}
	}

	u.mu.Lock()
	u.pool = pool
	u.mu.Unlock()
	return nil
}

// RunPoolRefresher refreshes the pool on the given interval until the
// context ends. Refresh failures are logged and retried on the next tick.
func (u *Universe) RunPoolRefresher(ctx context.Context, source RankingSource, topN int, interval time.Duration, logger *log.Logger) {
	if topN <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := u.RefreshPool(ctx, source, topN); err != nil && logger != nil {
				logger.Printf("pool refresh failed: %v", err)
			}
		}
	}
}
