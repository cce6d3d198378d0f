package marketdata

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"krx-scalp-lab/internal/domain"
)

// QuoteSource provides current quotes for a set of instruments. Implemented
// by the REST client and by the quote streamer's cache.
type QuoteSource interface {
	GetQuotes(ctx context.Context, codes []string) ([]*domain.MarketSnapshot, error)
}

// IndexSource provides the current index level.
type IndexSource interface {
	GetIndexLevel(ctx context.Context, indexCode string) (float64, error)
}

// Poller assembles one snapshot batch per engine tick. Malformed quotes are
// dropped so a single bad instrument never stalls the cycle.
type Poller struct {
	quotes    QuoteSource
	index     IndexSource
	tracker   *IndexTracker
	indexCode string
	loc       *time.Location
	logger    *log.Logger
}

// NewPoller creates a poller over the given sources.
func NewPoller(quotes QuoteSource, index IndexSource, tracker *IndexTracker, indexCode string, logger *log.Logger) (*Poller, error) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return nil, fmt.Errorf("failed to load KST location: %w", err)
	}
	return &Poller{
		quotes:    quotes,
		index:     index,
		tracker:   tracker,
		indexCode: indexCode,
		loc:       loc,
	}, nil
}

// Collect fetches quotes for the given instruments plus the index level and
// assembles them into a batch stamped with the current KST time. Snapshots
// are ordered by instrument code so the decision sequence does not depend on
// response order.
func (p *Poller) Collect(ctx context.Context, codes []string) (*domain.SnapshotBatch, error) {
	now := time.Now().In(p.loc)
	ts := now.UnixMilli()

	quotes, err := p.quotes.GetQuotes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to poll quotes: %w", err)
	}

	snaps := make([]*domain.MarketSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if q == nil || !q.Valid() {
			if p.logger != nil && q != nil {
				p.logger.Printf("dropping malformed quote for %s", q.Code)
			}
			continue
		}
		q.TimestampMs = ts
		snaps = append(snaps, q)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Code < snaps[j].Code })

	level, err := p.index.GetIndexLevel(ctx, p.indexCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index level: %w", err)
	}

	return &domain.SnapshotBatch{
		TradeDate:   now.Format("20060102"),
		TimestampMs: ts,
		Index:       p.tracker.Observe(level, ts),
		Snapshots:   snaps,
	}, nil
}
