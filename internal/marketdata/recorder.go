package marketdata

import (
	"context"
	"fmt"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

// Recorder appends every assembled batch to the snapshot log so a live
// session can be replayed later. Index rows carry the level in Last and the
// MA20 in Open.
type Recorder struct {
	store storage.SnapshotLogStore
}

// NewRecorder creates a recorder over the given log store.
func NewRecorder(store storage.SnapshotLogStore) *Recorder {
	return &Recorder{store: store}
}

// Record writes one batch as log rows, index record first.
func (r *Recorder) Record(ctx context.Context, batch *domain.SnapshotBatch) error {
	if batch == nil {
		return fmt.Errorf("nil snapshot batch")
	}

	rows := make([]*domain.RecordedSnapshot, 0, len(batch.Snapshots)+1)
	if batch.Index != nil {
		rows = append(rows, &domain.RecordedSnapshot{
			TradeDate:   batch.TradeDate,
			TimestampMs: batch.TimestampMs,
			Code:        domain.IndexRecordCode,
			Open:        batch.Index.MA20,
			Last:        batch.Index.Level,
		})
	}
	for _, snap := range batch.Snapshots {
		rows = append(rows, &domain.RecordedSnapshot{
			TradeDate:   batch.TradeDate,
			TimestampMs: batch.TimestampMs,
			Code:        snap.Code,
			Open:        snap.Open,
			Last:        snap.Last,
			High:        snap.High,
			Low:         snap.Low,
			Volume:      snap.Volume,
			ChangeRate:  snap.ChangeRate,
		})
	}
	return r.store.Append(ctx, rows)
}
