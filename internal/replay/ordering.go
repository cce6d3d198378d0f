// Package replay reconstructs cycle batches from recorded snapshot logs and
// drives them through the trading engine, reproducing a live session's
// decisions.
package replay

import (
	"sort"

	"krx-scalp-lab/internal/domain"
)

// SortRecords orders rows deterministically: timestamp ascending, the index
// record first within a timestamp, then instrument code ascending.
func SortRecords(rows []*domain.RecordedSnapshot) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		ai, bi := a.Code == domain.IndexRecordCode, b.Code == domain.IndexRecordCode
		if ai != bi {
			return ai
		}
		return a.Code < b.Code
	})
}

// Batches groups sorted rows into one snapshot batch per timestamp. Index
// rows become the batch's IndexSnapshot (level from Last, MA20 from Open);
// the rest become market snapshots in code order.
func Batches(rows []*domain.RecordedSnapshot) []*domain.SnapshotBatch {
	sorted := make([]*domain.RecordedSnapshot, len(rows))
	copy(sorted, rows)
	SortRecords(sorted)

	var batches []*domain.SnapshotBatch
	var current *domain.SnapshotBatch
	for _, row := range sorted {
		if current == nil || current.TimestampMs != row.TimestampMs {
			current = &domain.SnapshotBatch{
				TradeDate:   row.TradeDate,
				TimestampMs: row.TimestampMs,
			}
			batches = append(batches, current)
		}

		if row.Code == domain.IndexRecordCode {
			current.Index = &domain.IndexSnapshot{
				Level:       row.Last,
				MA20:        row.Open,
				TimestampMs: row.TimestampMs,
			}
			continue
		}

		current.Snapshots = append(current.Snapshots, &domain.MarketSnapshot{
			Code:        row.Code,
			Open:        row.Open,
			Last:        row.Last,
			High:        row.High,
			Low:         row.Low,
			Volume:      row.Volume,
			ChangeRate:  row.ChangeRate,
			TimestampMs: row.TimestampMs,
		})
	}
	return batches
}
