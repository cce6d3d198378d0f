package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/storage"
)

func createTestOrderRecord(key string, cycleSeq int, code, side string) *domain.OrderRecord {
	return &domain.OrderRecord{
		Key:         key,
		TradeDate:   "20260102",
		CycleSeq:    cycleSeq,
		Code:        code,
		Side:        side,
		Quantity:    10,
		Outcome:     "filled",
		FilledQty:   10,
		FillPrice:   71000,
		BrokerOrder: "ORD-1",
		TimestampMs: 1704157200000,
	}
}

func TestOrderRecordStore_InsertAndGetByDate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	records := []*domain.OrderRecord{
		createTestOrderRecord("k3", 2, "005930", "sell"),
		createTestOrderRecord("k1", 1, "005930", "buy"),
		createTestOrderRecord("k2", 1, "000660", "buy"),
	}
	for _, r := range records {
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.GetByDate(ctx, "20260102")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "k2", got[0].Key)
	assert.Equal(t, "k1", got[1].Key)
	assert.Equal(t, "k3", got[2].Key)
}

func TestOrderRecordStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderRecordStore(pool)

	r := createTestOrderRecord("k1", 1, "005930", "buy")
	require.NoError(t, store.Insert(ctx, r))

	err := store.Insert(ctx, r)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
