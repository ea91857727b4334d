package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

func createTestTradeRecord(runID, tradeID string, closedAt int64) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:      tradeID,
		RunID:        runID,
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		Side:         domain.SignalBuy,
		Model:        domain.ModelMomentum,
		OpenedAtMs:   closedAt - 3_600_000,
		EntryPrice:   100,
		QtyInitial:   0.5,
		RiskUSD:      1,
		ClosedAtMs:   closedAt,
		ExitPrice:    104,
		ExitReason:   domain.ExitReasonTarget,
		GrossPnL:     2,
		FeesUSD:      0.1,
		TaxUSD:       0.285,
		NetPnL:       1.615,
		NetR:         1.615,
		MaxFavR:      2.1,
		MaxAdvR:      -0.3,
		OutcomeClass: domain.OutcomeClassWin,
	}
}

func TestTradeRecordStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	trade := createTestTradeRecord("run-1", "trade-001", 10_000_000)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)
	assert.Equal(t, trade, got)
}

func TestTradeRecordStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	trade := createTestTradeRecord("run-1", "trade-dup", 10_000_000)
	require.NoError(t, store.Insert(ctx, trade))

	err := store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeRecordStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewTradeRecordStore(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	batch := []*domain.TradeRecord{
		createTestTradeRecord("run-2", "bulk-1", 10_000_000),
		createTestTradeRecord("run-2", "bulk-1", 20_000_000),
	}
	assert.ErrorIs(t, store.InsertBulk(ctx, batch), storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	assert.Empty(t, got, "failed batch must roll back")
}

func TestTradeRecordStore_GetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.TradeRecord{
		createTestTradeRecord("run-3", "c", 30_000_000),
		createTestTradeRecord("run-3", "a", 10_000_000),
		createTestTradeRecord("run-4", "b", 20_000_000),
	}))

	got, err := store.GetByRunID(ctx, "run-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].TradeID)
	assert.Equal(t, "c", got[1].TradeID)
}
