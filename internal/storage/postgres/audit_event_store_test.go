package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

func TestAuditEventStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAuditEventStore(pool)

	events := []*domain.AuditRecord{
		{EventID: "e2", RunID: "run-1", EventType: "CLOSE", Symbol: "BTCUSDT", TsMs: 2000,
			Payload: map[string]any{"reason": "TARGET", "net_pnl": 1.25}},
		{EventID: "e1", RunID: "run-1", EventType: "OPEN", Symbol: "BTCUSDT", TsMs: 1000},
		{EventID: "e3", RunID: "run-2", EventType: "RUN_START", TsMs: 500},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, "TARGET", got[1].Payload["reason"])
	assert.InDelta(t, 1.25, got[1].Payload["net_pnl"], 1e-9)
	assert.Empty(t, got[0].Payload)
}

func TestAuditEventStore_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAuditEventStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.AuditRecord{{EventID: "x", RunID: "run-9", TsMs: 1}}))

	err := store.InsertBulk(ctx, []*domain.AuditRecord{
		{EventID: "y", RunID: "run-9", TsMs: 2},
		{EventID: "x", RunID: "run-9", TsMs: 3},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-9")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
