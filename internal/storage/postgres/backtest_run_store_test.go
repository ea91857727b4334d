package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

func TestBacktestRunStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	run := &domain.BacktestRun{
		RunID:       "bt-1",
		Symbol:      "ETHUSDT",
		Interval:    "1h",
		Model:       domain.ModelProbability,
		CreatedAtMs: 5000,
		Bars:        400,
		Trades:      7,
		NetProfit:   -0.4,
		WinRate:     0.42,
		Expectancy:  -0.05,
		MaxDrawdown: 0.03,
		FinalEquity: 99.6,
		ConfigYAML:  "model: prob\n",
	}
	require.NoError(t, store.Insert(ctx, run))
	require.NoError(t, store.Insert(ctx, &domain.BacktestRun{RunID: "bt-0", Model: domain.ModelScore, CreatedAtMs: 1}))
	assert.ErrorIs(t, store.Insert(ctx, run), storage.ErrDuplicateKey)

	got, err := store.GetByID(ctx, "bt-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bt-1", list[0].RunID)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
