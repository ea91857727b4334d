package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/marketdata/stub"
	"trend-edge-lab/internal/risk"
)

type countingFetcher struct {
	calls  int
	limits []int
	err    error
}

func (f *countingFetcher) FetchBars(_ context.Context, symbol, interval string, limit int) (*domain.BarSeries, error) {
	f.calls++
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	s := stub.RisingSeries(symbol, limit, 100, 0.003, 0)
	s.Interval = interval
	return s, nil
}

func TestMTFTTL(t *testing.T) {
	assert.Equal(t, MinMTFTTL, MTFTTL("1m"))
	assert.Equal(t, 20*time.Minute, MTFTTL("1h"))
	assert.Equal(t, 80*time.Minute, MTFTTL("4h"))
}

func TestMTFCache_ExpiresAfterTTL(t *testing.T) {
	f := &countingFetcher{}
	c := NewMTFCache(f, 0.0009, 100)
	now := time.UnixMilli(1_750_000_000_000)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	snap, err := c.Snapshot(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.True(t, snap.Aligned())
	assert.Equal(t, "1h", snap.Interval)
	assert.Equal(t, now.UnixMilli(), snap.FetchedAtMs)
	assert.Equal(t, []int{risk.MTFMinBars}, f.limits)

	now = now.Add(19 * time.Minute)
	_, err = c.Snapshot(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls, "fresh entry is served from cache")

	_, err = c.Snapshot(ctx, "ETHUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls, "entries are keyed per symbol")

	now = now.Add(time.Minute)
	_, err = c.Snapshot(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls, "expired entry is refetched")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMTFCache_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	f := &countingFetcher{err: boom}
	c := NewMTFCache(f, 0.0009, 300)

	_, err := c.Snapshot(context.Background(), "BTCUSDT", "4h")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	f.err = nil
	_, err = c.Snapshot(context.Background(), "BTCUSDT", "4h")
	require.NoError(t, err)
	assert.Equal(t, []int{300, 300}, f.limits)
}

func TestReturnsCache(t *testing.T) {
	c := NewReturnsCache()
	_, ok := c.Returns("BTCUSDT", "1h")
	assert.False(t, ok)

	series := stub.RandomWalk("BTCUSDT", 80, 100, 0.01, 3)
	c.Update(series, 40)
	vec, ok := c.Returns("BTCUSDT", "1h")
	require.True(t, ok)
	assert.Len(t, vec, 40)

	c.Update(stub.FlatSeries("BTCUSDT", 2, 100), 40)
	again, _ := c.Returns("BTCUSDT", "1h")
	assert.Equal(t, vec, again, "short series keeps the previous vector")

	c.Clear()
	_, ok = c.Returns("BTCUSDT", "1h")
	assert.False(t, ok)
}
