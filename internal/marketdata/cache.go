package marketdata

import (
	"context"
	"sync"
	"time"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
	"trend-edge-lab/internal/risk"
)

// MinMTFTTL is the shortest lifetime of a cached snapshot.
const MinMTFTTL = 20 * time.Second

// BarFetcher loads recent bars of one symbol.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) (*domain.BarSeries, error)
}

type cacheKey struct {
	symbol   string
	interval string
}

type mtfEntry struct {
	snap      risk.MTFSnapshot
	expiresAt time.Time
}

// MTFCache serves higher-timeframe snapshots, refetching a (symbol,
// interval) pair once its entry expires. An entry lives max(20s, bar/3).
// Fetch errors are returned and never cached.
type MTFCache struct {
	fetcher          BarFetcher
	minTrendStrength float64
	limit            int
	now              func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]mtfEntry
}

var _ risk.MTFSource = (*MTFCache)(nil)

// NewMTFCache creates a cache over fetcher. Snapshots weaker than
// minTrendStrength are reported as not OK.
func NewMTFCache(fetcher BarFetcher, minTrendStrength float64, barLimit int) *MTFCache {
	return &MTFCache{
		fetcher:          fetcher,
		minTrendStrength: minTrendStrength,
		limit:            max(risk.MTFMinBars, barLimit),
		now:              time.Now,
		entries:          make(map[cacheKey]mtfEntry),
	}
}

// MTFTTL returns the lifetime of a snapshot of interval.
func MTFTTL(interval string) time.Duration {
	return max(MinMTFTTL, time.Duration(domain.IntervalMs(interval)/3)*time.Millisecond)
}

// Snapshot implements risk.MTFSource.
func (c *MTFCache) Snapshot(ctx context.Context, symbol, interval string) (risk.MTFSnapshot, error) {
	key := cacheKey{symbol, interval}
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Before(e.expiresAt) {
		return e.snap, nil
	}

	series, err := c.fetcher.FetchBars(ctx, symbol, interval, c.limit)
	if err != nil {
		return risk.MTFSnapshot{}, err
	}
	snap := risk.BuildMTFSnapshot(series, c.minTrendStrength, now.UnixMilli())

	c.mu.Lock()
	c.entries[key] = mtfEntry{snap: snap, expiresAt: now.Add(MTFTTL(interval))}
	c.mu.Unlock()
	return snap, nil
}

// Len returns the number of cached entries, expired ones included.
func (c *MTFCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *MTFCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// ReturnsCache keeps the latest return vector of each (symbol, interval).
type ReturnsCache struct {
	mu   sync.RWMutex
	vecs map[cacheKey][]float64
}

var _ risk.ReturnsSource = (*ReturnsCache)(nil)

// NewReturnsCache creates an empty cache.
func NewReturnsCache() *ReturnsCache {
	return &ReturnsCache{vecs: make(map[cacheKey][]float64)}
}

// Update stores the returns of the last lookback bars of series. Too short
// a series leaves the previous vector in place.
func (c *ReturnsCache) Update(series *domain.BarSeries, lookback int) {
	vec := indicator.Returns(series.Closes(), lookback)
	if len(vec) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vecs[cacheKey{series.Symbol, series.Interval}] = vec
}

// Returns implements risk.ReturnsSource.
func (c *ReturnsCache) Returns(symbol, interval string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vecs[cacheKey{symbol, interval}]
	return v, ok
}

// Clear drops every vector.
func (c *ReturnsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.vecs)
}
