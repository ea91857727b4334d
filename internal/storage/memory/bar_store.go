package memory

import (
	"context"
	"sort"
	"sync"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

type seriesKey struct {
	symbol   string
	interval string
}

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[seriesKey][]domain.Bar // sorted by timestamp
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[seriesKey][]domain.Bar),
	}
}

// InsertBulk adds bars. Fails entire batch on duplicate timestamp.
func (s *BarStore) InsertBulk(_ context.Context, symbol, interval string, bars []domain.Bar) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, interval}
	existing := s.data[key]

	seen := make(map[int64]struct{}, len(existing)+len(bars))
	for _, b := range existing {
		seen[b.TimestampMs] = struct{}{}
	}
	for _, b := range bars {
		if _, exists := seen[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
	}

	merged := make([]domain.Bar, 0, len(existing)+len(bars))
	merged = append(merged, existing...)
	merged = append(merged, bars...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TimestampMs < merged[j].TimestampMs
	})
	s.data[key] = merged

	return nil
}

// GetBySymbol retrieves all bars for a symbol/interval, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol, interval string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := s.data[seriesKey{symbol, interval}]
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Bar
	for _, b := range s.data[seriesKey{symbol, interval}] {
		if b.TimestampMs >= start && b.TimestampMs <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

var _ storage.BarStore = (*BarStore)(nil)
