package clickhouse

import (
	"context"
	"fmt"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds bars. Fails entire batch on duplicate (symbol, interval, timestamp_ms).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *BarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []domain.Bar) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(bars))
	minTs, maxTs := bars[0].TimestampMs, bars[0].TimestampMs
	for _, b := range bars {
		if _, exists := seen[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
		minTs = min(minTs, b.TimestampMs)
		maxTs = max(maxTs, b.TimestampMs)
	}

	existing, err := s.GetByTimeRange(ctx, symbol, interval, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, b := range existing {
		if _, clash := seen[b.TimestampMs]; clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			symbol, interval, uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol/interval, ordered by timestamp ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol, interval string) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval, uint64(max(start, 0)), uint64(max(end, 0)))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar

	for rows.Next() {
		var (
			b  domain.Bar
			ts uint64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.TimestampMs = int64(ts)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
