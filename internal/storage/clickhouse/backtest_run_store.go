package clickhouse

import (
	"context"
	"fmt"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using ClickHouse.
type BacktestRunStore struct {
	conn *Conn
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(conn *Conn) *BacktestRunStore {
	return &BacktestRunStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const selectBacktestRunSQL = `
	SELECT
		run_id, symbol, interval, model, created_at_ms,
		bars, trades, net_profit, win_rate, expectancy,
		max_drawdown, final_equity, dominant_block_reason, config_yaml
	FROM backtest_runs FINAL
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would replace; runs are append-only.
	exists, err := s.exists(ctx, r.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, symbol, interval, model, created_at_ms,
			bars, trades, net_profit, win_rate, expectancy,
			max_drawdown, final_equity, dominant_block_reason, config_yaml
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?
		)
	`,
		r.RunID, r.Symbol, r.Interval, string(r.Model), uint64(r.CreatedAtMs),
		uint32(r.Bars), uint32(r.Trades), r.NetProfit, r.WinRate, r.Expectancy,
		r.MaxDrawdown, r.FinalEquity, r.DominantBlockReason, r.ConfigYAML,
	)
	if err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	rows, err := s.conn.Query(ctx, selectBacktestRunSQL+` WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	defer rows.Close()

	runs, err := scanBacktestRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}
	return runs[0], nil
}

// List retrieves all runs, newest first.
func (s *BacktestRunStore) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	rows, err := s.conn.Query(ctx, selectBacktestRunSQL+` ORDER BY created_at_ms DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanBacktestRuns(rows)
}

func (s *BacktestRunStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM backtest_runs FINAL WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanBacktestRuns(rows chRows) ([]*domain.BacktestRun, error) {
	var runs []*domain.BacktestRun

	for rows.Next() {
		var (
			r            domain.BacktestRun
			model        string
			createdAt    uint64
			bars, trades uint32
		)
		err := rows.Scan(
			&r.RunID, &r.Symbol, &r.Interval, &model, &createdAt,
			&bars, &trades, &r.NetProfit, &r.WinRate, &r.Expectancy,
			&r.MaxDrawdown, &r.FinalEquity, &r.DominantBlockReason, &r.ConfigYAML,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		r.Model = domain.ModelType(model)
		r.CreatedAtMs = int64(createdAt)
		r.Bars = int(bars)
		r.Trades = int(trades)
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}
