package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const selectBacktestRunSQL = `
	SELECT
		run_id, symbol, interval, model, created_at_ms,
		bars, trades, net_profit, win_rate, expectancy,
		max_drawdown, final_equity, dominant_block_reason, config_yaml
	FROM backtest_runs
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, symbol, interval, model, created_at_ms,
			bars, trades, net_profit, win_rate, expectancy,
			max_drawdown, final_equity, dominant_block_reason, config_yaml
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
	`,
		r.RunID, r.Symbol, r.Interval, string(r.Model), r.CreatedAtMs,
		r.Bars, r.Trades, r.NetProfit, r.WinRate, r.Expectancy,
		r.MaxDrawdown, r.FinalEquity, r.DominantBlockReason, r.ConfigYAML,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	r, err := scanBacktestRun(s.pool.QueryRow(ctx, selectBacktestRunSQL+` WHERE run_id = $1`, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// List retrieves all runs, newest first.
func (s *BacktestRunStore) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	rows, err := s.pool.Query(ctx, selectBacktestRunSQL+` ORDER BY created_at_ms DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var (
		r     domain.BacktestRun
		model string
	)
	err := row.Scan(
		&r.RunID, &r.Symbol, &r.Interval, &model, &r.CreatedAtMs,
		&r.Bars, &r.Trades, &r.NetProfit, &r.WinRate, &r.Expectancy,
		&r.MaxDrawdown, &r.FinalEquity, &r.DominantBlockReason, &r.ConfigYAML,
	)
	if err != nil {
		return nil, err
	}
	r.Model = domain.ModelType(model)
	return &r, nil
}
