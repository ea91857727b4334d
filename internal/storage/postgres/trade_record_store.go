package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const insertTradeRecordSQL = `
	INSERT INTO trade_records (
		trade_id, run_id, symbol, interval, side, model,
		opened_at_ms, entry_price, qty_initial, risk_usd,
		closed_at_ms, exit_price, exit_reason,
		gross_pnl, fees_usd, tax_usd, net_pnl, net_r,
		max_fav_r, max_adv_r, outcome_class
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13,
		$14, $15, $16, $17, $18,
		$19, $20, $21
	)
`

const selectTradeRecordSQL = `
	SELECT
		trade_id, run_id, symbol, interval, side, model,
		opened_at_ms, entry_price, qty_initial, risk_usd,
		closed_at_ms, exit_price, exit_reason,
		gross_pnl, fees_usd, tax_usd, net_pnl, net_r,
		max_fav_r, max_adv_r, outcome_class
	FROM trade_records
`

func tradeRecordArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.RunID, t.Symbol, t.Interval, string(t.Side), string(t.Model),
		t.OpenedAtMs, t.EntryPrice, t.QtyInitial, t.RiskUSD,
		t.ClosedAtMs, t.ExitPrice, t.ExitReason,
		t.GrossPnL, t.FeesUSD, t.TaxUSD, t.NetPnL, t.NetR,
		t.MaxFavR, t.MaxAdvR, t.OutcomeClass,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeRecordSQL, tradeRecordArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTradeRecordSQL, tradeRecordArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, selectTradeRecordSQL+` WHERE trade_id = $1`, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by close time ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, selectTradeRecordSQL+`
		WHERE run_id = $1
		ORDER BY closed_at_ms ASC, trade_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t           domain.TradeRecord
		side, model string
	)

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Symbol, &t.Interval, &side, &model,
		&t.OpenedAtMs, &t.EntryPrice, &t.QtyInitial, &t.RiskUSD,
		&t.ClosedAtMs, &t.ExitPrice, &t.ExitReason,
		&t.GrossPnL, &t.FeesUSD, &t.TaxUSD, &t.NetPnL, &t.NetR,
		&t.MaxFavR, &t.MaxAdvR, &t.OutcomeClass,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Signal(side)
	t.Model = domain.ModelType(model)
	return &t, nil
}
