package storage

import (
	"context"

	"trend-edge-lab/internal/domain"
)

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds bars for one symbol/interval. Fails entire batch on duplicate
	// (symbol, interval, timestamp_ms).
	InsertBulk(ctx context.Context, symbol, interval string, bars []domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol/interval, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol, interval string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Bar, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by close time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// AuditEventStore provides access to audit_events storage.
type AuditEventStore interface {
	// InsertBulk adds events atomically. Fails entire batch on duplicate event_id.
	InsertBulk(ctx context.Context, events []*domain.AuditRecord) error

	// GetByRunID retrieves all events of a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.AuditRecord, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// List retrieves all runs, newest first.
	List(ctx context.Context) ([]*domain.BacktestRun, error)
}
