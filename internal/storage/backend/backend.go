// Package backend opens the configured set of stores.
package backend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/storage"
	chstore "trend-edge-lab/internal/storage/clickhouse"
	"trend-edge-lab/internal/storage/memory"
	"trend-edge-lab/internal/storage/migrations"
	pgstore "trend-edge-lab/internal/storage/postgres"
)

// Driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned for an unsupported storage driver.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Stores groups the persistence interfaces used by the engines.
type Stores struct {
	Bars   storage.BarStore
	Trades storage.TradeRecordStore
	Audit  storage.AuditEventStore
	Runs   storage.BacktestRunStore

	databases struct{ bars, trades, audit, runs string }
	closers   []func() error
}

// Memory returns process-local stores.
func Memory() *Stores {
	s := &Stores{
		Bars:   memory.NewBarStore(),
		Trades: memory.NewTradeRecordStore(),
		Audit:  memory.NewAuditEventStore(),
		Runs:   memory.NewBacktestRunStore(),
	}
	s.databases.bars = DriverMemory
	s.databases.trades = DriverMemory
	s.databases.audit = DriverMemory
	s.databases.runs = DriverMemory
	return s
}

// Open builds the stores selected by cfg and applies migrations. With the
// postgres driver, trades, audit events and run summaries live in Postgres;
// a ClickHouse DSN moves bars and run summaries to ClickHouse.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	stores := Memory()
	switch cfg.Driver {
	case "", DriverMemory:
		logger.Info("storage: memory")
		return stores, nil
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	stores.closers = append(stores.closers, func() error { pool.Close(); return nil })
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return nil, multierr.Append(err, stores.Close())
	}
	stores.Trades = pgstore.NewTradeRecordStore(pool)
	stores.Audit = pgstore.NewAuditEventStore(pool)
	stores.Runs = pgstore.NewBacktestRunStore(pool)
	stores.databases.trades = DriverPostgres
	stores.databases.audit = DriverPostgres
	stores.databases.runs = DriverPostgres
	logger.Info("storage: postgres connected")

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, multierr.Append(err, stores.Close())
		}
		stores.closers = append(stores.closers, conn.Close)
		stores.Bars = chstore.NewBarStore(conn)
		stores.Runs = chstore.NewBacktestRunStore(conn)
		stores.databases.bars = "clickhouse"
		stores.databases.runs = "clickhouse"
		logger.Info("storage: clickhouse connected")
	}

	return stores, nil
}

// Close releases every connection, reporting all failures.
func (s *Stores) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	s.closers = nil
	return err
}
