// Package metrics derives trade statistics from stored trade records.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// ErrNoTrades is returned when a run has no trades to aggregate.
var ErrNoTrades = errors.New("no trades available for aggregation")

// RunReport is the statistics of one stored run.
type RunReport struct {
	Run     *domain.BacktestRun
	Stats   Stats
	Symbols []SymbolStats
}

// Aggregator computes run statistics from stored trade records.
type Aggregator struct {
	trades storage.TradeRecordStore
	runs   storage.BacktestRunStore
}

// NewAggregator creates an aggregator over the given stores.
func NewAggregator(trades storage.TradeRecordStore, runs storage.BacktestRunStore) *Aggregator {
	return &Aggregator{trades: trades, runs: runs}
}

// RunStats computes the statistics of runID.
// Returns ErrNoTrades if the run closed no trade.
func (a *Aggregator) RunStats(ctx context.Context, runID string) (Stats, error) {
	trades, err := a.load(ctx, runID)
	if err != nil {
		return Stats{}, err
	}
	return Compute(trades), nil
}

// Report loads the run summary and computes its statistics with a
// per-symbol breakdown. A run without trades yields empty statistics.
func (a *Aggregator) Report(ctx context.Context, runID string) (*RunReport, error) {
	run, err := a.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	trades, err := a.load(ctx, runID)
	if err != nil && !errors.Is(err, ErrNoTrades) {
		return nil, err
	}
	return &RunReport{
		Run:     run,
		Stats:   Compute(trades),
		Symbols: BySymbol(trades),
	}, nil
}

func (a *Aggregator) load(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	trades, err := a.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades of %s: %w", runID, err)
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}
	return trades, nil
}
