package backend

import (
	"context"
	"errors"
	"time"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/storage"
)

// Instrument wraps every store so each call records its latency on m,
// labelled by database and operation. ErrNotFound is not counted as a failure.
func (s *Stores) Instrument(m *observability.Metrics) {
	if m == nil {
		return
	}
	s.Bars = &timedBars{next: s.Bars, obs: observer{m: m, db: s.databases.bars}}
	s.Trades = &timedTrades{next: s.Trades, obs: observer{m: m, db: s.databases.trades}}
	s.Audit = &timedAudit{next: s.Audit, obs: observer{m: m, db: s.databases.audit}}
	s.Runs = &timedRuns{next: s.Runs, obs: observer{m: m, db: s.databases.runs}}
}

type observer struct {
	m  *observability.Metrics
	db string
}

func (o observer) done(op string, start time.Time, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	o.m.RecordDBQuery(o.db, op, time.Since(start).Seconds(), err)
}

type timedBars struct {
	next storage.BarStore
	obs  observer
}

var _ storage.BarStore = (*timedBars)(nil)

func (t *timedBars) InsertBulk(ctx context.Context, symbol, interval string, bars []domain.Bar) error {
	start := time.Now()
	err := t.next.InsertBulk(ctx, symbol, interval, bars)
	t.obs.done("bars_insert", start, err)
	return err
}

func (t *timedBars) GetBySymbol(ctx context.Context, symbol, interval string) ([]domain.Bar, error) {
	start := time.Now()
	bars, err := t.next.GetBySymbol(ctx, symbol, interval)
	t.obs.done("bars_by_symbol", start, err)
	return bars, err
}

func (t *timedBars) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Bar, error) {
	began := time.Now()
	bars, err := t.next.GetByTimeRange(ctx, symbol, interval, start, end)
	t.obs.done("bars_by_range", began, err)
	return bars, err
}

type timedTrades struct {
	next storage.TradeRecordStore
	obs  observer
}

var _ storage.TradeRecordStore = (*timedTrades)(nil)

func (t *timedTrades) Insert(ctx context.Context, rec *domain.TradeRecord) error {
	start := time.Now()
	err := t.next.Insert(ctx, rec)
	t.obs.done("trades_insert", start, err)
	return err
}

func (t *timedTrades) InsertBulk(ctx context.Context, recs []*domain.TradeRecord) error {
	start := time.Now()
	err := t.next.InsertBulk(ctx, recs)
	t.obs.done("trades_insert_bulk", start, err)
	return err
}

func (t *timedTrades) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	start := time.Now()
	rec, err := t.next.GetByID(ctx, tradeID)
	t.obs.done("trades_by_id", start, err)
	return rec, err
}

func (t *timedTrades) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	start := time.Now()
	recs, err := t.next.GetByRunID(ctx, runID)
	t.obs.done("trades_by_run", start, err)
	return recs, err
}

type timedAudit struct {
	next storage.AuditEventStore
	obs  observer
}

var _ storage.AuditEventStore = (*timedAudit)(nil)

func (t *timedAudit) InsertBulk(ctx context.Context, events []*domain.AuditRecord) error {
	start := time.Now()
	err := t.next.InsertBulk(ctx, events)
	t.obs.done("audit_insert_bulk", start, err)
	return err
}

func (t *timedAudit) GetByRunID(ctx context.Context, runID string) ([]*domain.AuditRecord, error) {
	start := time.Now()
	events, err := t.next.GetByRunID(ctx, runID)
	t.obs.done("audit_by_run", start, err)
	return events, err
}

type timedRuns struct {
	next storage.BacktestRunStore
	obs  observer
}

var _ storage.BacktestRunStore = (*timedRuns)(nil)

func (t *timedRuns) Insert(ctx context.Context, r *domain.BacktestRun) error {
	start := time.Now()
	err := t.next.Insert(ctx, r)
	t.obs.done("runs_insert", start, err)
	return err
}

func (t *timedRuns) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	start := time.Now()
	r, err := t.next.GetByID(ctx, runID)
	t.obs.done("runs_by_id", start, err)
	return r, err
}

func (t *timedRuns) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	start := time.Now()
	runs, err := t.next.List(ctx)
	t.obs.done("runs_list", start, err)
	return runs, err
}
