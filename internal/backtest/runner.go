package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/storage"
)

// Runner loads bars from storage, replays them and persists the outputs.
type Runner struct {
	bars     storage.BarStore
	trades   storage.TradeRecordStore // optional
	runs     storage.BacktestRunStore // optional
	recorder audit.Recorder
	metrics  *observability.Metrics // optional
	logger   *zap.Logger
	clock    func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTradeStore persists the trade records of every run.
func WithTradeStore(s storage.TradeRecordStore) RunnerOption {
	return func(r *Runner) { r.trades = s }
}

// WithRunStore persists the summary of every run.
func WithRunStore(s storage.BacktestRunStore) RunnerOption {
	return func(r *Runner) { r.runs = s }
}

// WithRecorder sends the audit events of every run to rec.
func WithRecorder(rec audit.Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithMetrics records the outcome and duration of every run.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the clock stamping persisted summaries.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = now }
}

// NewRunner creates a runner reading bars from bars.
func NewRunner(bars storage.BarStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		bars:     bars,
		recorder: audit.Nop{},
		logger:   zap.NewNop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays all stored bars of symbol at cfg.Interval. Every run gets a
// fresh random run id, so repeated runs persist side by side.
func (r *Runner) Run(ctx context.Context, symbol string, cfg domain.Config) (*Result, error) {
	bars, err := r.bars.GetBySymbol(ctx, symbol, cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("load bars %s %s: %w", symbol, cfg.Interval, err)
	}
	return r.RunSeries(ctx, domain.NewBarSeries(symbol, cfg.Interval, bars), cfg)
}

// RunSeries replays series and persists the outputs.
func (r *Runner) RunSeries(ctx context.Context, series *domain.BarSeries, cfg domain.Config) (*Result, error) {
	start := time.Now()
	res, err := Run(ctx, Request{
		RunID:    uuid.NewString(),
		Series:   series,
		Config:   cfg,
		Recorder: r.recorder,
	})
	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordBacktest(status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("backtest finished",
		zap.String("run_id", res.RunID),
		zap.String("symbol", res.Symbol),
		zap.String("model", string(res.Model)),
		zap.Int("trades", res.Trades),
		zap.Float64("net_profit", res.NetProfit),
		zap.Float64("max_drawdown", res.MaxDrawdown),
		zap.String("dominant_block_reason", res.DominantBlockReason),
	)

	if err := r.persist(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) persist(ctx context.Context, res *Result) error {
	if r.trades != nil && len(res.History) > 0 {
		if err := r.trades.InsertBulk(ctx, res.History); err != nil {
			return fmt.Errorf("persist trades of %s: %w", res.RunID, err)
		}
	}
	if r.runs == nil {
		return nil
	}
	data, err := yaml.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := r.runs.Insert(ctx, res.Summary(r.clock().UnixMilli(), string(data))); err != nil {
		return fmt.Errorf("persist run %s: %w", res.RunID, err)
	}
	return nil
}
