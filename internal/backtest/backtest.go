// Package backtest replays a bar series through a decision model, the risk
// gates and the shared position lifecycle, bar by bar, and reports the
// resulting trades and equity path.
package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/decision"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
	"trend-edge-lab/internal/idhash"
	"trend-edge-lab/internal/ledger"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/risk"
)

// Replay bounds.
const (
	MinBars     = 260
	WarmupIndex = 220

	DefaultInitialCash = 100
)

// Per-model slippage used when the configuration leaves SlippageRate unset.
const (
	SlippageProbability = 0.0008
	SlippageMomentum    = 0.0006
	SlippageScore       = 0.0007
)

// Backtest errors
var (
	ErrInsufficientBars = errors.New("insufficient bars for backtest")
	ErrNoSeries         = errors.New("no bar series")
)

// Request is one replay.
type Request struct {
	RunID    string // optional; derived from the series and config when empty
	Series   *domain.BarSeries
	Config   domain.Config
	Model    decision.Model // optional; built from Config.Model
	Tracker  *edge.Tracker  // optional; a fresh tracker over Config.EdgeWindow
	Pipeline *risk.Pipeline // optional; risk.DefaultPipeline
	MTF      risk.MTFSource // optional
	Recorder audit.Recorder // optional
}

// EquityPoint is the marked-to-market equity after one bar.
type EquityPoint struct {
	TimestampMs int64
	Equity      float64
}

// Result is the outcome of a replay.
type Result struct {
	RunID    string
	Symbol   string
	Interval string
	Model    domain.ModelType
	Config   domain.Config // effective configuration
	Bars     int

	Trades      int
	Wins        int
	Losses      int
	NetProfit   float64 // final cash less reserved tax less initial cash
	WinRate     float64
	Expectancy  float64 // mean net P&L per trade
	MaxDrawdown float64 // fraction of the equity high-water mark
	FinalEquity float64 // cash; reserved tax is still included
	TaxReserved float64

	EquityCurve         []EquityPoint
	BlockReasons        map[string]int
	DominantBlockReason string
	WarmupSkips         int
	History             []*domain.TradeRecord
}

// Summary converts the result into its persisted form.
func (r *Result) Summary(createdAtMs int64, configYAML string) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:               r.RunID,
		Symbol:              r.Symbol,
		Interval:            r.Interval,
		Model:               r.Model,
		CreatedAtMs:         createdAtMs,
		Bars:                r.Bars,
		Trades:              r.Trades,
		NetProfit:           r.NetProfit,
		WinRate:             r.WinRate,
		Expectancy:          r.Expectancy,
		MaxDrawdown:         r.MaxDrawdown,
		FinalEquity:         r.FinalEquity,
		DominantBlockReason: r.DominantBlockReason,
		ConfigYAML:          configYAML,
	}
}

// DefaultSlippageRate returns the modelled one-way slippage of model.
func DefaultSlippageRate(model domain.ModelType) float64 {
	switch model {
	case domain.ModelProbability:
		return SlippageProbability
	case domain.ModelMomentum:
		return SlippageMomentum
	default:
		return SlippageScore
	}
}

// EffectiveConfig maps the replay cost parameters onto the shared execution
// model: FeeRate becomes a CUSTOM fee percent and SlippageRate the only
// adverse shift. Spread and latency are not modelled in replays.
func EffectiveConfig(cfg domain.Config, interval string) domain.Config {
	if interval != "" {
		cfg.Interval = interval
	}
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = DefaultInitialCash
	}
	if cfg.SlippageRate <= 0 {
		cfg.SlippageRate = DefaultSlippageRate(cfg.Model)
	}
	cfg.FeeMode = domain.FeeModeCustom
	cfg.CustomFeePct = max(0, cfg.FeeRate) * 100
	cfg.SlippageBps = cfg.SlippageRate * 10_000
	cfg.SpreadBps = 0
	cfg.LatencyMs = 0
	cfg.LatencyBpsPerSec = 0
	return cfg
}

// Run replays req.Series. It is deterministic: it reads no clock and no
// random source, and position ids derive from the run id and bar time.
func Run(ctx context.Context, req Request) (*Result, error) {
	series := req.Series
	if series == nil {
		return nil, ErrNoSeries
	}
	if series.Len() < MinBars {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBars, series.Len(), MinBars)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	cfg := EffectiveConfig(req.Config, series.Interval)
	r, err := newReplay(req, &cfg)
	if err != nil {
		return nil, err
	}

	r.record(audit.EventRunStart, series.Bars[0].TimestampMs, audit.RunInfo{
		Mode:        "backtest",
		Model:       cfg.Model,
		Interval:    cfg.Interval,
		Symbols:     []string{series.Symbol},
		InitialCash: cfg.InitialCash,
		Profile:     cfg.Profile,
	})

	last := series.Len() - 1
	for i := WarmupIndex; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := series.Bars[i]
		if err := r.consider(ctx, i); err != nil {
			return nil, err
		}
		r.settle(bar.TimestampMs, r.book.Advance(series.Symbol, lifecycle.BarObservation(bar), r.cfg))
		if i == last {
			r.settle(bar.TimestampMs, r.book.CloseWhere(nil, domain.ExitReasonForcedEOD, bar.TimestampMs, r.cfg))
		}
		r.mark(bar.TimestampMs)
	}

	res := r.result()
	r.record(audit.EventBacktestDone, series.Bars[last].TimestampMs, audit.BacktestInfo{
		Trades:              res.Trades,
		NetProfit:           res.NetProfit,
		WinRate:             res.WinRate,
		Expectancy:          res.Expectancy,
		MaxDrawdown:         res.MaxDrawdown,
		DominantBlockReason: res.DominantBlockReason,
	})
	return res, nil
}

// replay is the mutable state of one run.
type replay struct {
	runID    string
	series   *domain.BarSeries
	cfg      *domain.Config
	model    decision.Model
	tracker  *edge.Tracker
	pipeline *risk.Pipeline
	mtf      risk.MTFSource
	recorder audit.Recorder
	ledger   *ledger.Ledger
	book     *lifecycle.Book

	curve   []EquityPoint
	hwm     float64
	maxDD   float64
	blocks  map[string]int
	warmup  int
	history []*domain.TradeRecord
}

func newReplay(req Request, cfg *domain.Config) (*replay, error) {
	series := req.Series

	tracker := req.Tracker
	if tracker == nil {
		tracker = edge.NewTracker(cfg.EdgeWindow)
	}
	model := req.Model
	if model == nil {
		m, err := decision.FromType(cfg.Model, decision.Options{Edge: tracker})
		if err != nil {
			return nil, fmt.Errorf("build model: %w", err)
		}
		model = m
	}
	pipeline := req.Pipeline
	if pipeline == nil {
		pipeline = risk.DefaultPipeline()
	}
	recorder := req.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}

	runID := req.RunID
	if runID == "" {
		lastBar, _ := series.Last()
		runID = idhash.ComputeRunID(series.Symbol, series.Interval, model.Name(),
			series.Bars[0].TimestampMs, lastBar.TimestampMs, ConfigDigest(cfg))
	}

	l := ledger.New(cfg.InitialCash, ledger.PolicyFromConfig(cfg))
	return &replay{
		runID:    runID,
		series:   series,
		cfg:      cfg,
		model:    model,
		tracker:  tracker,
		pipeline: pipeline,
		mtf:      req.MTF,
		recorder: recorder,
		ledger:   l,
		book:     lifecycle.NewBook(runID, l),
		hwm:      cfg.InitialCash,
		blocks:   make(map[string]int),
	}, nil
}

// consider evaluates a long entry on bar i when the symbol is flat and the
// account admits one.
func (r *replay) consider(ctx context.Context, i int) error {
	bar := r.series.Bars[i]
	symbol := r.series.Symbol
	if r.book.HasOpen(symbol) {
		return nil
	}

	adm := risk.Admit(r.ledger, r.book.OpenCount(), symbol, bar.TimestampMs, r.cfg)
	if !adm.OK {
		// holding a position is not a blocked evaluation
		if adm.Reason != domain.ReasonMaxOpen {
			r.block(adm.Reason)
		}
		return nil
	}

	view := r.series.Upto(i)
	d := r.model.Evaluate(view, r.cfg)
	if d.Reason == domain.ReasonInsufficientData {
		r.warmup++
		return nil
	}
	if sig := risk.CheckSignal(&d, r.cfg); !sig.OK {
		if !d.IsEntry() && d.Reason != "" {
			r.block(d.Reason)
		} else {
			r.block(sig.Reason)
		}
		return nil
	}
	if d.Signal != domain.SignalBuy {
		r.block(domain.ReasonLongOnly)
		return nil
	}

	plan, ok := risk.PlanReplay(&d, r.cfg)
	if !ok || !plan.Valid() {
		r.block(domain.ReasonRRBelowMin)
		return nil
	}
	mult := risk.RiskMultiplier(&d, r.ledger, r.cfg)
	plan = risk.Size(plan, r.ledger.Cash(), r.cfg.RiskFraction, mult)

	verdict := r.pipeline.Run(ctx, &risk.Input{
		Decision: &d,
		Series:   view,
		Config:   r.cfg,
		Ledger:   r.ledger,
		Open:     r.book.Positions(),
		Plan:     plan,
		MTF:      r.mtf,
		NowMs:    bar.TimestampMs,
	})
	if !verdict.OK {
		r.block(verdict.Reason())
		r.record(audit.EventGateVeto, bar.TimestampMs, audit.VetoInfo(verdict.Veto))
		return nil
	}

	pos, err := r.book.Open(lifecycle.OpenRequest{
		ID:       idhash.ComputePositionID(r.runID, symbol, d.Signal, bar.TimestampMs),
		Symbol:   symbol,
		Interval: r.cfg.Interval,
		Side:     d.Signal,
		Model:    d.Model,
		Score:    d.Score,
		Mark:     plan.Entry,
		Stop:     plan.Stop,
		Target:   plan.Target,
		ATR:      plan.ATR,
		RiskUSD:  plan.RiskUSD,
		RiskMult: plan.RiskMult,
		BarTs:    bar.TimestampMs,
		NowMs:    bar.TimestampMs,
	}, r.cfg)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidPosition) {
			r.block(domain.ReasonRRBelowMin)
			return nil
		}
		return fmt.Errorf("open position: %w", err)
	}
	r.record(audit.EventOpen, bar.TimestampMs, audit.NewOpenInfo(pos))
	return nil
}

// settle books the exit legs of one observation.
func (r *replay) settle(tsMs int64, fills []lifecycle.Fill) {
	for _, f := range fills {
		if f.Kind != lifecycle.FillClose {
			r.record(audit.EventPartial, tsMs, audit.NewFillInfo(f))
			continue
		}
		rec := f.Record
		r.history = append(r.history, rec)
		r.tracker.AddTrade(rec.NetPnL)
		if r.cfg.CooldownCandles > 0 {
			r.ledger.SetCooldown(rec.Symbol, risk.CooldownUntil(rec.ClosedAtMs, r.cfg))
		}
		r.record(audit.EventClose, tsMs, audit.NewFillInfo(f))
	}
}

// mark appends the equity point of a bar and updates the drawdown.
func (r *replay) mark(tsMs int64) {
	eq := r.book.Equity()
	r.curve = append(r.curve, EquityPoint{TimestampMs: tsMs, Equity: eq})
	r.hwm = max(r.hwm, eq)
	if r.hwm > 0 {
		r.maxDD = max(r.maxDD, (r.hwm-eq)/r.hwm)
	}
}

func (r *replay) block(reason string) {
	if reason == "" {
		return
	}
	r.blocks[reason]++
}

func (r *replay) record(t audit.EventType, tsMs int64, payload zapcore.ObjectMarshaler) {
	r.recorder.Record(audit.Event{
		Type:    t,
		RunID:   r.runID,
		Symbol:  r.series.Symbol,
		TsMs:    tsMs,
		Payload: payload,
	})
}

func (r *replay) result() *Result {
	res := &Result{
		RunID:               r.runID,
		Symbol:              r.series.Symbol,
		Interval:            r.cfg.Interval,
		Model:               r.model.Name(),
		Config:              *r.cfg,
		Bars:                r.series.Len(),
		Trades:              len(r.history),
		MaxDrawdown:         r.maxDD,
		FinalEquity:         r.ledger.Cash(),
		EquityCurve:         r.curve,
		BlockReasons:        r.blocks,
		DominantBlockReason: dominant(r.blocks),
		WarmupSkips:         r.warmup,
		History:             r.history,
	}
	res.TaxReserved = r.ledger.TaxReserved()
	res.NetProfit = res.FinalEquity - res.TaxReserved - r.cfg.InitialCash

	var sum float64
	for _, t := range r.history {
		sum += t.NetPnL
		if t.NetPnL > 0 {
			res.Wins++
		} else {
			res.Losses++
		}
	}
	if res.Trades > 0 {
		res.WinRate = float64(res.Wins) / float64(res.Trades)
		res.Expectancy = sum / float64(res.Trades)
	}
	return res
}

// dominant returns the most frequent reason; ties go to the smaller code.
func dominant(counts map[string]int) string {
	reasons := make([]string, 0, len(counts))
	for k := range counts {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)

	best, bestN := "", 0
	for _, k := range reasons {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// ConfigDigest returns a short stable digest of cfg's YAML form.
func ConfigDigest(cfg *domain.Config) string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
