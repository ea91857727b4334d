// Package live runs the paper-trading loop: a periodic tick fetches bars for
// the active universe, evaluates the decision model and applies exits,
// entries and safety locks against one ledger.
package live

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/decision"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
	"trend-edge-lab/internal/ledger"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/risk"
	"trend-edge-lab/internal/storage"
)

// Loop defaults.
const (
	DefaultFetchConcurrency = 5
	DefaultLoopSec          = 20
	DefaultBarLimit         = 500

	tradeWriteTimeout = 5 * time.Second
)

// Engine errors
var (
	ErrTickBusy     = errors.New("previous tick still running")
	ErrNoSymbols    = errors.New("no symbols to scan")
	ErrNoPrice      = errors.New("no price to close at")
	ErrIdeaBlocked  = errors.New("idea blocked")
	ErrIdeaNotFound = errors.New("pending idea not found")
)

// BarSource loads recent bars of one symbol.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) (*domain.BarSeries, error)
}

// Engine is one live paper-trading session. Tick, the stream handler and the
// manual actions serialize on an internal mutex; the bar fetches and model
// evaluations of a tick run outside it.
type Engine struct {
	runID    string
	cfg      *domain.Config
	source   BarSource
	universe *marketdata.Universe   // optional
	stream   *marketdata.KlineStream // optional
	mtf      risk.MTFSource          // optional
	returns  *marketdata.ReturnsCache
	model    decision.Model
	pipeline *risk.Pipeline
	recorder audit.Recorder
	metrics  *observability.Metrics   // optional
	trades   storage.TradeRecordStore // optional
	logger   *zap.Logger
	clock    func() time.Time
	slowTick time.Duration

	ticking atomic.Bool
	skipped atomic.Int64
	ticks   atomic.Int64
	edgeNow atomic.Pointer[edge.Snapshot]

	mu       sync.Mutex
	ledger   *ledger.Ledger
	book     *lifecycle.Book
	tracker  *edge.Tracker
	guard    *risk.TradeGuard
	pending  *PendingBook
	symbols  []string
	lastTick TickReport
}

// Option configures an Engine.
type Option func(*Engine)

// WithUniverse ranks the best-of-day universe for TOPN mode.
func WithUniverse(u *marketdata.Universe) Option {
	return func(e *Engine) { e.universe = u }
}

// WithStream feeds intra-tick kline updates into the open positions.
func WithStream(s *marketdata.KlineStream) Option {
	return func(e *Engine) { e.stream = s }
}

// WithMTF sets the higher-timeframe snapshot source.
func WithMTF(src risk.MTFSource) Option {
	return func(e *Engine) { e.mtf = src }
}

// WithModel overrides the model built from the config.
func WithModel(m decision.Model) Option {
	return func(e *Engine) { e.model = m }
}

// WithPipeline overrides risk.DefaultPipeline.
func WithPipeline(p *risk.Pipeline) Option {
	return func(e *Engine) { e.pipeline = p }
}

// WithRecorder sends audit events to rec.
func WithRecorder(rec audit.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithMetrics exports loop and account metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTradeStore persists every closed trade to s.
func WithTradeStore(s storage.TradeRecordStore) Option {
	return func(e *Engine) { e.trades = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithRunID sets the session id. A random id is used otherwise.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// WithSlowTick sets the duration above which a tick is reported slow. The
// default is the loop period.
func WithSlowTick(d time.Duration) Option {
	return func(e *Engine) { e.slowTick = d }
}

// New creates an engine for cfg reading bars from source.
func New(cfg domain.Config, source BarSource, opts ...Option) (*Engine, error) {
	if cfg.LoopSec <= 0 {
		cfg.LoopSec = DefaultLoopSec
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultBarLimit
	}

	e := &Engine{
		cfg:      &cfg,
		source:   source,
		returns:  marketdata.NewReturnsCache(),
		recorder: audit.Nop{},
		logger:   zap.NewNop(),
		clock:    time.Now,
		tracker:  edge.NewTracker(cfg.EdgeWindow),
		guard:    risk.NewTradeGuard(),
		pending:  NewPendingBook(cfg.MaxPending),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	if e.slowTick <= 0 {
		e.slowTick = time.Duration(cfg.LoopSec) * time.Second
	}
	if e.pipeline == nil {
		e.pipeline = risk.DefaultPipeline()
	}
	e.edgeNow.Store(&edge.Snapshot{})
	if e.model == nil {
		m, err := decision.FromType(cfg.Model, decision.Options{Edge: edgeView{e}})
		if err != nil {
			return nil, fmt.Errorf("build model: %w", err)
		}
		e.model = m
	}

	e.ledger = ledger.New(cfg.InitialCash, ledger.PolicyFromConfig(e.cfg))
	e.book = lifecycle.NewBook(e.runID, e.ledger)
	e.symbols = append([]string(nil), cfg.Symbols...)
	return e, nil
}

// edgeView serves the model the edge statistics as of the last close, so
// concurrent evaluations never read the tracker while it changes.
type edgeView struct{ e *Engine }

func (v edgeView) Snapshot() edge.Snapshot { return *v.e.edgeNow.Load() }

// RunID returns the session id.
func (e *Engine) RunID() string { return e.runID }

// Config returns a copy of the session configuration.
func (e *Engine) Config() domain.Config { return *e.cfg }

// Run ticks every LoopSec until ctx is done. A tick that fires while the
// previous one is still running is skipped and counted. The kline stream, if
// any, runs alongside.
func (e *Engine) Run(ctx context.Context) error {
	e.record(audit.EventRunStart, "", audit.RunInfo{
		Mode:        "live",
		Model:       e.model.Name(),
		Interval:    e.cfg.Interval,
		Symbols:     e.cfg.Symbols,
		InitialCash: e.cfg.InitialCash,
		Profile:     e.cfg.Profile,
	})
	e.logger.Info("live loop started",
		zap.String("run_id", e.runID),
		zap.String("model", string(e.model.Name())),
		zap.Int("loop_sec", e.cfg.LoopSec),
	)

	g, gctx := errgroup.WithContext(ctx)
	if e.stream != nil {
		g.Go(func() error {
			err := e.stream.Run(gctx, e.OnKline)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		var wg sync.WaitGroup
		defer wg.Wait()

		ticker := time.NewTicker(time.Duration(e.cfg.LoopSec) * time.Second)
		defer ticker.Stop()

		fire := func() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.Tick(gctx); err != nil && !errors.Is(err, ErrTickBusy) && gctx.Err() == nil {
					e.logger.Error("tick failed", zap.Error(err))
				}
			}()
		}
		fire()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				fire()
			}
		}
	})
	err := g.Wait()

	e.record(audit.EventRunStop, "", audit.TickInfo{Skipped: e.skipped.Load()})
	e.logger.Info("live loop stopped",
		zap.String("run_id", e.runID),
		zap.Int64("ticks", e.ticks.Load()),
		zap.Int64("skipped", e.skipped.Load()),
	)
	return err
}

// TickReport summarizes one tick.
type TickReport struct {
	StartedAtMs int64
	Duration    time.Duration
	Symbols     []string
	Evaluated   int
	Opened      int
	Queued      int
	Closed      int
	Vetoes      map[string]int
	Err         error // per-symbol failures combined; they never abort a tick
}

// scan is the concurrent part of a tick for one symbol.
type scan struct {
	symbol   string
	series   *domain.BarSeries
	decision domain.Decision
	err      error
}

// Tick runs one cycle. It returns ErrTickBusy without doing anything when
// another tick is in flight.
func (e *Engine) Tick(ctx context.Context) (*TickReport, error) {
	if !e.ticking.CompareAndSwap(false, true) {
		n := e.skipped.Add(1)
		if e.metrics != nil {
			e.metrics.TicksSkipped.Inc()
		}
		e.logger.Debug("tick skipped", zap.Int64("skipped", n))
		return nil, ErrTickBusy
	}
	defer e.ticking.Store(false)

	start := e.clock()
	rep := &TickReport{StartedAtMs: start.UnixMilli(), Vetoes: make(map[string]int)}
	defer func() {
		rep.Duration = e.clock().Sub(start)
		e.finish(rep)
	}()

	symbols := e.resolveUniverse(ctx)
	rep.Symbols = symbols
	if len(symbols) == 0 {
		rep.Err = ErrNoSymbols
		return rep, nil
	}

	scans, err := e.scanAll(ctx, symbols)
	if err != nil {
		rep.Err = err
		return rep, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	nowMs := e.clock().UnixMilli()
	e.ledger.Roll(nowMs)
	for _, s := range scans {
		if s.err != nil {
			rep.Err = multierr.Append(rep.Err, s.err)
			e.record(audit.EventTickError, s.symbol, audit.TickInfo{Error: s.err.Error()})
			if e.metrics != nil {
				e.metrics.SymbolErrors.WithLabelValues(s.symbol).Inc()
			}
			continue
		}
		e.apply(ctx, s, nowMs, rep)
	}
	e.checkLocks(nowMs)
	return rep, nil
}

// resolveUniverse refreshes the best-of-day ranking when due and returns the
// symbols of this tick.
func (e *Engine) resolveUniverse(ctx context.Context) []string {
	symbols := e.cfg.Symbols
	if e.universe != nil && e.cfg.UniverseMode == domain.UniverseTopN {
		// a failed refresh keeps the previous ranking
		_ = e.universe.Refresh(ctx, e.cfg, false)
		symbols = e.universe.Symbols(e.cfg)
	}

	e.mu.Lock()
	changed := !slices.Equal(symbols, e.symbols)
	e.symbols = append([]string(nil), symbols...)
	e.mu.Unlock()
	if changed {
		e.record(audit.EventUniverse, "", audit.UniverseInfo{Mode: e.cfg.UniverseMode, Symbols: symbols})
	}
	if e.metrics != nil {
		e.metrics.UniverseSize.Set(float64(len(symbols)))
	}
	return symbols
}

// scanAll fetches and evaluates every symbol with bounded concurrency.
// Per-symbol failures land in the scan; only cancellation is returned.
func (e *Engine) scanAll(ctx context.Context, symbols []string) ([]scan, error) {
	scans := make([]scan, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FetchConcurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scans[i] = e.scanSymbol(gctx, sym)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}

func (e *Engine) scanSymbol(ctx context.Context, symbol string) (s scan) {
	s.symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("%s: panic: %v", symbol, r)
		}
	}()

	series, err := e.source.FetchBars(ctx, symbol, e.cfg.Interval, e.cfg.Limit)
	if err != nil {
		s.err = fmt.Errorf("%s: %w", symbol, err)
		return s
	}
	if series.Len() == 0 {
		s.err = fmt.Errorf("%s: %w", symbol, marketdata.ErrBadResponse)
		return s
	}
	e.returns.Update(series, e.cfg.CorrLookback)
	s.series = series
	s.decision = e.model.Evaluate(series, e.cfg)
	return s
}

// apply runs the control-side steps of one symbol: position management at
// the latest price, then entry admission.
func (e *Engine) apply(ctx context.Context, s scan, nowMs int64, rep *TickReport) {
	d := s.decision
	last, _ := s.series.Last()
	rep.Evaluated++
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(d.Model), string(d.Signal)).Inc()
	}
	if d.Last > 0 {
		rep.Closed += e.settle(nowMs, e.book.Advance(s.symbol, lifecycle.PriceObservation(d.Last, last.TimestampMs), e.cfg))
	}
	e.consider(ctx, s, last.TimestampMs, nowMs, rep)
}

// consider walks a decision through admission, the signal check, the
// no-repeat guard, planning and the gate pipeline, then opens it or queues it
// for acceptance.
func (e *Engine) consider(ctx context.Context, s scan, barTs, nowMs int64, rep *TickReport) {
	d := s.decision
	cfg := e.cfg

	wasLocked := e.ledger.Locked()
	if adm := risk.Admit(e.ledger, e.book.OpenCount(), s.symbol, nowMs, cfg); !adm.OK {
		rep.Vetoes[adm.Reason]++
		if !wasLocked && e.ledger.Locked() {
			e.recordLock(s.symbol)
		}
		return
	}
	if sig := risk.CheckSignal(&d, cfg); !sig.OK {
		return
	}
	key := risk.GuardKey(d.Signal, s.symbol, cfg.Interval, barTs)
	if g := e.guard.Check(key, cfg); !g.OK {
		rep.Vetoes[g.Reason]++
		return
	}

	plan, ok := risk.PlanLive(&d, cfg)
	if !ok || !plan.Valid() {
		rep.Vetoes[domain.ReasonRRBelowMin]++
		return
	}
	mult := risk.RiskMultiplier(&d, e.ledger, cfg)
	plan = risk.Size(plan, e.ledger.Cash(), cfg.RiskFraction, mult)

	verdict := e.pipeline.Run(ctx, &risk.Input{
		Decision: &d,
		Series:   s.series,
		Config:   cfg,
		Ledger:   e.ledger,
		Open:     e.book.Positions(),
		Plan:     plan,
		MTF:      e.mtf,
		Returns:  e.returns,
		NowMs:    nowMs,
	})
	if !verdict.OK {
		rep.Vetoes[verdict.Reason()]++
		e.record(audit.EventGateVeto, s.symbol, audit.VetoInfo(verdict.Veto))
		if e.metrics != nil {
			e.metrics.RecordVeto(verdict.Veto.Gate, verdict.Veto.Reason)
		}
		if verdict.Veto.Reason == domain.ReasonKillSwitchSlippage {
			until, reason := e.ledger.KillSwitchUntil()
			e.record(audit.EventKillSwitch, s.symbol, audit.KillSwitchInfo{
				UntilMs: until,
				Reason:  reason,
				SlipUSD: verdict.Veto.Diagnostics["slip_usd"],
				SlipPct: verdict.Veto.Diagnostics["slip_pct"],
			})
		}
		return
	}
	e.record(audit.EventDecision, s.symbol, audit.NewDecisionInfo(&d))

	idea := Idea{
		ID:          uuid.NewString(),
		Key:         key,
		Symbol:      s.symbol,
		Interval:    cfg.Interval,
		Side:        d.Signal,
		Model:       d.Model,
		Score:       d.Score,
		Entry:       plan.Entry,
		Stop:        plan.Stop,
		Target:      plan.Target,
		ATR:         plan.ATR,
		RiskMult:    mult,
		BarTs:       barTs,
		CreatedAtMs: nowMs,
		Reasons:     d.Reasons,
	}
	if cfg.Mode != domain.TradeModeAsk || d.Score >= cfg.ScoreAutoOnAsk {
		if _, err := e.open(idea, nowMs); err != nil {
			rep.Vetoes[domain.ReasonRRBelowMin]++
			e.logger.Warn("open rejected", zap.String("symbol", s.symbol), zap.Error(err))
			return
		}
		rep.Opened++
	} else {
		added, evicted := e.pending.Add(idea)
		if added {
			rep.Queued++
			e.record(audit.EventPending, s.symbol, pendingInfo(idea, "ADDED"))
		}
		if evicted != nil {
			e.record(audit.EventPending, evicted.Symbol, pendingInfo(*evicted, "EXPIRED"))
		}
	}
	e.guard.Mark(key)
	if cfg.CooldownCandles > 0 {
		e.ledger.SetCooldown(s.symbol, risk.CooldownUntil(barTs, cfg))
	}
}

// open sizes idea against the current cash and opens it.
func (e *Engine) open(idea Idea, nowMs int64) (domain.Position, error) {
	plan := risk.Size(risk.Plan{
		Side:   idea.Side,
		Entry:  idea.Entry,
		Stop:   idea.Stop,
		Target: idea.Target,
		ATR:    idea.ATR,
	}, e.ledger.Cash(), e.cfg.RiskFraction, idea.RiskMult)

	pos, err := e.book.Open(lifecycle.OpenRequest{
		ID:       positionID(e.runID, idea),
		Symbol:   idea.Symbol,
		Interval: idea.Interval,
		Side:     idea.Side,
		Model:    idea.Model,
		Score:    idea.Score,
		Mark:     plan.Entry,
		Stop:     plan.Stop,
		Target:   plan.Target,
		ATR:      plan.ATR,
		RiskUSD:  plan.RiskUSD,
		RiskMult: plan.RiskMult,
		BarTs:    idea.BarTs,
		NowMs:    nowMs,
	}, e.cfg)
	if err != nil {
		return domain.Position{}, err
	}
	e.record(audit.EventOpen, idea.Symbol, audit.NewOpenInfo(pos))
	if e.metrics != nil {
		e.metrics.PositionsOpened.WithLabelValues(string(pos.Side)).Inc()
	}
	e.logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry", pos.Entry),
		zap.Float64("stop", pos.Stop),
		zap.Float64("target", pos.Target),
		zap.Float64("risk_usd", pos.RiskUSD),
	)
	return pos, nil
}

// settle books exit legs and returns the number of terminal closes.
func (e *Engine) settle(tsMs int64, fills []lifecycle.Fill) int {
	closed := 0
	for _, f := range fills {
		sym := f.Position.Symbol
		if f.LossLocked {
			e.recordLock(sym)
		}
		if f.Kind != lifecycle.FillClose {
			e.record(audit.EventPartial, sym, audit.NewFillInfo(f))
			continue
		}
		closed++
		rec := f.Record
		e.tracker.AddTrade(rec.NetPnL)
		snap := e.tracker.Snapshot()
		e.edgeNow.Store(&snap)
		if e.cfg.CooldownCandles > 0 {
			e.ledger.SetCooldown(sym, risk.CooldownUntil(tsMs, e.cfg))
		}

		e.record(audit.EventClose, sym, audit.NewFillInfo(f))
		e.record(audit.EventRollup, sym, audit.RollupInfo(e.ledger.Rollup()))
		e.record(audit.EventFees, sym, audit.FeesInfo(e.ledger.Fees(e.cfg.OffRampSpreadPct, e.cfg.OffRampFixedUSD)))
		if f.Effect.RiskCutActivated || f.Effect.RiskCutDeactivated {
			e.record(audit.EventRiskCut, sym, audit.RiskCutInfo{
				Active:    e.ledger.RiskCutActive(),
				Remaining: e.ledger.RiskCutRemaining(),
				Anchor:    e.ledger.RiskCutAnchor(),
				Recovered: f.Effect.Recovered,
			})
		}
		if e.metrics != nil {
			e.metrics.RecordClose(rec.ExitReason, rec.NetPnL, rec.NetR)
		}
		e.persist(rec)
		e.logger.Info("position closed",
			zap.String("id", rec.TradeID),
			zap.String("symbol", rec.Symbol),
			zap.String("reason", rec.ExitReason),
			zap.Float64("net_pnl", rec.NetPnL),
			zap.Float64("net_r", rec.NetR),
		)
	}
	return closed
}

// persist writes rec to the trade store. A failed write is logged and
// never undoes the close.
func (e *Engine) persist(rec *domain.TradeRecord) {
	if e.trades == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tradeWriteTimeout)
	defer cancel()
	if err := e.trades.Insert(ctx, rec); err != nil {
		e.logger.Warn("persist trade", zap.String("id", rec.TradeID), zap.Error(err))
	}
}

// checkLocks arms the daily and from-high drawdown locks after a tick.
func (e *Engine) checkLocks(nowMs int64) {
	if e.ledger.Locked() {
		return
	}
	cfg := e.cfg
	if cfg.MaxDailyDD > 0 {
		if dd := e.ledger.DailyDrawdownPct(); dd >= cfg.MaxDailyDD {
			e.ledger.Lock(ledger.LockDD, fmt.Sprintf("daily drawdown %.2f%% >= %.2f%%", dd, cfg.MaxDailyDD))
			e.recordLock("")
			return
		}
	}
	if cfg.MaxDD > 0 {
		if dd := e.ledger.DrawdownFromHigh(); dd >= cfg.MaxDD {
			e.ledger.Lock(ledger.LockDD, fmt.Sprintf("drawdown from high %.2f%% >= %.2f%%", dd*100, cfg.MaxDD*100))
			e.recordLock("")
		}
	}
}

// finish publishes the tick statistics and reports slow ticks.
func (e *Engine) finish(rep *TickReport) {
	n := e.ticks.Add(1)
	status := "ok"
	errCount := len(multierr.Errors(rep.Err))
	if errCount > 0 {
		status = "error"
		e.logger.Warn("tick finished with errors",
			zap.Int("errors", errCount),
			zap.Error(rep.Err),
		)
	}
	if rep.Duration > e.slowTick {
		e.record(audit.EventSlowTick, "", audit.TickInfo{
			DurationMs: rep.Duration.Milliseconds(),
			Symbols:    len(rep.Symbols),
			Errors:     errCount,
			Skipped:    e.skipped.Load(),
		})
	}

	e.mu.Lock()
	e.lastTick = *rep
	st := e.statusLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordTick(status, rep.Duration.Seconds(), e.clock().Unix())
		e.metrics.UpdateAccount(st.Ledger.Cash, st.Equity, st.DrawdownFromHigh, st.Ledger.Locked, st.OpenPositions, st.Pending)
	}
	e.logger.Debug("tick finished",
		zap.Int64("tick", n),
		zap.Duration("duration", rep.Duration),
		zap.Int("evaluated", rep.Evaluated),
		zap.Int("opened", rep.Opened),
		zap.Int("queued", rep.Queued),
		zap.Int("closed", rep.Closed),
	)
}

// OnKline applies a stream update to the open positions of its symbol.
func (e *Engine) OnKline(u marketdata.KlineUpdate) {
	if u.Bar.Close <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.book.HasOpen(u.Symbol) {
		return
	}
	e.settle(e.clock().UnixMilli(), e.book.Advance(u.Symbol, lifecycle.PriceObservation(u.Bar.Close, u.Bar.TimestampMs), e.cfg))
	if e.metrics != nil {
		e.metrics.StreamUpdates.Inc()
	}
}

func (e *Engine) recordLock(symbol string) {
	lt, reason := e.ledger.LockInfo()
	e.record(audit.EventLock, symbol, audit.LockInfo{LockType: lt, Reason: reason, Cash: e.ledger.Cash()})
	e.logger.Warn("entries locked", zap.String("lock_type", string(lt)), zap.String("reason", reason))
}

func (e *Engine) record(t audit.EventType, symbol string, payload zapcore.ObjectMarshaler) {
	e.recorder.Record(audit.Event{
		Type:    t,
		RunID:   e.runID,
		Symbol:  symbol,
		TsMs:    e.clock().UnixMilli(),
		Payload: payload,
	})
}

func pendingInfo(idea Idea, action string) audit.PendingInfo {
	return audit.PendingInfo{ID: idea.ID, Action: action, Side: idea.Side, Score: idea.Score}
}
