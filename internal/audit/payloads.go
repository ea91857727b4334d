package audit

import (
	"sort"

	"go.uber.org/zap/zapcore"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
	"trend-edge-lab/internal/lifecycle"
)

// RunInfo describes a run start or stop.
type RunInfo struct {
	Mode        string // live, backtest, grid
	Model       domain.ModelType
	Interval    string
	Symbols     []string
	InitialCash float64
	Profile     string
	Cash        float64 // at stop
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r RunInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("mode", r.Mode)
	enc.AddString("model", string(r.Model))
	enc.AddString("interval", r.Interval)
	enc.AddString("profile", r.Profile)
	enc.AddFloat64("initial_cash", r.InitialCash)
	enc.AddFloat64("cash", r.Cash)
	return enc.AddArray("symbols", stringArray(r.Symbols))
}

// DecisionInfo is the audited part of a model decision.
type DecisionInfo struct {
	Model         domain.ModelType
	Signal        domain.Signal
	Score         float64
	Confidence    float64
	Reason        string
	Last          float64
	ATRPct        float64
	TrendStrength float64
	Regime        domain.Regime
}

// NewDecisionInfo extracts the audited fields of d.
func NewDecisionInfo(d *domain.Decision) DecisionInfo {
	return DecisionInfo{
		Model:         d.Model,
		Signal:        d.Signal,
		Score:         d.Score,
		Confidence:    d.Confidence,
		Reason:        d.Reason,
		Last:          d.Last,
		ATRPct:        d.ATRPct,
		TrendStrength: d.TrendStrength,
		Regime:        d.Regime,
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (d DecisionInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("model", string(d.Model))
	enc.AddString("signal", string(d.Signal))
	enc.AddFloat64("score", d.Score)
	enc.AddFloat64("confidence", d.Confidence)
	enc.AddString("reason", d.Reason)
	enc.AddFloat64("last", d.Last)
	enc.AddFloat64("atr_pct", d.ATRPct)
	enc.AddFloat64("trend_strength", d.TrendStrength)
	if d.Regime != "" {
		enc.AddString("regime", string(d.Regime))
	}
	return nil
}

// VetoInfo is a refused entry.
type VetoInfo domain.GateResult

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (v VetoInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("gate", v.Gate)
	enc.AddString("reason", v.Reason)
	if len(v.Diagnostics) == 0 {
		return nil
	}
	return enc.AddObject("diag", floatMap(v.Diagnostics))
}

// OpenInfo is an executed entry.
type OpenInfo struct {
	PositionID string
	Side       domain.Signal
	Model      domain.ModelType
	Entry      float64
	Stop       float64
	Target     float64
	Qty        float64
	RiskUSD    float64
	RiskMult   float64
	FeeUSD     float64
	Score      float64
}

// NewOpenInfo builds the entry payload of p.
func NewOpenInfo(p domain.Position) OpenInfo {
	return OpenInfo{
		PositionID: p.ID,
		Side:       p.Side,
		Model:      p.Model,
		Entry:      p.Entry,
		Stop:       p.Stop,
		Target:     p.Target,
		Qty:        p.Qty,
		RiskUSD:    p.RiskUSD,
		RiskMult:   p.RiskMult,
		FeeUSD:     p.FeeEntryTotal,
		Score:      p.Score,
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (o OpenInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("position_id", o.PositionID)
	enc.AddString("side", string(o.Side))
	enc.AddString("model", string(o.Model))
	enc.AddFloat64("entry", o.Entry)
	enc.AddFloat64("stop", o.Stop)
	enc.AddFloat64("target", o.Target)
	enc.AddFloat64("qty", o.Qty)
	enc.AddFloat64("risk_usd", o.RiskUSD)
	enc.AddFloat64("risk_mult", o.RiskMult)
	enc.AddFloat64("fee_usd", o.FeeUSD)
	enc.AddFloat64("score", o.Score)
	return nil
}

// FillInfo is one exit leg.
type FillInfo struct {
	PositionID    string
	Kind          lifecycle.FillKind
	Reason        string
	Price         float64
	Qty           float64
	GrossPnL      float64
	FeeExit       float64
	FeeEntryAlloc float64
	Tax           float64
	NetPnL        float64 // terminal fills only
	NetR          float64 // terminal fills only
}

// NewFillInfo builds the payload of f.
func NewFillInfo(f lifecycle.Fill) FillInfo {
	info := FillInfo{
		PositionID:    f.Position.ID,
		Kind:          f.Kind,
		Reason:        f.Reason,
		Price:         f.Price,
		Qty:           f.Qty,
		GrossPnL:      f.GrossPnL,
		FeeExit:       f.FeeExit,
		FeeEntryAlloc: f.FeeEntryAlloc,
		Tax:           f.Tax,
	}
	if f.Record != nil {
		info.NetPnL = f.Record.NetPnL
		info.NetR = f.Record.NetR
	}
	return info
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (f FillInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("position_id", f.PositionID)
	enc.AddString("kind", string(f.Kind))
	enc.AddString("reason", f.Reason)
	enc.AddFloat64("price", f.Price)
	enc.AddFloat64("qty", f.Qty)
	enc.AddFloat64("gross_pnl", f.GrossPnL)
	enc.AddFloat64("fee_exit", f.FeeExit)
	enc.AddFloat64("fee_entry_alloc", f.FeeEntryAlloc)
	enc.AddFloat64("tax", f.Tax)
	if f.Kind == lifecycle.FillClose {
		enc.AddFloat64("net_pnl", f.NetPnL)
		enc.AddFloat64("net_r", f.NetR)
	}
	return nil
}

// RollupInfo is the running profile emitted after each close.
type RollupInfo ledger.Rollup

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r RollupInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("trades", r.Trades)
	enc.AddFloat64("win_rate_pct", r.WinRatePct)
	enc.AddFloat64("avg_win_usd", r.AvgWinUSD)
	enc.AddFloat64("avg_loss_usd", r.AvgLossUSD)
	enc.AddFloat64("profit_factor", r.ProfitFactor)
	enc.AddFloat64("realized_usd", r.RealizedUSD)
	enc.AddFloat64("fees_usd", r.FeesUSD)
	enc.AddFloat64("tax_reserved", r.TaxReserved)
	enc.AddFloat64("tax_paid", r.TaxPaid)
	return nil
}

// FeesInfo is the gross/net balance decomposition.
type FeesInfo ledger.FeesSnapshot

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (f FeesInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("fees_usd", f.FeesUSD)
	enc.AddFloat64("tax_reserved_usd", f.TaxReservedUSD)
	enc.AddFloat64("tax_paid_usd", f.TaxPaidUSD)
	enc.AddFloat64("gross_usd", f.GrossUSD)
	enc.AddFloat64("net_usd", f.NetUSD)
	enc.AddFloat64("off_ramp_usd", f.OffRampUSD)
	enc.AddFloat64("net_after_off_usd", f.NetAfterOffUSD)
	return nil
}

// LockInfo is a lock transition.
type LockInfo struct {
	LockType ledger.LockType
	Reason   string
	Cash     float64
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (l LockInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("lock_type", string(l.LockType))
	enc.AddString("reason", l.Reason)
	enc.AddFloat64("cash", l.Cash)
	return nil
}

// KillSwitchInfo is a kill-switch arming.
type KillSwitchInfo struct {
	UntilMs int64
	Reason  string
	SlipUSD float64
	SlipPct float64
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (k KillSwitchInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("until_ms", k.UntilMs)
	enc.AddString("reason", k.Reason)
	enc.AddFloat64("slip_usd", k.SlipUSD)
	enc.AddFloat64("slip_pct", k.SlipPct)
	return nil
}

// RiskCutInfo is a risk-cut transition.
type RiskCutInfo struct {
	Active    bool
	Remaining int
	Anchor    float64
	Recovered bool
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (r RiskCutInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("active", r.Active)
	enc.AddInt("remaining", r.Remaining)
	enc.AddFloat64("anchor", r.Anchor)
	enc.AddBool("recovered", r.Recovered)
	return nil
}

// TickInfo describes one live tick.
type TickInfo struct {
	DurationMs int64
	Symbols    int
	Errors     int
	Skipped    int64
	Error      string
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (t TickInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("duration_ms", t.DurationMs)
	enc.AddInt("symbols", t.Symbols)
	enc.AddInt("errors", t.Errors)
	enc.AddInt64("skipped", t.Skipped)
	if t.Error != "" {
		enc.AddString("error", t.Error)
	}
	return nil
}

// UniverseInfo is a refreshed symbol list.
type UniverseInfo struct {
	Mode    domain.UniverseMode
	Symbols []string
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (u UniverseInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("mode", string(u.Mode))
	return enc.AddArray("symbols", stringArray(u.Symbols))
}

// PendingInfo is a pending-idea transition.
type PendingInfo struct {
	ID     string
	Action string // ADDED, ACCEPTED, REJECTED, EXPIRED
	Side   domain.Signal
	Score  float64
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (p PendingInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", p.ID)
	enc.AddString("action", p.Action)
	enc.AddString("side", string(p.Side))
	enc.AddFloat64("score", p.Score)
	return nil
}

// BacktestInfo summarizes a finished replay.
type BacktestInfo struct {
	Trades              int
	NetProfit           float64
	WinRate             float64
	Expectancy          float64
	MaxDrawdown         float64
	DominantBlockReason string
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (b BacktestInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("trades", b.Trades)
	enc.AddFloat64("net_profit", b.NetProfit)
	enc.AddFloat64("win_rate", b.WinRate)
	enc.AddFloat64("expectancy", b.Expectancy)
	enc.AddFloat64("max_drawdown", b.MaxDrawdown)
	if b.DominantBlockReason != "" {
		enc.AddString("dominant_block_reason", b.DominantBlockReason)
	}
	return nil
}

// GridInfo summarizes a finished grid search.
type GridInfo struct {
	TotalCombos    int
	ValidCount     int
	BestExpectancy float64
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (g GridInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("total_combos", g.TotalCombos)
	enc.AddInt("valid_count", g.ValidCount)
	enc.AddFloat64("best_expectancy", g.BestExpectancy)
	return nil
}

func stringArray(values []string) zapcore.ArrayMarshalerFunc {
	return func(enc zapcore.ArrayEncoder) error {
		for _, v := range values {
			enc.AppendString(v)
		}
		return nil
	}
}

func floatMap(m map[string]float64) zapcore.ObjectMarshalerFunc {
	return func(enc zapcore.ObjectEncoder) error {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			enc.AddFloat64(k, m[k])
		}
		return nil
	}
}
