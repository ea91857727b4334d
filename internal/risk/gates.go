// Package risk decides whether an entry signal may become a position. Admit
// applies the account pre-gates, Pipeline runs the ordered market gates and
// stops at the first veto, and the planning helpers derive stop, target and
// the sized risk budget.
//
// Expected refusals are GateResults carrying a reason code, never errors.
package risk

import (
	"context"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
)

// MTFSnapshot is the higher-timeframe trend state of one symbol.
type MTFSnapshot struct {
	Interval      string
	OK            bool // indicators present and trend strong enough
	Bull          bool // price above MA200
	EMA9          float64
	EMA21         float64
	MA200         float64
	TrendStrength float64
	FetchedAtMs   int64
}

// Aligned reports whether the snapshot confirms a long entry.
func (s MTFSnapshot) Aligned() bool {
	return s.OK && s.Bull && s.EMA9 > s.EMA21
}

// MTFSource provides higher-timeframe snapshots.
type MTFSource interface {
	Snapshot(ctx context.Context, symbol, interval string) (MTFSnapshot, error)
}

// ReturnsSource provides the cached return vector of a symbol.
type ReturnsSource interface {
	Returns(symbol, interval string) ([]float64, bool)
}

// Input is everything the gates read for one candidate entry.
type Input struct {
	Decision *domain.Decision
	Series   *domain.BarSeries
	Config   *domain.Config
	Ledger   *ledger.Ledger
	Open     []domain.Position
	Plan     Plan
	MTF      MTFSource     // optional; a nil source fails the MTF gate closed
	Returns  ReturnsSource // optional; nil skips the correlation comparison
	NowMs    int64
}

func (in *Input) side() domain.Signal {
	if in.Decision == nil {
		return domain.SignalHold
	}
	return in.Decision.Signal
}

// Gate is one ordered check of the pipeline.
type Gate interface {
	Name() string
	Check(ctx context.Context, in *Input) domain.GateResult
}

// Result is the pipeline verdict. Checked lists every evaluated gate in
// order; on a veto the last entry is the failing one.
type Result struct {
	OK      bool
	Veto    domain.GateResult
	Checked []domain.GateResult
}

// Reason returns the veto reason, empty when the entry passed.
func (r Result) Reason() string {
	if r.OK {
		return ""
	}
	return r.Veto.Reason
}

// Pipeline runs gates strictly in order.
type Pipeline struct {
	gates []Gate
}

// NewPipeline builds a pipeline over gates.
func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

// DefaultPipeline returns the standard gate order: trend, chop, MTF,
// correlation, pullback, reward/risk, cost edge, expected value, rolling edge
// and the slippage kill switch.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		TrendGate{},
		ChopGate{},
		MTFGate{},
		CorrelationGate{},
		PullbackGate{},
		RewardRiskGate{},
		CostEdgeGate{},
		ExpectedValueGate{},
		RollingEdgeGate{},
		KillSwitchGate{},
	)
}

// Gates returns the gate names in evaluation order.
func (p *Pipeline) Gates() []string {
	names := make([]string, len(p.gates))
	for i, g := range p.gates {
		names[i] = g.Name()
	}
	return names
}

// Run evaluates the gates and stops at the first veto. A kill-switch veto
// arms the ledger suspension before returning.
func (p *Pipeline) Run(ctx context.Context, in *Input) Result {
	res := Result{OK: true}
	for _, g := range p.gates {
		if err := ctx.Err(); err != nil {
			res.OK = false
			res.Veto = domain.Veto(g.Name(), "CANCELLED", nil)
			return res
		}
		gr := g.Check(ctx, in)
		res.Checked = append(res.Checked, gr)
		if gr.OK {
			continue
		}
		res.OK = false
		res.Veto = gr
		if gr.Gate == domain.GateKillSwitch && in.Ledger != nil {
			bars := int64(gr.Diagnostics["suspend_bars"])
			until := in.NowMs + bars*barMs(in.Config)
			in.Ledger.ArmKillSwitch(until, gr.Reason)
		}
		return res
	}
	return res
}

func barMs(cfg *domain.Config) int64 {
	if cfg == nil {
		return domain.DefaultIntervalMs
	}
	return domain.IntervalMs(cfg.Interval)
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return def
	}
	return v
}
