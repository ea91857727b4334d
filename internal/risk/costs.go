package risk

import (
	"context"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/lifecycle"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultEVMinTrades       = 30
	DefaultEVWinRate         = 0.52
	DefaultEdgeWindowTrades  = 20
	DefaultKillSwitchCandles = 6
)

// RewardRiskGate requires the planned reward/risk to reach MinRR.
type RewardRiskGate struct{}

// Name implements Gate.
func (RewardRiskGate) Name() string { return domain.GateRewardRisk }

// Check implements Gate.
func (g RewardRiskGate) Check(_ context.Context, in *Input) domain.GateResult {
	rr := in.Plan.RewardRisk()
	if in.Config.MinRR > 0 && rr < in.Config.MinRR {
		return domain.Veto(g.Name(), domain.ReasonRRBelowMin, map[string]float64{"rr": rr, "min": in.Config.MinRR})
	}
	return domain.Pass(g.Name())
}

// CostEdgeGate requires the expected move to clear round-trip fees,
// execution costs and EdgeMinPct, and optionally a minimum net R.
type CostEdgeGate struct{}

// Name implements Gate.
func (CostEdgeGate) Name() string { return domain.GateCostEdge }

// Check implements Gate.
func (g CostEdgeGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	p := in.Plan
	entry := math.Max(1e-9, p.Entry)
	movePct := math.Abs(p.Target-p.Entry) / entry * 100
	stopPct := p.StopDistance() / entry * 100
	feeRT := 2 * lifecycle.FeePct(cfg)
	execRT := 2 * lifecycle.ExecCostPctOneWay(cfg)
	need := feeRT + execRT + math.Max(0, cfg.EdgeMinPct)

	if movePct < need {
		return domain.Veto(g.Name(), domain.ReasonCostEdgeLow, map[string]float64{
			"move_pct": movePct,
			"need_pct": need,
			"fee_rt":   feeRT,
			"exec_rt":  execRT,
		})
	}
	if cfg.MinNetRTarget > 0 {
		netR := (movePct - feeRT - execRT) / math.Max(1e-9, stopPct)
		if netR < cfg.MinNetRTarget {
			return domain.Veto(g.Name(), domain.ReasonNetRLow, map[string]float64{"net_r": netR, "min": cfg.MinNetRTarget})
		}
	}
	return domain.Pass(g.Name())
}

// ExpectedValueGate requires a positive expected value after round-trip
// costs and estimated tax. Enabled by EVGateOn.
type ExpectedValueGate struct{}

// Name implements Gate.
func (ExpectedValueGate) Name() string { return domain.GateEV }

// Check implements Gate.
func (g ExpectedValueGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.EVGateOn {
		return domain.Pass(g.Name())
	}
	ev := ExpectedValue(in)
	if ev.EV <= 0 {
		return domain.Veto(g.Name(), domain.ReasonEVNegative, map[string]float64{
			"ev":       ev.EV,
			"p_win":    ev.PWin,
			"avg_win":  ev.AvgWin,
			"avg_loss": ev.AvgLoss,
			"fees":     ev.FeesUSD,
			"tax":      ev.TaxUSD,
		})
	}
	return domain.Pass(g.Name())
}

// EVEstimate is the expected-value breakdown of a planned entry.
type EVEstimate struct {
	PWin    float64
	AvgWin  float64
	AvgLoss float64
	FeesUSD float64
	TaxUSD  float64
	EV      float64
}

// ExpectedValue estimates the trade EV. The win rate comes from the ledger
// once EVMinTrades legs are booked, otherwise EVDefaultWinRate; averages come
// from the ledger when both sides have history, otherwise from the plan.
func ExpectedValue(in *Input) EVEstimate {
	cfg := in.Config
	p := in.Plan
	est := EVEstimate{PWin: orFloat(cfg.EVDefaultWinRate, DefaultEVWinRate)}

	est.AvgWin = p.Qty * math.Abs(p.Target-p.Entry)
	est.AvgLoss = p.Qty * p.StopDistance()
	if in.Ledger != nil {
		wins, losses, avgWin, avgLoss := in.Ledger.GrossStats()
		if total := wins + losses; total >= orInt(cfg.EVMinTrades, DefaultEVMinTrades) {
			est.PWin = float64(wins) / float64(total)
			if wins > 0 && losses > 0 {
				est.AvgWin, est.AvgLoss = avgWin, avgLoss
			}
		}
	}

	rtPct := 2*lifecycle.FeePct(cfg) + 2*lifecycle.ExecCostPctOneWay(cfg)
	est.FeesUSD = math.Abs(p.Notional) * rtPct / 100
	gross := est.PWin*est.AvgWin - (1-est.PWin)*est.AvgLoss
	if cfg.TaxOn {
		est.TaxUSD = math.Max(0, gross) * math.Max(0, cfg.TaxPct) / 100
	}
	est.EV = gross - est.FeesUSD - est.TaxUSD
	return est
}

// RollingEdgeGate requires a positive recent track record. Enabled by
// EdgeGating.
type RollingEdgeGate struct{}

// Name implements Gate.
func (RollingEdgeGate) Name() string { return domain.GateRollingEdge }

// Check implements Gate.
func (g RollingEdgeGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.EdgeGating || in.Ledger == nil {
		return domain.Pass(g.Name())
	}
	r := in.Ledger.Rolling(orInt(cfg.EdgeWindowTrades, DefaultEdgeWindowTrades))
	diag := map[string]float64{"trades": float64(r.Count), "expectancy": r.Expectancy, "win_rate": r.WinRate}
	switch {
	case r.Count == 0:
		return domain.Veto(g.Name(), domain.ReasonEdgeInsufficient, diag)
	case r.Expectancy <= cfg.MinRollingExpectancyUSD:
		return domain.Veto(g.Name(), domain.ReasonEdgeExpectancy, diag)
	case cfg.MinRollingWinRate > 0 && r.WinRate < cfg.MinRollingWinRate:
		return domain.Veto(g.Name(), domain.ReasonEdgeWinRate, diag)
	}
	return domain.Pass(g.Name())
}

// KillSwitchGate vetoes entries whose estimated slippage exceeds the
// configured limits. The veto carries suspend_bars, which Pipeline.Run arms
// on the ledger.
type KillSwitchGate struct{}

// Name implements Gate.
func (KillSwitchGate) Name() string { return domain.GateKillSwitch }

// Check implements Gate.
func (g KillSwitchGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.KillSwitchOn() {
		return domain.Pass(g.Name())
	}
	rate := SlippageRate(cfg)
	slipUSD := math.Abs(in.Plan.Notional) * rate
	breach := (cfg.MaxSlippagePct > 0 && rate > cfg.MaxSlippagePct) ||
		(cfg.MaxSlippageUSD > 0 && slipUSD > cfg.MaxSlippageUSD)
	if breach {
		return domain.Veto(g.Name(), domain.ReasonKillSwitchSlippage, map[string]float64{
			"slip_pct":     rate,
			"slip_usd":     slipUSD,
			"suspend_bars": float64(orInt(cfg.KillSwitchCandles, DefaultKillSwitchCandles)),
		})
	}
	return domain.Pass(g.Name())
}

// SlippageRate returns the modelled one-way slippage as a fraction: the
// configured SlippageRate, or the execution model's shift when unset.
func SlippageRate(cfg *domain.Config) float64 {
	if cfg.SlippageRate > 0 {
		return cfg.SlippageRate
	}
	return lifecycle.AdverseBps(cfg) / 10_000
}
