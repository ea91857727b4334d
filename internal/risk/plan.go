package risk

import (
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
)

// Replay geometry floors.
const (
	ReplayATRFloorPct = 0.003
	minStopDistance   = 1e-9
)

// Plan is the geometry and size of a candidate entry.
type Plan struct {
	Side     domain.Signal
	Entry    float64
	Stop     float64
	Target   float64
	ATR      float64
	RiskMult float64
	RiskUSD  float64
	Qty      float64
	Notional float64
}

// StopDistance returns |entry - stop|.
func (p Plan) StopDistance() float64 {
	return math.Abs(p.Entry - p.Stop)
}

// RewardRisk returns |target - entry| / |entry - stop|.
func (p Plan) RewardRisk() float64 {
	return math.Abs(p.Target-p.Entry) / math.Max(minStopDistance, p.StopDistance())
}

// Valid reports whether the plan has a usable geometry.
func (p Plan) Valid() bool {
	return p.Entry > 0 && p.StopDistance() > minStopDistance && (p.Side == domain.SignalBuy || p.Side == domain.SignalSell)
}

// PlanLive places stop and target at ATRStop and ATRTarget multiples of ATR
// around the last price. ok is false without a usable ATR.
func PlanLive(d *domain.Decision, cfg *domain.Config) (Plan, bool) {
	atr := d.ATRValue()
	if !(atr > 0) || !(d.Last > 0) || !d.IsEntry() {
		return Plan{}, false
	}
	dir := d.Signal.Dir()
	return Plan{
		Side:   d.Signal,
		Entry:  d.Last,
		Stop:   d.Last - dir*atr*orFloat(cfg.ATRStop, 2.6),
		Target: d.Last + dir*atr*orFloat(cfg.ATRTarget, 3.2),
		ATR:    atr,
	}, true
}

// PlanReplay places the stop at max(ATR*StopATRMult, price*StopMinPct) and
// the target at RTarget stop distances. ATR is floored at 0.3% of price.
func PlanReplay(d *domain.Decision, cfg *domain.Config) (Plan, bool) {
	if !(d.Last > 0) || !d.IsEntry() {
		return Plan{}, false
	}
	atr := math.Max(d.ATRValue(), d.Last*ReplayATRFloorPct)
	dist := math.Max(atr*orFloat(cfg.StopATRMult, 1.8), d.Last*orFloat(cfg.StopMinPct, 0.001))
	dir := d.Signal.Dir()
	return Plan{
		Side:   d.Signal,
		Entry:  d.Last,
		Stop:   d.Last - dir*dist,
		Target: d.Last + dir*dist*orFloat(cfg.RTarget, 2.5),
		ATR:    atr,
	}, true
}

// RiskMultiplier combines the sizing reductions: 0.5 when the EMAs
// contradict the regime, the profit-protection factor and the loss-streak
// risk cut. The result is clamped to [0.1, 1].
func RiskMultiplier(d *domain.Decision, l *ledger.Ledger, cfg *domain.Config) float64 {
	mult := 1.0
	if d.EMA9 != nil && d.EMA21 != nil {
		up := *d.EMA9 > *d.EMA21
		if (d.RegimeBull && !up) || (d.RegimeBear && up) {
			mult *= 0.5
		}
	}
	if l != nil {
		if cfg.ProfitProtectOn {
			mult *= l.ProfitProtectionFactor(cfg.ProfitProtectGiveback, cfg.ProfitProtectFactor)
		}
		mult *= l.RiskCutMultiplier()
	}
	return math.Max(0.1, math.Min(1, mult))
}

// Size fills the risk budget of p, cash * riskFraction * multiplier, and the
// implied quantity and notional. The budget is never raised above that
// product; an empty account yields a zero budget.
func Size(p Plan, cash, riskFraction, mult float64) Plan {
	if mult <= 0 {
		mult = 1
	}
	p.RiskMult = mult
	p.RiskUSD = math.Max(0, cash) * math.Max(0, riskFraction) * mult
	p.Qty = p.RiskUSD / math.Max(minStopDistance, p.StopDistance())
	p.Notional = p.Qty * p.Entry
	return p
}
