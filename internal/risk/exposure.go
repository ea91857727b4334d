package risk

import (
	"context"
	"math"
	"sort"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
)

// MTFMinBars is the history a higher-timeframe snapshot is computed from.
const MTFMinBars = 220

// BuildMTFSnapshot derives the higher-timeframe trend state from series.
func BuildMTFSnapshot(series *domain.BarSeries, minTrendStrength float64, nowMs int64) MTFSnapshot {
	snap := MTFSnapshot{Interval: series.Interval, FetchedAtMs: nowMs}
	closes := series.Closes()
	if len(closes) == 0 {
		return snap
	}
	price := closes[len(closes)-1]
	m200, okM := indicator.Last(indicator.SMA(closes, 200))
	e9, ok9 := indicator.Last(indicator.EMA(closes, 9))
	e21, ok21 := indicator.Last(indicator.EMA(closes, 21))
	snap.MA200, snap.EMA9, snap.EMA21 = m200, e9, e21
	if !okM || !ok9 || !ok21 {
		return snap
	}
	snap.TrendStrength = math.Abs(e9-e21) / math.Max(1e-9, price)
	snap.Bull = price > m200
	snap.OK = snap.TrendStrength >= minTrendStrength
	return snap
}

// MTFGate confirms long entries on a higher timeframe. Enabled by
// MTFConfirmOn; SELL entries pass.
type MTFGate struct{}

// Name implements Gate.
func (MTFGate) Name() string { return domain.GateMTF }

// Check implements Gate.
func (g MTFGate) Check(ctx context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.MTFConfirmOn || in.side() != domain.SignalBuy {
		return domain.Pass(g.Name())
	}
	if in.MTF == nil {
		return domain.Veto(g.Name(), domain.ReasonMTFFetchError, nil)
	}
	interval := cfg.MTFInterval
	if interval == "" {
		interval = "15m"
	}
	snap, err := in.MTF.Snapshot(ctx, in.Series.Symbol, interval)
	if err != nil {
		return domain.Veto(g.Name(), domain.ReasonMTFFetchError, nil)
	}
	if !snap.Aligned() {
		return domain.Veto(g.Name(), domain.ReasonMTFNotAligned, map[string]float64{
			"trend_strength": snap.TrendStrength,
			"ema9":           snap.EMA9,
			"ema21":          snap.EMA21,
			"ma200":          snap.MA200,
		})
	}
	return domain.Pass(g.Name())
}

// CorrelationGate limits correlated exposure on one side. Enabled by
// CorrFilterOn; it only compares once CorrMaxOpenSameSide distinct symbols
// are already open on the candidate's side.
type CorrelationGate struct{}

// Name implements Gate.
func (CorrelationGate) Name() string { return domain.GateCorrelation }

// Check implements Gate.
func (g CorrelationGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.CorrFilterOn {
		return domain.Pass(g.Name())
	}

	side := in.side()
	self := in.Series.Symbol
	seen := make(map[string]struct{})
	for _, p := range in.Open {
		if p.Side == side && p.Symbol != self {
			seen[p.Symbol] = struct{}{}
		}
	}
	if len(seen) < orInt(cfg.CorrMaxOpenSameSide, 3) {
		return domain.Pass(g.Name())
	}

	mine := indicator.Returns(in.Series.Closes(), orInt(cfg.CorrLookback, 40))
	if len(mine) < 10 || in.Returns == nil {
		return domain.Pass(g.Name())
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	limit := orFloat(cfg.CorrMin, 0.72)
	for _, s := range symbols {
		theirs, ok := in.Returns.Returns(s, in.Series.Interval)
		if !ok {
			continue
		}
		c, ok := indicator.Pearson(mine, theirs)
		if ok && c >= limit {
			return domain.Veto(g.Name(), domain.ReasonCorrExposure, map[string]float64{
				"corr":      c,
				"min":       limit,
				"same_side": float64(len(seen)),
			})
		}
	}
	return domain.Pass(g.Name())
}
