package risk

import (
	"context"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
)

const (
	trendMinBars     = 220
	trendSlopeBars   = 5
	atrAverageWindow = 20
	chopMinBars      = 60
)

// TrendGate requires price above a rising MA200 with expanding ATR.
// Enabled by TrendOnly.
type TrendGate struct{}

// Name implements Gate.
func (TrendGate) Name() string { return domain.GateTrend }

// Check implements Gate.
func (g TrendGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.TrendOnly {
		return domain.Pass(g.Name())
	}
	if in.Series.Len() < trendMinBars {
		return domain.Veto(g.Name(), domain.ReasonTrendInsufficient, map[string]float64{"bars": float64(in.Series.Len())})
	}

	closes := in.Series.Closes()
	n := len(closes) - 1
	ma200 := indicator.SMA(closes, 200)
	m, ok := indicator.At(ma200, n)
	mPrev, okPrev := indicator.At(ma200, n-trendSlopeBars)
	if !ok || !okPrev {
		return domain.Veto(g.Name(), domain.ReasonTrendInsufficient, nil)
	}
	price := closes[n]
	if price <= m {
		return domain.Veto(g.Name(), domain.ReasonTrendMA200, map[string]float64{"price": price, "ma200": m})
	}

	slope := (m - mPrev) / math.Max(1e-9, math.Abs(mPrev))
	if slope <= cfg.TrendSlopeMin {
		return domain.Veto(g.Name(), domain.ReasonTrendSlope, map[string]float64{"slope": slope, "min": cfg.TrendSlopeMin})
	}

	atrs := indicator.ATRSeries(in.Series.Highs(), in.Series.Lows(), closes, orInt(cfg.ATRPeriod, 14))
	atr, okATR := indicator.At(atrs, n)
	avg, okAvg := indicator.MeanLast(atrs, atrAverageWindow, n)
	if !okATR || !okAvg || avg <= 0 {
		return domain.Veto(g.Name(), domain.ReasonTrendATRInsuff, nil)
	}
	ratio := atr / avg
	if ratio <= cfg.ATRExpansionMinRatio {
		return domain.Veto(g.Name(), domain.ReasonTrendATRExp, map[string]float64{"atr_ratio": ratio, "min": cfg.ATRExpansionMinRatio})
	}
	return domain.Pass(g.Name())
}

// ChopGate blocks flat, low-volatility markets. Enabled by RegimeChopBlock.
type ChopGate struct{}

// Name implements Gate.
func (ChopGate) Name() string { return domain.GateChop }

// Check implements Gate.
func (g ChopGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.RegimeChopBlock {
		return domain.Pass(g.Name())
	}
	if in.Series.Len() < chopMinBars {
		return domain.Veto(g.Name(), domain.ReasonChopInsufficient, map[string]float64{"bars": float64(in.Series.Len())})
	}

	closes := in.Series.Closes()
	n := len(closes) - 1
	price := math.Max(1e-9, closes[n])

	e9, ok9 := indicator.Last(indicator.EMA(closes, 9))
	e21, ok21 := indicator.Last(indicator.EMA(closes, 21))
	ts := 0.0
	if ok9 && ok21 {
		ts = math.Abs(e9-e21) / price
	}
	if ts < cfg.MinTrendStrengthGate {
		return domain.Veto(g.Name(), domain.ReasonChopTrend, map[string]float64{"trend_strength": ts, "min": cfg.MinTrendStrengthGate})
	}

	m20, _ := indicator.Last(indicator.SMA(closes, 20))
	m50, _ := indicator.Last(indicator.SMA(closes, 50))
	sep := math.Abs(m20-m50) / price
	if sep < cfg.MinMASeparationPct {
		return domain.Veto(g.Name(), domain.ReasonChopMASep, map[string]float64{"ma_sep": sep, "min": cfg.MinMASeparationPct})
	}

	atr, _ := indicator.ATR(in.Series.Highs(), in.Series.Lows(), closes, orInt(cfg.ATRPeriod, 14))
	atrPct := atr / price
	if atrPct < cfg.MinATRPctGate {
		return domain.Veto(g.Name(), domain.ReasonChopATR, map[string]float64{"atr_pct": atrPct, "min": cfg.MinATRPctGate})
	}
	return domain.Pass(g.Name())
}
