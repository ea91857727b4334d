package risk

import (
	"context"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
)

const (
	pullbackMinBars    = 55
	pullbackHighWindow = 10
	pullbackATRBand    = 0.5
	pullbackMinBodyATR = 0.2
)

// PullbackGate requires the entry bar to have retested the value zone and
// closed with a confirming body. Enabled by RequirePullbackEntry. Short
// entries use the mirrored zone below recent lows.
type PullbackGate struct{}

// Name implements Gate.
func (PullbackGate) Name() string { return domain.GatePullback }

// Check implements Gate.
func (g PullbackGate) Check(_ context.Context, in *Input) domain.GateResult {
	cfg := in.Config
	if !cfg.RequirePullbackEntry {
		return domain.Pass(g.Name())
	}
	if in.Series.Len() < pullbackMinBars {
		return domain.Veto(g.Name(), domain.ReasonPullbackInsufficient, map[string]float64{"bars": float64(in.Series.Len())})
	}

	closes := in.Series.Closes()
	highs := in.Series.Highs()
	lows := in.Series.Lows()
	opens := in.Series.Opens()
	n := len(closes) - 1

	m20, ok20 := indicator.Last(indicator.SMA(closes, 20))
	m50, ok50 := indicator.Last(indicator.SMA(closes, 50))
	atr, okATR := indicator.ATR(highs, lows, closes, orInt(cfg.ATRPeriod, 14))
	if !ok20 || !ok50 || !okATR {
		return domain.Veto(g.Name(), domain.ReasonPullbackInsufficient, nil)
	}

	body := closes[n] - opens[n]
	if in.side() == domain.SignalSell {
		recentLow := -indicator.MaxRange(negate(lows), n-pullbackHighWindow, n)
		zone := math.Min(math.Min(m20, m50), recentLow+pullbackATRBand*atr)
		if highs[n] < zone {
			return domain.Veto(g.Name(), domain.ReasonPullbackNotTouched, map[string]float64{"zone": zone, "high": highs[n]})
		}
		if !(body < 0 && -body > pullbackMinBodyATR*atr && closes[n] < closes[n-1]) {
			return domain.Veto(g.Name(), domain.ReasonPullbackNoConfirm, map[string]float64{"body": body, "atr": atr})
		}
		return domain.Pass(g.Name())
	}

	recentHigh := indicator.MaxRange(highs, n-pullbackHighWindow, n)
	zone := math.Max(math.Max(m20, m50), recentHigh-pullbackATRBand*atr)
	if lows[n] > zone {
		return domain.Veto(g.Name(), domain.ReasonPullbackNotTouched, map[string]float64{"zone": zone, "low": lows[n]})
	}
	if !(body > 0 && body > pullbackMinBodyATR*atr && closes[n] > closes[n-1]) {
		return domain.Veto(g.Name(), domain.ReasonPullbackNoConfirm, map[string]float64{"body": body, "atr": atr})
	}
	return domain.Pass(g.Name())
}

func negate(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = -v
	}
	return out
}
