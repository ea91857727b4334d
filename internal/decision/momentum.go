package decision

import (
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
	"trend-edge-lab/internal/indicator"
)

const (
	momentumMinBars         = 320
	momentumMinRegimeBars   = 220
	momentumMinSlopeLB      = 10
	momentumExpansionWindow = 20
	momentumMinReturnBars   = 60
	momentumATRPeriod       = 14
)

// Momentum score weights
const (
	weightBull     = 35.0
	weightBreakout = 20.0
	weightATRExp   = 10.0
	weightVolExp   = 10.0
	weightMomentum = 25.0
	weightEdge     = 5.0
	momentumScale  = 350.0
	momentumMaxPts = 100.0
)

// MomentumModel combines a long-term regime filter, a breakout confirmed by
// ATR or volume expansion, weighted multi-horizon momentum and the
// rolling edge of recent trades.
type MomentumModel struct {
	edge    EdgeSource
	confirm Model
}

// NewMomentumModel creates a momentum model. src may be nil.
func NewMomentumModel(src EdgeSource) *MomentumModel {
	return &MomentumModel{
		edge:    src,
		confirm: NewProbabilityModel(),
	}
}

// Name returns the model identifier.
func (m *MomentumModel) Name() domain.ModelType {
	return domain.ModelMomentum
}

// Evaluate scores the last bar.
func (m *MomentumModel) Evaluate(series *domain.BarSeries, cfg *domain.Config) domain.Decision {
	if series.Len() < momentumMinBars {
		return holdFor(domain.ModelMomentum, series, domain.ReasonInsufficientData)
	}

	in := newIndicatorSet(series)
	n := len(in.closes) - 1
	price := in.closes[n]

	ma200 := indicator.SMA(in.closes, 200)
	atr14 := indicator.ATRSeries(in.highs, in.lows, in.closes, momentumATRPeriod)

	d := holdFor(domain.ModelMomentum, series, "")
	d.Reasons = nil

	regime, slopeNorm := classifyRegime(in.closes, ma200, atr14, cfg)
	d.Regime = regime
	d.SlopeNorm = slopeNorm
	d.RegimeBull = regime == domain.RegimeBull
	if v, ok := indicator.At(ma200, n); ok {
		d.MA200 = domain.Float(v)
		d.RegimeBear = price < v
	}
	if v, ok := indicator.At(atr14, n); ok {
		d.ATR = domain.Float(v)
		d.ATRPct = v / math.Max(1e-9, price)
	}

	atrNow, _ := indicator.At(atr14, n)
	atrAvg, _ := indicator.MeanLast(atr14, momentumExpansionWindow, n)
	volAvg, _ := indicator.MeanLast(in.volumes, momentumExpansionWindow, n)
	d.ATRExpansion = atrNow > atrAvg
	d.VolumeExpansion = in.volumes[n] > volAvg

	lookback := cfg.BreakoutLookback
	if lookback <= 0 {
		lookback = 12
	}
	d.Breakout = in.highs[n] >= indicator.MaxRange(in.highs, n-(lookback-1), n)
	d.BreakoutPass = d.Breakout && (d.ATRExpansion || d.VolumeExpansion)

	var mom float64
	hasMom := n >= momentumMinReturnBars
	if hasMom {
		mom = 0.5*indicator.PctChange(in.closes, n, 30) +
			0.3*indicator.PctChange(in.closes, n, 14) +
			0.2*indicator.PctChange(in.closes, n, 7)
		d.Momentum = domain.Float(mom)
	}

	snap := edge.Snapshot{}
	if m.edge != nil {
		snap = m.edge.Snapshot()
	}
	minTrades := cfg.EdgeMinTrades
	if minTrades <= 0 {
		minTrades = 30
	}
	d.EdgeTrades = snap.Trades
	d.RollingExpectancy = snap.Expectancy
	d.EdgeOK = snap.Trades < minTrades || snap.Expectancy > 0

	score := 0.0
	if d.RegimeBull {
		score += weightBull
	}
	if d.Breakout {
		score += weightBreakout
	}
	if d.ATRExpansion {
		score += weightATRExp
	}
	if d.VolumeExpansion {
		score += weightVolExp
	}
	if hasMom {
		score += indicator.Clamp(mom*momentumScale, 0, weightMomentum)
	}
	if d.EdgeOK {
		score += weightEdge
	}
	d.Score = indicator.Clamp(score, 0, momentumMaxPts)
	d.Confidence = d.Score / momentumMaxPts

	switch {
	case regime == domain.RegimeChop:
		d.Reason = domain.ReasonRegimeChop
	case regime != domain.RegimeBull:
		d.Reason = domain.ReasonRegimeNonBull
	case !d.BreakoutPass:
		d.Reason = domain.ReasonBreakoutFail
	case !d.EdgeOK:
		d.Reason = domain.ReasonEdgeNegative
	case !hasMom:
		d.Reason = domain.ReasonMomentumNA
	case mom <= cfg.MinMomentum:
		d.Reason = domain.ReasonMomentumWeak
	case cfg.MomentumRequiresProb && !m.confirmed(series, cfg):
		d.Reason = domain.ReasonNeedsProbConfirmation
	default:
		d.Signal = domain.SignalBuy
		d.Reason = domain.ReasonMomentumSetup
	}
	d.Reasons = []string{d.Reason, "REGIME=" + string(regime)}
	return d
}

func (m *MomentumModel) confirmed(series *domain.BarSeries, cfg *domain.Config) bool {
	pd := m.confirm.Evaluate(series, cfg)
	return pd.Signal == domain.SignalBuy
}

// classifyRegime normalizes the MA200 slope over the configured lookback by
// the current ATR and buckets it into BULL, NON_BULL or CHOP.
func classifyRegime(closes, ma200, atr14 []float64, cfg *domain.Config) (domain.Regime, float64) {
	n := len(closes) - 1
	lb := cfg.SlopeLookback
	if lb <= 0 {
		lb = 80
	}
	if lb < momentumMinSlopeLB {
		lb = momentumMinSlopeLB
	}
	need := 200 + lb
	if need < momentumMinRegimeBars {
		need = momentumMinRegimeBars
	}
	if n < need {
		return domain.RegimeChop, 0
	}

	mNow, ok := indicator.At(ma200, n)
	if !ok {
		return domain.RegimeChop, 0
	}
	mPrev, ok := indicator.At(ma200, n-lb)
	if !ok {
		mPrev = mNow
	}
	atrNow, _ := indicator.At(atr14, n)
	slopeNorm := (mNow - mPrev) / math.Max(1e-9, atrNow)

	switch {
	case math.Abs(slopeNorm) < cfg.ChopSlopeNorm:
		return domain.RegimeChop, slopeNorm
	case closes[n] > mNow && slopeNorm > cfg.BullSlopeNorm:
		return domain.RegimeBull, slopeNorm
	default:
		return domain.RegimeNonBull, slopeNorm
	}
}

var _ Model = (*MomentumModel)(nil)
