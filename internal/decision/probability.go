package decision

import (
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
)

const (
	probWarmup          = 220
	probChannelBars     = 20
	probSlopeBars       = 5
	probATRAvgWindow    = 20
	probATRPeriod       = 14
	probDefaultLookAhd  = 50
	probDefaultMinOcc   = 30
	probDefaultRR       = 2.0
	probDefaultMinProb  = 0.55
	probDefaultStopMult = 1.8
	probDefaultStopPct  = 0.001
)

// ProbabilityModel estimates the historical hit rate of a bracket placed on
// every past occurrence of its breakout trigger, and signals BUY when the
// trigger fires on the last bar and the hit rate clears the threshold.
type ProbabilityModel struct{}

// NewProbabilityModel creates a new ProbabilityModel.
func NewProbabilityModel() *ProbabilityModel {
	return &ProbabilityModel{}
}

// Name returns the model identifier.
func (m *ProbabilityModel) Name() domain.ModelType {
	return domain.ModelProbability
}

// probParams resolves the configured bracket geometry.
type probParams struct {
	lookAhead int
	minOcc    int
	rr        float64
	minProb   float64
	stopMult  float64
	stopPct   float64
}

func newProbParams(cfg *domain.Config) probParams {
	p := probParams{
		lookAhead: cfg.ProbLookAhead,
		minOcc:    cfg.ProbMinOccurrences,
		rr:        cfg.ProbRR,
		minProb:   cfg.ProbMinProbability,
		stopMult:  cfg.StopATRMult,
		stopPct:   cfg.StopMinPct,
	}
	if p.lookAhead <= 0 {
		p.lookAhead = probDefaultLookAhd
	}
	if p.minOcc <= 0 {
		p.minOcc = probDefaultMinOcc
	}
	if p.rr <= 0 {
		p.rr = probDefaultRR
	}
	if p.minProb <= 0 {
		p.minProb = probDefaultMinProb
	}
	if p.stopMult <= 0 {
		p.stopMult = probDefaultStopMult
	}
	if p.stopPct <= 0 {
		p.stopPct = probDefaultStopPct
	}
	return p
}

// Evaluate scores the last bar.
func (m *ProbabilityModel) Evaluate(series *domain.BarSeries, cfg *domain.Config) domain.Decision {
	if series.Len() <= probWarmup {
		return holdFor(domain.ModelProbability, series, domain.ReasonInsufficientData)
	}

	in := newIndicatorSet(series)
	n := len(in.closes) - 1
	params := newProbParams(cfg)

	ma200 := indicator.SMA(in.closes, 200)
	atr14 := indicator.ATRSeries(in.highs, in.lows, in.closes, probATRPeriod)

	d := holdFor(domain.ModelProbability, series, "")
	if v, ok := indicator.At(ma200, n); ok {
		d.MA200 = domain.Float(v)
		d.RegimeBull = in.closes[n] > v
		d.RegimeBear = in.closes[n] < v
	}
	if v, ok := indicator.At(atr14, n); ok {
		d.ATR = domain.Float(v)
		d.ATRPct = v / math.Max(1e-9, in.closes[n])
	}

	occ, wins := 0, 0
	for i := probWarmup; i < n; i++ {
		if !probTrigger(in, ma200, atr14, i) {
			continue
		}
		win, counted := resolveBracket(in, atr14, i, n, params)
		if !counted {
			continue
		}
		occ++
		if win {
			wins++
		}
	}
	d.Occurrences = occ
	d.Wins = wins
	d.Triggered = probTrigger(in, ma200, atr14, n)

	if occ < params.minOcc {
		d.Reason = domain.ReasonInsufficientOccurrences
		d.Reasons = []string{d.Reason}
		return d
	}

	prob := float64(wins) / float64(occ)
	d.Probability = domain.Float(prob)
	d.Score = prob * 100

	switch {
	case !d.Triggered:
		d.Reason = domain.ReasonNoTrigger
	case prob < params.minProb:
		d.Reason = domain.ReasonProbabilityLow
	default:
		d.Signal = domain.SignalBuy
		d.Reason = domain.ReasonProbabilityEdge
		d.Confidence = prob
	}
	d.Reasons = []string{d.Reason}
	return d
}

// probTrigger reports whether bar i closes above a rising MA200 and the prior
// 20-bar high with ATR above its recent positive average.
func probTrigger(in indicatorSet, ma200, atr14 []float64, i int) bool {
	if i < probChannelBars || i-probSlopeBars < 0 {
		return false
	}
	mNow, ok := indicator.At(ma200, i)
	if !ok {
		return false
	}
	mPrev, ok := indicator.At(ma200, i-probSlopeBars)
	if !ok {
		return false
	}
	c := in.closes[i]
	if c <= mNow || mNow <= mPrev {
		return false
	}
	if c <= indicator.MaxRange(in.highs, i-probChannelBars, i-1) {
		return false
	}
	atrNow, ok := indicator.At(atr14, i)
	if !ok {
		return false
	}
	avg, ok := indicator.MeanPositive(atr14, i-probATRAvgWindow+1, i)
	if !ok {
		avg = atrNow
	}
	return atrNow > avg
}

// resolveBracket walks forward from bar i. The stop is tested before the
// target on every bar. A window that expires unresolved counts as a non-win;
// a window cut short by the end of history is not counted.
func resolveBracket(in indicatorSet, atr14 []float64, i, n int, p probParams) (win, counted bool) {
	entry := in.closes[i]
	atr, _ := indicator.At(atr14, i)
	dist := math.Max(atr*p.stopMult, entry*p.stopPct)
	stop := entry - dist
	target := entry + p.rr*dist

	end := i + p.lookAhead
	if end > n {
		end = n
	}
	for j := i + 1; j <= end; j++ {
		if in.lows[j] <= stop {
			return false, true
		}
		if in.highs[j] >= target {
			return true, true
		}
	}
	return false, i+p.lookAhead <= n
}

var _ Model = (*ProbabilityModel)(nil)
