package decision

import (
	"fmt"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/indicator"
)

// Baseline scoring constants
const (
	baselineFastEMA   = 9
	baselineSlowEMA   = 21
	baselineLongSMA   = 200
	baselineRSIPeriod = 14
	baselineMaxScore  = 10.0
	testModeBonus     = 1.5
)

// BaselineModel is the additive 0..10 scorer: trend strength, volatility,
// RSI band, distance from MA200 and 5-bar momentum.
type BaselineModel struct{}

// NewBaselineModel creates a new BaselineModel.
func NewBaselineModel() *BaselineModel {
	return &BaselineModel{}
}

// Name returns the model identifier.
func (m *BaselineModel) Name() domain.ModelType {
	return domain.ModelScore
}

// Evaluate scores the last bar.
func (m *BaselineModel) Evaluate(series *domain.BarSeries, cfg *domain.Config) domain.Decision {
	if series.Len() < 2 {
		return holdFor(domain.ModelScore, series, domain.ReasonInsufficientData)
	}

	in := newIndicatorSet(series)
	n := len(in.closes) - 1
	last := in.closes[n]

	atrPeriod := cfg.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}

	e9, hasE9 := indicator.Last(indicator.EMA(in.closes, baselineFastEMA))
	e21, hasE21 := indicator.Last(indicator.EMA(in.closes, baselineSlowEMA))
	m200, hasM200 := indicator.Last(indicator.SMA(in.closes, baselineLongSMA))
	rsi, hasRSI := indicator.RSI(in.closes, baselineRSIPeriod)
	atr, hasATR := indicator.ATR(in.highs, in.lows, in.closes, atrPeriod)

	d := holdFor(domain.ModelScore, series, "")
	d.Reasons = nil

	bull := hasM200 && last > m200
	bear := hasM200 && last < m200
	switch {
	case !hasM200:
		d.Reasons = append(d.Reasons, "MA200:insuf")
	case bull:
		d.Reasons = append(d.Reasons, "REGIME=BULL")
	default:
		d.Reasons = append(d.Reasons, "REGIME=BEAR")
	}

	score := 0.0

	// Trend strength
	ts := 0.0
	if hasE9 && hasE21 {
		ts = math.Abs(e9-e21) / math.Max(1e-9, last)
		if e9 > e21 {
			d.Reasons = append(d.Reasons, "EMA9>EMA21")
		} else {
			d.Reasons = append(d.Reasons, "EMA9<EMA21")
		}
		d.Reasons = append(d.Reasons, fmt.Sprintf("TS=%.2f%%", ts*100))
		score += math.Min(4, 2.2+(ts/0.002)*1.8)
	} else {
		d.Reasons = append(d.Reasons, "EMA:insuf")
		score += 1.0
	}

	// Volatility
	atrPct := 0.0
	if hasATR {
		atrPct = atr / math.Max(1e-9, last)
		d.Reasons = append(d.Reasons, fmt.Sprintf("ATR%%=%.2f%%", atrPct*100))
		score += indicator.Clamp((atrPct-0.003)/(0.012-0.003), 0, 1) * 2.0
	} else {
		d.Reasons = append(d.Reasons, "ATR:insuf")
		score += 0.4
	}

	// RSI band
	if hasRSI {
		d.Reasons = append(d.Reasons, fmt.Sprintf("RSI14=%.1f", rsi))
		if rsi >= 40 && rsi <= 75 {
			score += 1.8
		} else {
			score += 0.8
		}
	} else {
		d.Reasons = append(d.Reasons, "RSI:insuf")
		score += 0.8
	}

	// Distance from MA200
	if hasM200 {
		dist := math.Abs(last-m200) / math.Max(1e-9, last)
		score += math.Min(2.0, 0.8+dist*8)
		d.Reasons = append(d.Reasons, fmt.Sprintf("MA200D=%.2f%%", dist*100))
	}

	// 5-bar momentum
	if len(in.closes) >= 6 {
		r5 := (in.closes[n] - in.closes[n-5]) / math.Max(1e-9, in.closes[n-5])
		score += math.Min(1.0, math.Abs(r5)*25)
		d.Reasons = append(d.Reasons, fmt.Sprintf("Mom5=%.2f%%", r5*100))
	}

	if cfg.TestMode {
		score += testModeBonus
		d.Reasons = append(d.Reasons, "TEST:+1.5")
	}
	score = indicator.Clamp(score, 0, baselineMaxScore)

	d.Score = score
	d.TrendStrength = ts
	d.ATRPct = atrPct
	d.RegimeBull = bull
	d.RegimeBear = bear
	if bull {
		d.Regime = domain.RegimeBull
	} else {
		d.Regime = domain.RegimeNonBull
	}
	if hasE9 {
		d.EMA9 = domain.Float(e9)
	}
	if hasE21 {
		d.EMA21 = domain.Float(e21)
	}
	if hasM200 {
		d.MA200 = domain.Float(m200)
	}
	if hasRSI {
		d.RSI14 = domain.Float(rsi)
	}
	if hasATR {
		d.ATR = domain.Float(atr)
	}

	complete := hasM200 && hasE9 && hasE21 && hasRSI && hasATR
	switch {
	case !complete:
		d.Reason = domain.ReasonInsufficientData
	case score < cfg.ScoreMin:
		d.Reason = domain.ReasonScoreLow
	case ts < cfg.MinTrendStrength:
		d.Reason = domain.ReasonFilterTrendWeak
	case atrPct < cfg.MinATRPct:
		d.Reason = domain.ReasonFilterLowVol
	case bull:
		d.Signal = domain.SignalBuy
	case bear:
		d.Signal = domain.SignalSell
	default:
		d.Reason = domain.ReasonScoreLow
	}

	if d.IsEntry() {
		d.Reason = domain.ReasonScoreSetup
		d.Confidence = score / baselineMaxScore
	}
	return d
}

var _ Model = (*BaselineModel)(nil)
