package domain

// Signal is the direction a model recommends.
type Signal string

// Signal values.
const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Dir returns +1 for BUY, -1 for SELL and 0 otherwise.
func (s Signal) Dir() float64 {
	switch s {
	case SignalBuy:
		return 1
	case SignalSell:
		return -1
	default:
		return 0
	}
}

// ModelType identifies a decision model.
type ModelType string

// Model identifiers.
const (
	ModelScore       ModelType = "score"
	ModelMomentum    ModelType = "momentum"
	ModelProbability ModelType = "prob"
)

// Regime classifies the long-term trend.
type Regime string

// Regime values.
const (
	RegimeBull    Regime = "BULL"
	RegimeNonBull Regime = "NON_BULL"
	RegimeChop    Regime = "CHOP"
)

// Decision reason codes
const (
	ReasonInsufficientData        = "INSUFFICIENT_DATA"
	ReasonScoreSetup              = "SCORE_SETUP"
	ReasonScoreLow                = "SCORE_LOW"
	ReasonFilterTrendWeak         = "FILTER_TREND_WEAK"
	ReasonFilterLowVol            = "FILTER_LOW_VOL"
	ReasonRegimeChop              = "REGIME_CHOP"
	ReasonRegimeNonBull           = "REGIME_NON_BULL"
	ReasonBreakoutFail            = "BREAKOUT_2OF3_FAIL"
	ReasonEdgeNegative            = "EDGE_NEGATIVE"
	ReasonMomentumNA              = "MOMENTUM_NA"
	ReasonMomentumWeak            = "MOMENTUM_WEAK"
	ReasonNeedsProbConfirmation   = "NEEDS_PROB_CONFIRMATION"
	ReasonMomentumSetup           = "MOMENTUM_SETUP"
	ReasonInsufficientOccurrences = "INSUFFICIENT_OCCURRENCES"
	ReasonNoTrigger               = "NO_TRIGGER"
	ReasonProbabilityLow          = "PROBABILITY_LOW"
	ReasonProbabilityEdge         = "PROBABILITY_EDGE"
)

// Decision is the canonical output of every model. Fields a model does not
// compute stay at their zero value; optional indicators are nil when unavailable.
type Decision struct {
	Model      ModelType
	Symbol     string
	Interval   string
	Signal     Signal
	Score      float64 // baseline: 0..10, momentum: 0..100
	Confidence float64 // 0..1
	Reason     string  // primary reason code
	Reasons    []string

	// Last bar
	Last        float64
	TimestampMs int64

	// Indicators
	ATR           *float64
	ATRPct        float64
	EMA9          *float64
	EMA21         *float64
	MA200         *float64
	RSI14         *float64
	TrendStrength float64 // |EMA9-EMA21| / price

	// Regime
	Regime     Regime
	RegimeBull bool
	RegimeBear bool
	SlopeNorm  float64

	// Momentum model
	Breakout          bool
	BreakoutPass      bool
	ATRExpansion      bool
	VolumeExpansion   bool
	Momentum          *float64
	EdgeOK            bool
	RollingExpectancy float64
	EdgeTrades        int

	// Probability model
	Probability *float64
	Occurrences int
	Wins        int
	Triggered   bool
}

// IsEntry reports whether the decision recommends opening a position.
func (d *Decision) IsEntry() bool {
	return d.Signal == SignalBuy || d.Signal == SignalSell
}

// ATRValue returns ATR or 0 when unavailable.
func (d *Decision) ATRValue() float64 {
	if d.ATR == nil {
		return 0
	}
	return *d.ATR
}

// Hold builds a HOLD decision with a single reason.
func Hold(model ModelType, symbol, reason string) Decision {
	return Decision{
		Model:   model,
		Symbol:  symbol,
		Signal:  SignalHold,
		Reason:  reason,
		Reasons: []string{reason},
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
