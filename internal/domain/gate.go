package domain

// GateResult is the outcome of one risk check.
type GateResult struct {
	OK          bool
	Gate        string
	Reason      string             // empty when OK
	Diagnostics map[string]float64 // numeric context for audit
}

// Pass returns a passing result for gate.
func Pass(gate string) GateResult {
	return GateResult{OK: true, Gate: gate}
}

// Veto returns a failing result with diagnostics.
func Veto(gate, reason string, diag map[string]float64) GateResult {
	return GateResult{Gate: gate, Reason: reason, Diagnostics: diag}
}

// Gate names
const (
	GateAdmission   = "ADMISSION"
	GateTrend       = "TREND"
	GateChop        = "CHOP"
	GateMTF         = "MTF"
	GateCorrelation = "CORRELATION"
	GatePullback    = "PULLBACK"
	GateRewardRisk  = "REWARD_RISK"
	GateCostEdge    = "COST_EDGE"
	GateEV          = "EXPECTED_VALUE"
	GateRollingEdge = "ROLLING_EDGE"
	GateKillSwitch  = "KILL_SWITCH"
	GateTradeGuard  = "TRADE_GUARD"
)

// Gate reason codes
const (
	ReasonLocked           = "LOCKED"
	ReasonKillSwitchActive = "KILL_SWITCH_ACTIVE"
	ReasonDailyDD          = "DAILY_DD"
	ReasonMaxOpen          = "MAX_OPEN"
	ReasonWeeklyLimit      = "WEEKLY_LIMIT"
	ReasonDDBreaker        = "DD_BREAKER"
	ReasonTurnoverCap      = "TURNOVER_CAP"
	ReasonCooldown         = "COOLDOWN"
	ReasonSignalHold       = "SIGNAL_HOLD"
	ReasonTrendOnlyLong    = "TREND_ONLY_LONG"
	ReasonLongOnly         = "LONG_ONLY"
	ReasonNoRepeat         = "NO_REPEAT"

	ReasonTrendInsufficient = "TREND_GATE_INSUF"
	ReasonTrendATRInsuff    = "TREND_GATE_ATR_INSUF"
	ReasonTrendMA200        = "TREND_GATE_MA200"
	ReasonTrendSlope        = "TREND_GATE_SLOPE"
	ReasonTrendATRExp       = "TREND_GATE_ATR_EXP"

	ReasonChopInsufficient = "CHOP_BLOCK_INSUF"
	ReasonChopTrend        = "CHOP_BLOCK_TREND"
	ReasonChopMASep        = "CHOP_BLOCK_MA_SEP"
	ReasonChopATR          = "CHOP_BLOCK_ATR"

	ReasonMTFFetchError = "MTF_FETCH_ERROR"
	ReasonMTFNotAligned = "MTF_NOT_ALIGNED"

	ReasonCorrExposure = "CORR_EXPOSURE"

	ReasonPullbackInsufficient = "PULLBACK_INSUF"
	ReasonPullbackNotTouched   = "PULLBACK_NOT_TOUCHED"
	ReasonPullbackNoConfirm    = "PULLBACK_NO_CONFIRM"

	ReasonRRBelowMin  = "RR_BELOW_MIN"
	ReasonCostEdgeLow = "COST_EDGE_LOW"
	ReasonNetRLow     = "NET_R_LOW"
	ReasonEVNegative  = "EV_NEGATIVE"

	ReasonEdgeInsufficient = "EDGE_INSUF"
	ReasonEdgeExpectancy   = "EDGE_EXPECTANCY"
	ReasonEdgeWinRate      = "EDGE_WINRATE"

	ReasonKillSwitchSlippage = "KILL_SWITCH_SLIPPAGE"
)
