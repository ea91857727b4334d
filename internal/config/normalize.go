package config

import (
	"math"

	"trend-edge-lab/internal/domain"
)

// MaxRiskFraction is the largest per-trade risk fraction, the GROWTH_100
// preset's value.
const MaxRiskFraction = 0.03

// Normalize clamps every tunable into its supported range and repairs
// unknown enum values. Zero keeps its "disabled" meaning where a field
// documents one.
func Normalize(cfg domain.Config) domain.Config {
	c := cfg
	c.Symbols = append([]string(nil), cfg.Symbols...)

	c.Limit = clampInt(c.Limit, 60, 1000)
	c.LoopSec = clampInt(c.LoopSec, 2, 3600)
	c.FetchConcurrency = clampInt(c.FetchConcurrency, 1, 20)
	c.TopN = clampInt(c.TopN, 1, 20)
	c.BestRefreshMin = clampInt(c.BestRefreshMin, 1, 60)
	c.MaxPending = clampInt(c.MaxPending, 1, 100)
	if c.InitialCash <= 0 {
		c.InitialCash = 100
	}

	switch c.UniverseMode {
	case domain.UniverseFixed, domain.UniverseTopN:
	default:
		c.UniverseMode = domain.UniverseFixed
	}
	switch c.Mode {
	case domain.TradeModeAuto, domain.TradeModeAsk:
	default:
		c.Mode = domain.TradeModeAuto
	}
	switch c.FeeMode {
	case domain.FeeModeStandard, domain.FeeModeBNB, domain.FeeModeCustom:
	default:
		c.FeeMode = domain.FeeModeStandard
	}

	c.RiskFraction = clamp(c.RiskFraction, 0.001, MaxRiskFraction)
	c.MaxOpen = clampInt(c.MaxOpen, 1, 20)
	if c.MaxDailyDD > 0 {
		c.MaxDailyDD = clamp(c.MaxDailyDD, 0.3, 99)
	}
	c.CooldownCandles = clampInt(c.CooldownCandles, 0, 200)

	c.ATRPeriod = clampInt(c.ATRPeriod, 7, 50)
	c.ATRStop = clamp(c.ATRStop, 0.2, 12)
	c.ATRTarget = clamp(c.ATRTarget, 0.5, 20)
	c.ATRTrail = clamp(c.ATRTrail, 0, 20)
	c.BreakEvenR = clamp(c.BreakEvenR, 0, 10)
	c.TimeStopCandles = clampInt(c.TimeStopCandles, 1, 200)
	c.PartialAtR = clamp(c.PartialAtR, 0.1, 10)
	c.PartialPct = clamp(c.PartialPct, 0.01, 0.90)
	c.AutoProfitPct = clamp(c.AutoProfitPct, 0.01, 20)

	c.SlopeLookback = clampInt(c.SlopeLookback, 1, 200)
	c.BreakoutLookback = clampInt(c.BreakoutLookback, 2, 200)
	c.ChopSlopeNorm = math.Max(0, c.ChopSlopeNorm)
	c.BullSlopeNorm = math.Max(0, c.BullSlopeNorm)
	c.StopATRMult = clamp(c.StopATRMult, 0.2, 12)
	c.RTarget = clamp(c.RTarget, 0.5, 20)
	c.StopMinPct = clamp(c.StopMinPct, 0, 0.2)
	c.FeeRate = clamp(c.FeeRate, 0, 0.01)
	c.SlippageRate = clamp(c.SlippageRate, 0, 0.01)

	c.CustomFeePct = clamp(c.CustomFeePct, 0, 1)
	c.SpreadBps = clamp(c.SpreadBps, 0, 100)
	c.SlippageBps = clamp(c.SlippageBps, 0, 200)
	c.LatencyMs = clamp(c.LatencyMs, 0, 10_000)
	c.LatencyBpsPerSec = clamp(c.LatencyBpsPerSec, 0, 50)
	c.EdgeMinPct = clamp(c.EdgeMinPct, 0, 5)
	c.TaxPct = clamp(c.TaxPct, 0, 50)

	c.MinRR = math.Max(1.0, c.MinRR)
	c.MTFMinTrendStrength = math.Max(0, c.MTFMinTrendStrength)
	c.CorrLookback = clampInt(c.CorrLookback, 20, 200)
	c.CorrMin = clamp(c.CorrMin, 0, 0.99)
	c.CorrMaxOpenSameSide = clampInt(c.CorrMaxOpenSameSide, 1, 20)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
