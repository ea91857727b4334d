package config

import (
	"fmt"
	"sort"
)

// Preset identifiers.
const (
	PresetNone        = "NONE"
	PresetGrowth100   = "GROWTH_100"
	PresetScale300    = "SCALE_300"
	PresetConsolid700 = "CONSOLID_700"
)

// presets holds the growth-phase overlays keyed by config yaml key.
var presets = map[string]map[string]any{
	PresetGrowth100: {
		"riskFraction":         0.03,
		"maxTradesPerWeek":     6,
		"maxDD":                0.12,
		"minNetRTarget":        2.5,
		"trendOnly":            true,
		"regimeChopBlock":      true,
		"slippageRate":         0.0006,
		"trendSlopeMin":        0.0,
		"atrExpansionMinRatio": 1.0,
		"minTrendStrengthGate": 0.0007,
		"minMaSeparationPct":   0.0014,
		"minAtrPctGate":        0.003,
		"maxTurnoverPerDayPct": 2.8,
		"cooldownCandles":      2,
	},
	PresetScale300: {
		"riskFraction":            0.02,
		"maxTradesPerWeek":        5,
		"maxDD":                   0.10,
		"trendOnly":               true,
		"regimeChopBlock":         true,
		"edgeGating":              true,
		"edgeWindowTrades":        50,
		"minRollingExpectancyUsd": 0.0,
		"slippageRate":            0.0007,
		"trendSlopeMin":           0.0003,
		"atrExpansionMinRatio":    1.03,
		"minTrendStrengthGate":    0.0009,
		"minMaSeparationPct":      0.0018,
		"minAtrPctGate":           0.0032,
		"maxTurnoverPerDayPct":    2.2,
		"cooldownCandles":         3,
		"lossStreakRiskCutOn":     true,
		"lossStreakCutAfter":      3,
		"lossStreakCutFactor":     0.5,
		"lossStreakCutTrades":     5,
	},
	PresetConsolid700: {
		"riskFraction":            0.015,
		"maxTradesPerWeek":        4,
		"maxDD":                   0.08,
		"trendOnly":               true,
		"regimeChopBlock":         true,
		"edgeGating":              true,
		"edgeWindowTrades":        80,
		"minRollingExpectancyUsd": 0.0,
		"minRollingWinRate":       0.48,
		"requirePullbackEntry":    true,
		"slippageRate":            0.0008,
		"trendSlopeMin":           0.0005,
		"atrExpansionMinRatio":    1.06,
		"minTrendStrengthGate":    0.0011,
		"minMaSeparationPct":      0.0022,
		"minAtrPctGate":           0.0035,
		"maxTurnoverPerDayPct":    1.8,
		"cooldownCandles":         4,
		"lossStreakRiskCutOn":     true,
		"lossStreakCutAfter":      3,
		"lossStreakCutFactor":     0.5,
		"lossStreakCutTrades":     5,
		"maxSlippagePct":          0.001,
		"killSwitchCandles":       8,
	},
}

// Presets returns the known preset identifiers in sorted order.
func Presets() []string {
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
