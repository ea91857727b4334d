package config

import (
	"trend-edge-lab/internal/domain"
)

// ProfileDefault is the profile name of Default.
const ProfileDefault = "IA_AVANCADO"

// Default returns the live engine configuration.
func Default() domain.Config {
	return domain.Config{
		Profile:          ProfileDefault,
		Symbols:          []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT"},
		Interval:         "5m",
		Limit:            300,
		LoopSec:          10,
		FetchConcurrency: 5,
		UniverseMode:     domain.UniverseFixed,
		TopN:             6,
		BestRefreshMin:   10,
		Mode:             domain.TradeModeAuto,
		ScoreAutoOnAsk:   9.0,
		MaxPending:       30,
		InitialCash:      100,

		Model: domain.ModelScore,

		ScoreMin:         7.0,
		MinTrendStrength: 0.0006,
		MinATRPct:        0.003,
		ATRPeriod:        14,

		SlopeLookback:    80,
		ChopSlopeNorm:    0.05,
		BullSlopeNorm:    0.10,
		BreakoutLookback: 12,
		MinMomentum:      0.001,
		EdgeMinTrades:    30,
		EdgeWindow:       50,

		ProbLookAhead:      50,
		ProbMinOccurrences: 30,
		ProbRR:             2,
		ProbMinProbability: 0.55,

		StopATRMult: 1.8,
		RTarget:     2.5,
		StopMinPct:  0.001,
		FeeRate:     0.001,

		RiskFraction:          0.01,
		MaxDailyDD:            1.8,
		MaxOpen:               20,
		CooldownCandles:       3,
		NoRepeat:              true,
		MaxConsecutiveLosses:  2,
		ProfitProtectOn:       true,
		ProfitProtectGiveback: 0.35,
		ProfitProtectFactor:   0.5,

		ATRStop:   2.6,
		ATRTarget: 3.2,
		MinRR:     1.15,

		ATRTrail:         2.4,
		BreakEvenR:       1.5,
		TimeStopOn:       true,
		TimeStopCandles:  18,
		PartialOn:        true,
		PartialAtR:       1.2,
		PartialPct:       0.35,
		BEAfterPartialOn: true,
		AutoProfitPct:    0.45,

		FeeMode:          domain.FeeModeStandard,
		CustomFeePct:     0.10,
		SpreadBps:        4,
		SlippageBps:      2,
		LatencyMs:        200,
		LatencyBpsPerSec: 1,
		EdgeMinPct:       0.10,
		TaxOn:            true,
		TaxPct:           15,
		TaxApplyCash:     true,

		MTFConfirmOn:        true,
		MTFInterval:         "15m",
		MTFMinTrendStrength: 0.0009,
		CorrFilterOn:        true,
		CorrLookback:        40,
		CorrMin:             0.72,
		CorrMaxOpenSameSide: 3,
		EVGateOn:            true,
		EVMinTrades:         30,
		EVDefaultWinRate:    0.52,
		EdgeWindowTrades:    20,
		KillSwitchCandles:   6,

		LossStreakCutAfter:  3,
		LossStreakCutFactor: 0.5,
		LossStreakCutTrades: 5,
	}
}

// DefaultBacktest returns the replay configuration: the live defaults with
// account limits that need wall-clock days, the MTF and correlation gates,
// taxes and the optional lifecycle steps switched off. Position geometry
// comes from StopATRMult, RTarget and StopMinPct.
func DefaultBacktest() domain.Config {
	cfg := Default()
	cfg.Profile = "BACKTEST"
	cfg.Interval = "1h"
	cfg.Model = domain.ModelMomentum

	cfg.MaxDailyDD = 0
	cfg.MaxDD = 0
	cfg.MaxOpen = 1
	cfg.MaxTradesPerWeek = 0
	cfg.MaxTurnoverPerDayPct = 0
	cfg.CooldownCandles = 0
	cfg.NoRepeat = false
	cfg.MaxConsecutiveLosses = 0
	cfg.ProfitProtectOn = false

	cfg.MTFConfirmOn = false
	cfg.CorrFilterOn = false
	cfg.EVGateOn = false
	cfg.EdgeMinPct = 0

	cfg.ATRTrail = 0
	cfg.BreakEvenR = 0
	cfg.TimeStopOn = false
	cfg.PartialOn = false
	cfg.BEAfterPartialOn = false
	cfg.AutoProfitOn = false
	cfg.TaxOn = false
	return cfg
}
