package domain

// FeeMode selects the exchange fee schedule.
type FeeMode string

// Fee modes.
const (
	FeeModeStandard FeeMode = "STANDARD"
	FeeModeBNB      FeeMode = "BNB"
	FeeModeCustom   FeeMode = "CUSTOM"
)

// TradeMode controls whether ideas open automatically or wait for acceptance.
type TradeMode string

// Trade modes.
const (
	TradeModeAuto TradeMode = "AUTO"
	TradeModeAsk  TradeMode = "ASK"
)

// UniverseMode selects how the live symbol list is built.
type UniverseMode string

// Universe modes.
const (
	UniverseFixed UniverseMode = "FIXED"
	UniverseTopN  UniverseMode = "TOPN"
)

// Config is the immutable parameter record for one run. Every component reads
// the copy it was handed; derived configurations are produced with
// config.ApplyOverrides, never by mutation.
type Config struct {
	Profile string `yaml:"profile"` // informational profile/preset name

	// Universe and loop
	Symbols          []string     `yaml:"symbols"`
	Interval         string       `yaml:"interval"`
	Limit            int          `yaml:"limit"`            // bars fetched per tick
	LoopSec          int          `yaml:"loopSec"`          // live tick period
	FetchConcurrency int          `yaml:"fetchConcurrency"` // parallel symbol fetches per tick
	UniverseMode     UniverseMode `yaml:"universeMode"`
	TopN             int          `yaml:"topN"`
	BestRefreshMin   int          `yaml:"bestRefreshMin"`
	Mode             TradeMode    `yaml:"mode"`
	ScoreAutoOnAsk   float64      `yaml:"scoreAutoOnAsk"` // ASK mode auto-opens at or above this score
	MaxPending       int          `yaml:"maxPending"`
	InitialCash      float64      `yaml:"initialCash"`
	TestMode         bool         `yaml:"testMode"`

	// Model selection
	Model ModelType `yaml:"model"`

	// Baseline scorer
	ScoreMin         float64 `yaml:"scoreMin"`
	MinTrendStrength float64 `yaml:"minTrendStrength"`
	MinATRPct        float64 `yaml:"minAtrPct"`
	ATRPeriod        int     `yaml:"atrPeriod"`

	// Momentum model
	SlopeLookback        int     `yaml:"slopeLookback"`
	ChopSlopeNorm        float64 `yaml:"chopSlopeNorm"`
	BullSlopeNorm        float64 `yaml:"bullSlopeNorm"`
	BreakoutLookback     int     `yaml:"breakoutLookback"`
	MinMomentum          float64 `yaml:"minMomentum"`
	EdgeMinTrades        int     `yaml:"edgeMinTrades"`
	EdgeWindow           int     `yaml:"edgeWindow"`
	MomentumRequiresProb bool    `yaml:"momentumRequiresProb"`

	// Probability model
	ProbLookAhead      int     `yaml:"probLookAhead"`
	ProbMinOccurrences int     `yaml:"probMinOccurrences"`
	ProbRR             float64 `yaml:"probRR"`
	ProbMinProbability float64 `yaml:"probMinProbability"`

	// Backtest entry geometry
	StopATRMult  float64 `yaml:"stopAtrMult"`
	RTarget      float64 `yaml:"rTarget"`
	StopMinPct   float64 `yaml:"stopMinPct"`
	FeeRate      float64 `yaml:"feeRate"`      // per side, fraction
	SlippageRate float64 `yaml:"slippageRate"` // per side, fraction; 0 selects the per-model default

	// Sizing and account limits
	RiskFraction          float64 `yaml:"riskFraction"` // of cash per trade
	MaxDailyDD            float64 `yaml:"maxDailyDD"`   // percent of day anchor, 0 disables
	MaxDD                 float64 `yaml:"maxDD"`        // fraction of high-water mark, 0 disables
	MaxOpen               int     `yaml:"maxOpen"`
	MaxTradesPerWeek      int     `yaml:"maxTradesPerWeek"`
	MaxTurnoverPerDayPct  float64 `yaml:"maxTurnoverPerDayPct"` // percent of cash, 0 disables
	CooldownCandles       int     `yaml:"cooldownCandles"`
	NoRepeat              bool    `yaml:"noRepeat"`
	MaxConsecutiveLosses  int     `yaml:"maxConsecutiveLosses"`
	ProfitProtectOn       bool    `yaml:"profitProtectOn"`
	ProfitProtectGiveback float64 `yaml:"profitProtectGiveback"` // fraction of day profit
	ProfitProtectFactor   float64 `yaml:"profitProtectFactor"`

	// Stop/target planning (live)
	ATRStop   float64 `yaml:"atrStop"`
	ATRTarget float64 `yaml:"atrTarget"`
	MinRR     float64 `yaml:"minRR"`

	// Lifecycle steps
	ATRTrail         float64 `yaml:"atrTrail"` // 0 disables trailing
	BreakEvenR       float64 `yaml:"breakEvenR"`
	TimeStopOn       bool    `yaml:"timeStopOn"`
	TimeStopCandles  int     `yaml:"timeStopCandles"`
	PartialOn        bool    `yaml:"partialOn"`
	PartialAtR       float64 `yaml:"partialAtR"`
	PartialPct       float64 `yaml:"partialPct"` // fraction of quantity
	BEAfterPartialOn bool    `yaml:"beAfterPartialOn"`
	AutoProfitOn     bool    `yaml:"autoProfitOn"`
	AutoProfitPct    float64 `yaml:"autoProfitPct"` // percent of notional

	// Execution costs
	FeeMode          FeeMode `yaml:"feeMode"`
	CustomFeePct     float64 `yaml:"customFeePct"` // percent per side
	SpreadBps        float64 `yaml:"spreadBps"`
	SlippageBps      float64 `yaml:"slippageBps"`
	LatencyMs        float64 `yaml:"latencyMs"`
	LatencyBpsPerSec float64 `yaml:"latencyBpsPerSec"`
	EdgeMinPct       float64 `yaml:"edgeMinPct"`    // required move beyond round-trip costs, percent
	MinNetRTarget    float64 `yaml:"minNetRTarget"` // 0 disables
	TaxOn            bool    `yaml:"taxOn"`
	TaxPct           float64 `yaml:"taxPct"`
	TaxApplyCash     bool    `yaml:"taxApplyCash"`
	OffRampSpreadPct float64 `yaml:"offRampSpreadPct"`
	OffRampFixedUSD  float64 `yaml:"offRampFixedUsd"`

	// Gates
	TrendOnly               bool    `yaml:"trendOnly"`
	TrendSlopeMin           float64 `yaml:"trendSlopeMin"`
	ATRExpansionMinRatio    float64 `yaml:"atrExpansionMinRatio"`
	RegimeChopBlock         bool    `yaml:"regimeChopBlock"`
	MinTrendStrengthGate    float64 `yaml:"minTrendStrengthGate"`
	MinMASeparationPct      float64 `yaml:"minMaSeparationPct"`
	MinATRPctGate           float64 `yaml:"minAtrPctGate"`
	MTFConfirmOn            bool    `yaml:"mtfConfirmOn"`
	MTFInterval             string  `yaml:"mtfInterval"`
	MTFMinTrendStrength     float64 `yaml:"mtfMinTrendStrength"`
	CorrFilterOn            bool    `yaml:"corrFilterOn"`
	CorrLookback            int     `yaml:"corrLookback"`
	CorrMin                 float64 `yaml:"corrMin"`
	CorrMaxOpenSameSide     int     `yaml:"corrMaxOpenSameSide"`
	RequirePullbackEntry    bool    `yaml:"requirePullbackEntry"`
	EVGateOn                bool    `yaml:"evGateOn"`
	EVMinTrades             int     `yaml:"evMinTrades"`
	EVDefaultWinRate        float64 `yaml:"evDefaultWinRate"`
	EdgeGating              bool    `yaml:"edgeGating"`
	EdgeWindowTrades        int     `yaml:"edgeWindowTrades"`
	MinRollingExpectancyUSD float64 `yaml:"minRollingExpectancyUsd"`
	MinRollingWinRate       float64 `yaml:"minRollingWinRate"` // 0 disables
	MaxSlippagePct          float64 `yaml:"maxSlippagePct"`    // fraction, 0 disables
	MaxSlippageUSD          float64 `yaml:"maxSlippageUsd"`    // 0 disables
	KillSwitchCandles       int     `yaml:"killSwitchCandles"`

	// Loss-streak risk cut
	LossStreakRiskCutOn bool    `yaml:"lossStreakRiskCutOn"`
	LossStreakCutAfter  int     `yaml:"lossStreakCutAfter"`
	LossStreakCutFactor float64 `yaml:"lossStreakCutFactor"`
	LossStreakCutTrades int     `yaml:"lossStreakCutTrades"`
}

// KillSwitchOn reports whether any slippage limit is configured.
func (c *Config) KillSwitchOn() bool {
	return c.MaxSlippagePct > 0 || c.MaxSlippageUSD > 0
}
