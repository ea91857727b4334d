package domain

// BacktestRun summarizes one replay for later comparison.
// Corresponds to the backtest_runs table.
type BacktestRun struct {
	RunID               string
	Symbol              string
	Interval            string
	Model               ModelType
	CreatedAtMs         int64
	Bars                int
	Trades              int
	NetProfit           float64
	WinRate             float64
	Expectancy          float64
	MaxDrawdown         float64
	FinalEquity         float64
	DominantBlockReason string
	ConfigYAML          string // effective configuration
}
