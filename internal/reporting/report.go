package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the backtest comparison report.
type Report struct {
	GeneratedAt time.Time

	// Runs lists every stored run, newest first.
	Runs []RunRow

	// Detail breaks down one selected run; nil when none was selected.
	Detail *RunDetail
}

// RunRow is one stored backtest run. Money columns are rounded to cents.
type RunRow struct {
	RunID               string
	Symbol              string
	Interval            string
	Model               string
	CreatedAtMs         int64
	Bars                int
	Trades              int
	NetProfit           decimal.Decimal
	WinRate             float64
	Expectancy          decimal.Decimal
	MaxDrawdown         float64 // fraction of the equity high-water mark
	FinalEquity         decimal.Decimal
	DominantBlockReason string
}

// RunDetail is the trade-level breakdown of one run.
type RunDetail struct {
	Run         RunRow
	Overall     StatsRow
	Symbols     []StatsRow
	ExitReasons []ReasonCount
}

// StatsRow is the trade statistics of a run or one of its symbols.
type StatsRow struct {
	Label                string
	Trades               int
	WinRate              float64
	NetProfit            decimal.Decimal
	GrossProfit          decimal.Decimal
	GrossLoss            decimal.Decimal
	ProfitFactor         float64
	Expectancy           decimal.Decimal
	FeesUSD              decimal.Decimal
	TaxUSD               decimal.Decimal
	NetRMean             float64
	NetRMedian           float64
	NetRP10              float64
	NetRP90              float64
	MaxDrawdownUSD       decimal.Decimal
	MaxConsecutiveLosses int
}

// ReasonCount is the number of closes with one exit reason.
type ReasonCount struct {
	Reason string
	Count  int
}

// usd rounds a float amount to cents.
func usd(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
