package domain

// TradeRecord is one fully closed position with its net accounting.
// Corresponds to the trade_records table.
type TradeRecord struct {
	TradeID  string // position id
	RunID    string // backtest or live run
	Symbol   string
	Interval string
	Side     Signal
	Model    ModelType

	// Entry
	OpenedAtMs int64
	EntryPrice float64
	QtyInitial float64
	RiskUSD    float64 // initial risk budget

	// Exit
	ClosedAtMs int64
	ExitPrice  float64 // final leg
	ExitReason string

	// Accounting (all legs)
	GrossPnL float64
	FeesUSD  float64
	TaxUSD   float64
	NetPnL   float64
	NetR     float64 // NetPnL / RiskUSD

	// Excursions
	MaxFavR float64
	MaxAdvR float64

	OutcomeClass string // "WIN" | "LOSS"
}

// Outcome class constants
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)

// ClosedNet is one entry of the bounded net-outcome history.
type ClosedNet struct {
	TimestampMs int64
	Symbol      string
	NetUSD      float64
	NetR        float64
	Win         bool
}
