package domain

// Exit reason codes
const (
	ExitReasonStop       = "STOP"
	ExitReasonTarget     = "TARGET"
	ExitReasonTimeStop   = "TIME_STOP"
	ExitReasonAutoProfit = "AUTO_PROFIT"
	ExitReasonForcedEOD  = "FORCED_EOD"
	ExitReasonManual     = "MANUAL"
	ExitReasonPartial    = "PARTIAL"
)

// PositionState is the lifecycle state of a position.
type PositionState string

// Position states.
const (
	PositionOpen    PositionState = "OPEN"
	PositionPartial PositionState = "PARTIALLY_CLOSED"
	PositionClosed  PositionState = "CLOSED"
)

// Position is an open paper position. Quantity is strictly positive while open.
type Position struct {
	ID       string
	Symbol   string
	Interval string
	Side     Signal // BUY or SELL
	Model    ModelType
	Score    float64
	State    PositionState

	// Geometry
	Entry  float64 // executed entry price
	Stop   float64 // current stop, only tightens
	Target float64
	ATR    float64 // ATR at entry

	// Size
	Qty            float64
	QtyInitial     float64
	RiskUSD        float64 // reduced pro-rata on partial exits
	RiskUSDInitial float64
	RiskMult       float64

	// Costs
	FeePct            float64 // percent per side
	FeeEntryTotal     float64
	FeeEntryRemaining float64 // entry fee not yet allocated to a closed leg
	FeeExitTotal      float64
	TaxOn             bool
	TaxPct            float64
	TaxApplyCash      bool
	GrossRealized     float64 // gross P&L of closed legs
	TaxTotal          float64

	// Management
	TrailMult   float64
	MovedBE     bool
	PartialDone bool
	Peak        float64 // best price seen in the trade direction

	// Timing
	OpenedAtMs  int64
	OpenedBarMs int64

	// Tracking
	LastPrice float64
	MaxFavR   float64
	MaxAdvR   float64
}

// Dir returns +1 for long and -1 for short.
func (p *Position) Dir() float64 {
	if p.Side == SignalSell {
		return -1
	}
	return 1
}

// UnrealizedPnL returns mark-to-market P&L at price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return p.Dir() * (price - p.Entry) * p.Qty
}
