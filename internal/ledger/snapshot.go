package ledger

// FeesSnapshot decomposes the balance into gross and net views.
type FeesSnapshot struct {
	FeesUSD        float64
	TaxReservedUSD float64
	TaxPaidUSD     float64
	GrossUSD       float64 // cash + fees + tax paid
	NetUSD         float64 // cash - tax reserved
	OffRampUSD     float64 // estimated withdrawal cost
	NetAfterOffUSD float64
}

// Fees returns the fee and tax decomposition. offRampSpreadPct is a percent
// of the net balance and offRampFixedUSD a flat withdrawal cost.
func (l *Ledger) Fees(offRampSpreadPct, offRampFixedUSD float64) FeesSnapshot {
	net := l.cash - l.taxReserved
	off := net*offRampSpreadPct/100 + offRampFixedUSD
	return FeesSnapshot{
		FeesUSD:        l.feesPaid,
		TaxReservedUSD: l.taxReserved,
		TaxPaidUSD:     l.taxPaid,
		GrossUSD:       l.cash + l.feesPaid + l.taxPaid,
		NetUSD:         net,
		OffRampUSD:     off,
		NetAfterOffUSD: net - off,
	}
}

// Rollup is the running profile summary emitted after each close.
type Rollup struct {
	Trades       int
	WinRatePct   float64
	AvgWinUSD    float64
	AvgLossUSD   float64
	ProfitFactor float64
	RealizedUSD  float64
	FeesUSD      float64
	TaxReserved  float64
	TaxPaid      float64
}

// Rollup summarizes gross leg statistics.
func (l *Ledger) Rollup() Rollup {
	n := l.wins + l.losses
	r := Rollup{
		Trades:      n,
		RealizedUSD: l.realized,
		FeesUSD:     l.feesPaid,
		TaxReserved: l.taxReserved,
		TaxPaid:     l.taxPaid,
	}
	if n == 0 {
		return r
	}
	r.WinRatePct = float64(l.wins) / float64(n) * 100
	_, _, r.AvgWinUSD, r.AvgLossUSD = l.GrossStats()
	if l.grossLossUSD > 0 {
		r.ProfitFactor = l.grossWinUSD / l.grossLossUSD
	}
	return r
}

// State is a read-only copy of the account for status reporting.
type State struct {
	Cash              float64
	InitialCash       float64
	HighWater         float64
	DayAnchor         float64
	DayTurnover       float64
	TradesThisWeek    int
	Locked            bool
	LockType          LockType
	LockReason        string
	LossStreak        int
	NetLossStreak     int
	RiskCutActive     bool
	RiskCutRemaining  int
	KillSwitchUntilMs int64
	ClosedTrades      int
}

// State returns the current account view.
func (l *Ledger) State() State {
	return State{
		Cash:              l.cash,
		InitialCash:       l.initialCash,
		HighWater:         l.highWater,
		DayAnchor:         l.dayAnchor,
		DayTurnover:       l.dayTurnover,
		TradesThisWeek:    l.tradesThisWeek,
		Locked:            l.Locked(),
		LockType:          l.lockType,
		LockReason:        l.lockReason,
		LossStreak:        l.lossStreak,
		NetLossStreak:     l.netLossStreak,
		RiskCutActive:     l.riskCutActive,
		RiskCutRemaining:  l.riskCutRemaining,
		KillSwitchUntilMs: l.killSwitchUntilMs,
		ClosedTrades:      len(l.closed),
	}
}
