// Package ledger holds the paper account: cash, fee and tax accumulators,
// loss streaks, safety locks, the loss-streak risk cut and the bounded history
// of closed-trade outcomes.
//
// A Ledger is an explicit handle owned by one run. It is not safe for
// concurrent use; callers serialize access.
package ledger

import (
	"fmt"
	"math"
	"time"

	"trend-edge-lab/internal/domain"
)

// LockType identifies why new entries are blocked.
type LockType string

// Lock types.
const (
	LockNone LockType = ""
	LockDD   LockType = "DD"
	LockLoss LockType = "LOSS"
)

const (
	historyCap = 1200
	eps        = 1e-9
)

// Policy carries the ledger-side limits taken from the run configuration.
type Policy struct {
	MaxConsecutiveLosses int
	RiskCutOn            bool
	RiskCutAfter         int
	RiskCutFactor        float64
	RiskCutTrades        int
}

// PolicyFromConfig extracts the ledger policy.
func PolicyFromConfig(cfg *domain.Config) Policy {
	return Policy{
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		RiskCutOn:            cfg.LossStreakRiskCutOn,
		RiskCutAfter:         cfg.LossStreakCutAfter,
		RiskCutFactor:        cfg.LossStreakCutFactor,
		RiskCutTrades:        cfg.LossStreakCutTrades,
	}
}

// Ledger is the account state of one run.
type Ledger struct {
	policy      Policy
	initialCash float64
	cash        float64

	feesPaid    float64
	taxPaid     float64
	taxReserved float64
	realized    float64

	wins, losses int
	grossWinUSD  float64
	grossLossUSD float64
	lossStreak   int

	lockType   LockType
	lockReason string

	closed        []domain.ClosedNet
	netLossStreak int
	highWater     float64

	riskCutActive    bool
	riskCutRemaining int
	riskCutAnchor    float64

	killSwitchUntilMs int64
	killSwitchReason  string

	dayKey      string
	dayAnchor   float64
	dayPeak     float64
	dayTurnover float64

	weekKey        string
	tradesThisWeek int

	cooldown map[string]int64
}

// New creates a ledger funded with initialCash.
func New(initialCash float64, policy Policy) *Ledger {
	return &Ledger{
		policy:      policy,
		initialCash: initialCash,
		cash:        initialCash,
		highWater:   initialCash,
		dayAnchor:   initialCash,
		dayPeak:     initialCash,
		cooldown:    make(map[string]int64),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// InitialCash returns the starting balance.
func (l *Ledger) InitialCash() float64 { return l.initialCash }

// HighWater returns the cash high-water mark.
func (l *Ledger) HighWater() float64 { return l.highWater }

// DayAnchor returns the cash balance at the start of the current day.
func (l *Ledger) DayAnchor() float64 { return l.dayAnchor }

// TaxReserved returns tax set aside but not yet paid from cash.
func (l *Ledger) TaxReserved() float64 { return l.taxReserved }

// DayTurnover returns the entry notional opened today.
func (l *Ledger) DayTurnover() float64 { return l.dayTurnover }

// TradesThisWeek returns the number of entries in the current ISO week.
func (l *Ledger) TradesThisWeek() int { return l.tradesThisWeek }

// Roll advances the day and week buckets to nowMs and refreshes the
// day peak and high-water mark. Calling it repeatedly within one day is a no-op
// apart from the peaks.
func (l *Ledger) Roll(nowMs int64) {
	t := time.UnixMilli(nowMs).UTC()
	day := t.Format("2006-01-02")
	if day != l.dayKey {
		l.dayKey = day
		l.dayAnchor = l.cash
		l.dayPeak = l.cash
		l.dayTurnover = 0
	}
	year, week := t.ISOWeek()
	wk := fmt.Sprintf("%d-W%02d", year, week)
	if wk != l.weekKey {
		l.weekKey = wk
		l.tradesThisWeek = 0
	}
	l.dayPeak = math.Max(l.dayPeak, l.cash)
	l.highWater = math.Max(l.highWater, l.cash)
}

// DailyDrawdownPct returns the drop of cash below the day anchor in percent.
func (l *Ledger) DailyDrawdownPct() float64 {
	return math.Max(0, (l.dayAnchor-l.cash)/math.Max(eps, l.dayAnchor)*100)
}

// DrawdownFromHigh returns the drop of cash below the high-water mark as a fraction.
func (l *Ledger) DrawdownFromHigh() float64 {
	high := math.Max(l.highWater, l.cash)
	return math.Max(0, (high-l.cash)/math.Max(eps, high))
}

// ProfitProtectionFactor returns 0.5 when the account has given back at least
// giveback (fraction) of today's profit, otherwise 1.
func (l *Ledger) ProfitProtectionFactor(giveback, factor float64) float64 {
	if giveback <= 0 {
		giveback = 0.35
	}
	if factor <= 0 {
		factor = 0.5
	}
	dayProfit := math.Max(0, l.cash-l.dayAnchor)
	if dayProfit <= 0 {
		return 1
	}
	back := math.Max(0, l.dayPeak-l.cash)
	if back/math.Max(eps, dayProfit) >= giveback {
		return factor
	}
	return 1
}

// ChargeFee deducts an execution fee from cash.
func (l *Ledger) ChargeFee(usd float64) {
	if !(usd > 0) {
		return
	}
	l.feesPaid += usd
	l.cash -= usd
}

// ChargeTax applies pct percent tax on a positive taxable profit. The tax is
// paid from cash when applyCash is set, otherwise reserved. It returns the tax.
func (l *Ledger) ChargeTax(taxable, pct float64, applyCash bool) float64 {
	if !(taxable > 0) || pct <= 0 {
		return 0
	}
	tax := taxable * pct / 100
	if applyCash {
		l.taxPaid += tax
		l.cash -= tax
	} else {
		l.taxReserved += tax
	}
	return tax
}

// BookRealized adds a gross leg result to cash and maintains the gross loss
// streak. It reports whether the booking engaged the LOSS lock.
func (l *Ledger) BookRealized(pnl float64) bool {
	l.cash += pnl
	l.realized += pnl
	if pnl >= 0 {
		l.grossWinUSD += pnl
	} else {
		l.grossLossUSD -= pnl
	}

	switch {
	case pnl > eps:
		l.wins++
		l.lossStreak = 0
	case pnl < -eps:
		l.losses++
		l.lossStreak++
		limit := l.policy.MaxConsecutiveLosses
		if limit > 0 && l.lossStreak >= limit && l.lockType == LockNone {
			l.Lock(LockLoss, fmt.Sprintf("locked after %d consecutive losses", limit))
			return true
		}
	default:
		l.lossStreak = 0
	}
	return false
}

// CloseEffect reports state transitions caused by a terminal close.
type CloseEffect struct {
	RiskCutActivated   bool
	RiskCutDeactivated bool
	Recovered          bool // deactivated by reaching the anchor rather than exhausting trades
}

// RecordClose appends a terminal trade outcome and updates the net loss
// streak, the high-water mark and the risk-cut state.
func (l *Ledger) RecordClose(outcome domain.ClosedNet) CloseEffect {
	l.closed = append(l.closed, outcome)
	if len(l.closed) > historyCap {
		l.closed = append([]domain.ClosedNet(nil), l.closed[len(l.closed)-historyCap:]...)
	}

	switch {
	case outcome.NetUSD < -eps:
		l.netLossStreak++
	case outcome.NetUSD > eps:
		l.netLossStreak = 0
	}

	l.highWater = math.Max(l.highWater, l.cash)

	var eff CloseEffect
	if l.policy.RiskCutOn && !l.riskCutActive && l.netLossStreak >= orDefault(1, l.policy.RiskCutAfter, 3) {
		l.riskCutActive = true
		l.riskCutRemaining = orDefault(1, l.policy.RiskCutTrades, 5)
		l.riskCutAnchor = l.highWater
		eff.RiskCutActivated = true
	}
	if l.riskCutActive {
		recovered := l.riskCutAnchor > 0 && l.cash >= l.riskCutAnchor
		if recovered || l.riskCutRemaining <= 0 {
			l.clearRiskCut()
			eff.RiskCutDeactivated = true
			eff.Recovered = recovered
		}
	}
	return eff
}

// orDefault returns v, or def when v is not positive, floored at lo.
func orDefault(lo, v, def int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		v = lo
	}
	return v
}

func (l *Ledger) clearRiskCut() {
	l.riskCutActive = false
	l.riskCutRemaining = 0
	l.riskCutAnchor = 0
	l.netLossStreak = 0
}

// RecordOpen counts an entry with the given notional against the weekly and
// daily limits and consumes one risk-cut trade.
func (l *Ledger) RecordOpen(notional float64) {
	l.tradesThisWeek++
	l.dayTurnover += math.Abs(notional)
	if l.riskCutActive && l.riskCutRemaining > 0 {
		l.riskCutRemaining--
	}
}

// RiskCutActive reports whether the loss-streak risk cut applies.
func (l *Ledger) RiskCutActive() bool { return l.riskCutActive }

// RiskCutRemaining returns the number of reduced-risk trades left.
func (l *Ledger) RiskCutRemaining() int { return l.riskCutRemaining }

// RiskCutAnchor returns the high-water mark recorded at activation.
func (l *Ledger) RiskCutAnchor() float64 { return l.riskCutAnchor }

// RiskCutMultiplier returns the active risk-cut factor clamped to [0.1, 1],
// or 1 when the cut is inactive.
func (l *Ledger) RiskCutMultiplier() float64 {
	if !l.riskCutActive || !l.policy.RiskCutOn {
		return 1
	}
	f := l.policy.RiskCutFactor
	if f <= 0 {
		f = 0.5
	}
	return math.Max(0.1, math.Min(1, f))
}

// NetLossStreak returns consecutive net-losing closes.
func (l *Ledger) NetLossStreak() int { return l.netLossStreak }

// LossStreak returns consecutive gross-losing legs.
func (l *Ledger) LossStreak() int { return l.lossStreak }

// Lock blocks new entries. An existing lock is kept.
func (l *Ledger) Lock(t LockType, reason string) {
	if l.lockType != LockNone {
		return
	}
	l.lockType = t
	l.lockReason = reason
}

// Locked reports whether new entries are blocked.
func (l *Ledger) Locked() bool { return l.lockType != LockNone }

// LockInfo returns the active lock type and reason.
func (l *Ledger) LockInfo() (LockType, string) { return l.lockType, l.lockReason }

// Unlock clears the lock, both streaks, the risk cut and the kill switch, and
// re-anchors the day at the current cash.
func (l *Ledger) Unlock() {
	l.lockType = LockNone
	l.lockReason = ""
	l.lossStreak = 0
	l.clearRiskCut()
	l.killSwitchUntilMs = 0
	l.killSwitchReason = ""
	l.dayAnchor = l.cash
	l.dayPeak = l.cash
}

// ArmKillSwitch suspends entries until untilMs.
func (l *Ledger) ArmKillSwitch(untilMs int64, reason string) {
	l.killSwitchUntilMs = untilMs
	l.killSwitchReason = reason
}

// KillSwitchActive reports whether entries are suspended at nowMs.
func (l *Ledger) KillSwitchActive(nowMs int64) bool {
	return l.killSwitchUntilMs > nowMs
}

// KillSwitchUntil returns the suspension end and its reason.
func (l *Ledger) KillSwitchUntil() (int64, string) {
	return l.killSwitchUntilMs, l.killSwitchReason
}

// SetCooldown blocks new entries on symbol until untilMs.
func (l *Ledger) SetCooldown(symbol string, untilMs int64) {
	l.cooldown[symbol] = untilMs
}

// CooldownUntil returns the cooldown end for symbol, 0 when none.
func (l *Ledger) CooldownUntil(symbol string) int64 {
	return l.cooldown[symbol]
}

// History returns a copy of the closed-trade outcomes, oldest first.
func (l *Ledger) History() []domain.ClosedNet {
	out := make([]domain.ClosedNet, len(l.closed))
	copy(out, l.closed)
	return out
}

// GrossStats returns the gross leg counts and averages used by EV estimation.
func (l *Ledger) GrossStats() (wins, losses int, avgWin, avgLoss float64) {
	wins, losses = l.wins, l.losses
	if wins > 0 {
		avgWin = l.grossWinUSD / float64(wins)
	}
	if losses > 0 {
		avgLoss = l.grossLossUSD / float64(losses)
	}
	return wins, losses, avgWin, avgLoss
}

// RollingEdge summarizes the latest window closed trades.
type RollingEdge struct {
	Count      int
	Expectancy float64
	WinRate    float64
}

// Rolling returns the rolling edge over the last window closes.
func (l *Ledger) Rolling(window int) RollingEdge {
	if window < 1 {
		window = 1
	}
	if len(l.closed) == 0 {
		return RollingEdge{}
	}
	slice := l.closed
	if len(slice) > window {
		slice = slice[len(slice)-window:]
	}
	sum, wins := 0.0, 0
	for _, c := range slice {
		sum += c.NetUSD
		if c.NetUSD > 0 {
			wins++
		}
	}
	n := float64(len(slice))
	return RollingEdge{Count: len(slice), Expectancy: sum / n, WinRate: float64(wins) / n}
}
