package risk

import (
	"fmt"
	"strconv"
	"strings"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
)

// Admit applies the account pre-gates in order: lock, kill switch, daily
// drawdown, open-position cap, weekly limit, drawdown breaker, turnover cap
// and symbol cooldown. Both drawdown checks lock the ledger with type DD when
// they trip. The ledger is rolled to nowMs first.
func Admit(l *ledger.Ledger, openCount int, symbol string, nowMs int64, cfg *domain.Config) domain.GateResult {
	const gate = domain.GateAdmission
	l.Roll(nowMs)

	if l.Locked() {
		return domain.Veto(gate, domain.ReasonLocked, map[string]float64{"loss_streak": float64(l.LossStreak())})
	}
	if l.KillSwitchActive(nowMs) {
		until, _ := l.KillSwitchUntil()
		return domain.Veto(gate, domain.ReasonKillSwitchActive, map[string]float64{"until_ms": float64(until)})
	}
	if cfg.MaxDailyDD > 0 {
		if dd := l.DailyDrawdownPct(); dd >= cfg.MaxDailyDD {
			l.Lock(ledger.LockDD, fmt.Sprintf("daily drawdown %.2f%% >= %.2f%%", dd, cfg.MaxDailyDD))
			return domain.Veto(gate, domain.ReasonDailyDD, map[string]float64{"dd_pct": dd, "max": cfg.MaxDailyDD})
		}
	}
	if cfg.MaxOpen > 0 && openCount >= cfg.MaxOpen {
		return domain.Veto(gate, domain.ReasonMaxOpen, map[string]float64{"open": float64(openCount), "max": float64(cfg.MaxOpen)})
	}
	if cfg.MaxTradesPerWeek > 0 && l.TradesThisWeek() >= cfg.MaxTradesPerWeek {
		return domain.Veto(gate, domain.ReasonWeeklyLimit, map[string]float64{"trades": float64(l.TradesThisWeek()), "max": float64(cfg.MaxTradesPerWeek)})
	}
	if cfg.MaxDD > 0 {
		if dd := l.DrawdownFromHigh(); dd >= cfg.MaxDD {
			l.Lock(ledger.LockDD, fmt.Sprintf("drawdown from high %.2f%% >= %.2f%%", dd*100, cfg.MaxDD*100))
			return domain.Veto(gate, domain.ReasonDDBreaker, map[string]float64{"dd": dd, "max": cfg.MaxDD})
		}
	}
	if cfg.MaxTurnoverPerDayPct > 0 {
		limit := l.Cash() * cfg.MaxTurnoverPerDayPct / 100
		if l.DayTurnover() >= limit {
			return domain.Veto(gate, domain.ReasonTurnoverCap, map[string]float64{"turnover": l.DayTurnover(), "limit": limit})
		}
	}
	if until := l.CooldownUntil(symbol); until > nowMs {
		return domain.Veto(gate, domain.ReasonCooldown, map[string]float64{"until_ms": float64(until)})
	}
	return domain.Pass(gate)
}

// CheckSignal rejects decisions that do not ask for an entry, baseline
// entries below ScoreMin, and short entries when TrendOnly restricts the run
// to longs.
func CheckSignal(d *domain.Decision, cfg *domain.Config) domain.GateResult {
	const gate = domain.GateAdmission
	if !d.IsEntry() {
		return domain.Veto(gate, domain.ReasonSignalHold, nil)
	}
	if d.Model == domain.ModelScore && d.Score < cfg.ScoreMin {
		return domain.Veto(gate, domain.ReasonSignalHold, map[string]float64{"score": d.Score, "min": cfg.ScoreMin})
	}
	if cfg.TrendOnly && d.Signal == domain.SignalSell {
		return domain.Veto(gate, domain.ReasonTrendOnlyLong, nil)
	}
	return domain.Pass(gate)
}

// CooldownUntil returns the end of the post-close cooldown for a bar
// opened at barTs.
func CooldownUntil(barTs int64, cfg *domain.Config) int64 {
	return barTs + int64(cfg.CooldownCandles)*domain.IntervalMs(cfg.Interval)
}

// GuardKey builds the no-repeat key signal|symbol|interval|barTs.
func GuardKey(signal domain.Signal, symbol, interval string, barTs int64) string {
	return strings.Join([]string{string(signal), symbol, interval, strconv.FormatInt(barTs, 10)}, "|")
}
