package lifecycle

import (
	"math"

	"trend-edge-lab/internal/domain"
)

// Fee schedule per side, percent of notional.
const (
	FeePctStandard = 0.10
	FeePctBNB      = 0.075
)

// FeePct resolves the per-side fee percent for the configured fee mode.
// CUSTOM is clamped to [0, 1].
func FeePct(cfg *domain.Config) float64 {
	switch cfg.FeeMode {
	case domain.FeeModeBNB:
		return FeePctBNB
	case domain.FeeModeCustom:
		return math.Max(0, math.Min(1, cfg.CustomFeePct))
	default:
		return FeePctStandard
	}
}

// FeeUSD returns the fee for notional at pct percent.
func FeeUSD(notional, pct float64) float64 {
	if math.IsNaN(notional) || math.IsNaN(pct) {
		return 0
	}
	return math.Abs(notional) * math.Max(0, pct) / 100
}

// AdverseBps returns the one-way execution shift in basis points:
// half the spread plus slippage plus latency decay.
func AdverseBps(cfg *domain.Config) float64 {
	spread := math.Max(0, cfg.SpreadBps)
	slip := math.Max(0, cfg.SlippageBps)
	latency := math.Max(0, cfg.LatencyMs) / 1000 * math.Max(0, cfg.LatencyBpsPerSec)
	return spread/2 + slip + latency
}

// ExecCostPctOneWay returns the one-way execution cost in percent.
func ExecCostPctOneWay(cfg *domain.Config) float64 {
	return AdverseBps(cfg) / 100
}

// ExecutionPrice shifts mark adversely for the acting side. A non-positive
// mark yields 0.
func ExecutionPrice(side domain.Signal, mark float64, cfg *domain.Config) float64 {
	if !(mark > 0) {
		return 0
	}
	shift := AdverseBps(cfg) / 10_000
	if side == domain.SignalBuy {
		return mark * (1 + shift)
	}
	return mark * (1 - shift)
}

// opposite returns the side that closes a position opened on side.
func opposite(side domain.Signal) domain.Signal {
	if side == domain.SignalBuy {
		return domain.SignalSell
	}
	return domain.SignalBuy
}
