package metrics

import (
	"math"
	"sort"

	"trend-edge-lab/internal/domain"
)

// Stats summarizes a set of closed trades.
type Stats struct {
	// Counts
	Trades        int
	Symbols       int
	Wins          int
	Losses        int
	WinRate       float64
	SymbolWinRate float64 // symbols with at least one winning trade / symbols

	// Money (USD)
	NetProfit    float64
	GrossProfit  float64 // sum of winning net P&L
	GrossLoss    float64 // sum of losing net P&L, <= 0
	ProfitFactor float64 // GrossProfit / |GrossLoss|, 0 without losses
	Expectancy   float64 // mean net P&L per trade
	FeesUSD      float64
	TaxUSD       float64

	// Net R distribution
	NetRMean   float64
	NetRMedian float64
	NetRP10    float64
	NetRP25    float64
	NetRP75    float64
	NetRP90    float64
	NetRMin    float64
	NetRMax    float64
	NetRStddev float64

	// Order dependent
	MaxDrawdownUSD       float64
	MaxConsecutiveLosses int

	ExitReasons map[string]int
}

// SymbolStats is the breakdown of one symbol.
type SymbolStats struct {
	Symbol string
	Stats
}

// Compute calculates the statistics of trades. Trades are ordered by close
// time, then trade id, before the order-dependent figures are derived.
func Compute(trades []*domain.TradeRecord) Stats {
	n := len(trades)
	if n == 0 {
		return Stats{ExitReasons: map[string]int{}}
	}

	sorted := make([]*domain.TradeRecord, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ClosedAtMs != sorted[j].ClosedAtMs {
			return sorted[i].ClosedAtMs < sorted[j].ClosedAtMs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	s := Stats{Trades: n, ExitReasons: make(map[string]int)}
	nets := make([]float64, n)
	rs := make([]float64, n)
	for i, t := range sorted {
		nets[i] = t.NetPnL
		rs[i] = t.NetR
		s.NetProfit += t.NetPnL
		s.FeesUSD += t.FeesUSD
		s.TaxUSD += t.TaxUSD
		s.ExitReasons[t.ExitReason]++
		if t.NetPnL > 0 {
			s.Wins++
			s.GrossProfit += t.NetPnL
		} else {
			s.Losses++
			s.GrossLoss += t.NetPnL
		}
	}
	s.WinRate = winRate(s.Wins, n)
	s.Expectancy = mean(nets)
	if s.GrossLoss < 0 {
		s.ProfitFactor = s.GrossProfit / -s.GrossLoss
	}
	s.Symbols, s.SymbolWinRate = symbolWinRate(sorted)

	sortedR := make([]float64, n)
	copy(sortedR, rs)
	sort.Float64s(sortedR)
	s.NetRMean = mean(rs)
	s.NetRStddev = stddev(rs, s.NetRMean)
	s.NetRMedian = percentile(sortedR, 0.50)
	s.NetRP10 = percentile(sortedR, 0.10)
	s.NetRP25 = percentile(sortedR, 0.25)
	s.NetRP75 = percentile(sortedR, 0.75)
	s.NetRP90 = percentile(sortedR, 0.90)
	s.NetRMin = sortedR[0]
	s.NetRMax = sortedR[n-1]

	s.MaxDrawdownUSD = maxDrawdown(nets)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(nets)
	return s
}

// BySymbol computes the statistics of every symbol, ordered by symbol.
func BySymbol(trades []*domain.TradeRecord) []SymbolStats {
	groups := make(map[string][]*domain.TradeRecord)
	for _, t := range trades {
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	out := make([]SymbolStats, 0, len(groups))
	for sym, ts := range groups {
		out = append(out, SymbolStats{Symbol: sym, Stats: Compute(ts)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// symbolWinRate counts a symbol as winning when at least one of its trades
// made money.
func symbolWinRate(trades []*domain.TradeRecord) (int, float64) {
	won := make(map[string]bool)
	for _, t := range trades {
		won[t.Symbol] = won[t.Symbol] || t.NetPnL > 0
	}
	wins := 0
	for _, w := range won {
		if w {
			wins++
		}
	}
	return len(won), winRate(wins, len(won))
}

func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, m float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile interpolates linearly between ranks. sorted must be ascending.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// maxDrawdown is the worst peak-to-trough fall of the cumulative net P&L.
// The running peak starts at zero.
func maxDrawdown(nets []float64) float64 {
	cum, peak, worst := 0.0, 0.0, 0.0
	for _, x := range nets {
		cum += x
		peak = math.Max(peak, cum)
		worst = math.Max(worst, peak-cum)
	}
	return worst
}

// maxConsecutiveLosses is the longest run of trades with net P&L <= 0.
func maxConsecutiveLosses(nets []float64) int {
	best, cur := 0, 0
	for _, x := range nets {
		if x <= 0 {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}
