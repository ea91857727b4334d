// Package stub provides deterministic in-memory market data for tests and
// offline runs.
package stub

import (
	"math"
	"math/rand"

	"trend-edge-lab/internal/domain"
)

// BaseTimestampMs is the open time of the first generated bar.
const BaseTimestampMs int64 = 1_700_000_000_000

// BarMs is the spacing of generated bars (1h).
const BarMs int64 = 3_600_000

// FlatSeries returns n identical bars at price.
func FlatSeries(symbol string, n int, price float64) *domain.BarSeries {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			TimestampMs: BaseTimestampMs + int64(i)*BarMs,
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      1000,
		}
	}
	return domain.NewBarSeries(symbol, "1h", bars)
}

// RisingSeries returns n bars whose close grows by growth per bar. Every
// expandEvery-th bar has a four times wider range and triple volume.
func RisingSeries(symbol string, n int, start, growth float64, expandEvery int) *domain.BarSeries {
	bars := make([]domain.Bar, n)
	prev := start
	for i := range bars {
		c := start * math.Pow(1+growth, float64(i))
		halfRange, vol := 0.005, 1000.0
		if expandEvery > 0 && i > 0 && i%expandEvery == 0 {
			halfRange, vol = 0.02, 3000.0
		}
		bars[i] = domain.Bar{
			TimestampMs: BaseTimestampMs + int64(i)*BarMs,
			Open:        prev,
			High:        c * (1 + halfRange),
			Low:         c * (1 - halfRange),
			Close:       c,
			Volume:      vol,
		}
		prev = c
	}
	return domain.NewBarSeries(symbol, "1h", bars)
}

// WaveSeries returns a drifting sine wave with the given period and relative
// amplitude. It produces alternating breakouts and pullbacks.
func WaveSeries(symbol string, n int, start, drift, amplitude float64, period int) *domain.BarSeries {
	if period <= 0 {
		period = 40
	}
	bars := make([]domain.Bar, n)
	prev := start
	for i := range bars {
		base := start * math.Pow(1+drift, float64(i))
		phase := 2 * math.Pi * float64(i) / float64(period)
		c := base * (1 + amplitude*math.Sin(phase))
		vol := 1000 + 600*math.Max(0, math.Cos(phase))
		bars[i] = domain.Bar{
			TimestampMs: BaseTimestampMs + int64(i)*BarMs,
			Open:        prev,
			High:        math.Max(prev, c) * 1.004,
			Low:         math.Min(prev, c) * 0.996,
			Close:       c,
			Volume:      vol,
		}
		prev = c
	}
	return domain.NewBarSeries(symbol, "1h", bars)
}

// RandomWalk returns a seeded geometric random walk with per-bar volatility vol.
func RandomWalk(symbol string, n int, start, vol float64, seed int64) *domain.BarSeries {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	prev := start
	for i := range bars {
		c := prev * (1 + rng.NormFloat64()*vol)
		if c <= 0 {
			c = prev
		}
		wick := math.Abs(rng.NormFloat64()) * vol * 0.5
		bars[i] = domain.Bar{
			TimestampMs: BaseTimestampMs + int64(i)*BarMs,
			Open:        prev,
			High:        math.Max(prev, c) * (1 + wick),
			Low:         math.Min(prev, c) * (1 - wick),
			Close:       c,
			Volume:      800 + rng.Float64()*400,
		}
		prev = c
	}
	return domain.NewBarSeries(symbol, "1h", bars)
}
