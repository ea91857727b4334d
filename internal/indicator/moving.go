// Package indicator computes the technical indicators used by the decision
// models and risk gates. Series outputs are aligned to their input: index i of
// the output describes bar i, and slots before the window fills hold NaN.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of values over period p.
func SMA(values []float64, p int) []float64 {
	out := nanSeries(len(values))
	if p <= 0 || len(values) < p {
		return out
	}
	sma := talib.Sma(values, p)
	copy(out[p-1:], sma[p-1:])
	return out
}

// EMA returns the exponential moving average of values over period p,
// seeded with the SMA of the first p values and k = 2/(p+1).
func EMA(values []float64, p int) []float64 {
	out := nanSeries(len(values))
	if p <= 0 || len(values) < p {
		return out
	}
	ema := talib.Ema(values, p)
	copy(out[p-1:], ema[p-1:])
	return out
}

// Last returns the final element of series when it is finite.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	return v, Valid(v)
}

// At returns series[i] when i is in range and the value is finite.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return 0, false
	}
	return series[i], Valid(series[i])
}

// Valid reports whether v is a usable number.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
