package indicator

import "math"

// MeanLast averages the finite values among the n slots ending at end (inclusive).
// ok is false when no finite value exists in the window.
func MeanLast(values []float64, n, end int) (float64, bool) {
	if end >= len(values) {
		end = len(values) - 1
	}
	start := end - n + 1
	if start < 0 {
		start = 0
	}
	sum, cnt := 0.0, 0
	for i := start; i <= end; i++ {
		if Valid(values[i]) {
			sum += values[i]
			cnt++
		}
	}
	if cnt == 0 {
		return 0, false
	}
	return sum / float64(cnt), true
}

// MeanPositive averages the finite, positive values in [from, to].
func MeanPositive(values []float64, from, to int) (float64, bool) {
	if from < 0 {
		from = 0
	}
	if to >= len(values) {
		to = len(values) - 1
	}
	sum, cnt := 0.0, 0
	for i := from; i <= to; i++ {
		if Valid(values[i]) && values[i] > 0 {
			sum += values[i]
			cnt++
		}
	}
	if cnt == 0 {
		return 0, false
	}
	return sum / float64(cnt), true
}

// MaxRange returns the maximum of values[from..to] inclusive.
func MaxRange(values []float64, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to >= len(values) {
		to = len(values) - 1
	}
	m := math.Inf(-1)
	for i := from; i <= to; i++ {
		if values[i] > m {
			m = values[i]
		}
	}
	return m
}

// PctChange returns closes[n]/closes[n-k] - 1, or 0 when the base is not positive.
func PctChange(closes []float64, n, k int) float64 {
	if n-k < 0 || n >= len(closes) {
		return 0
	}
	base := closes[n-k]
	if base <= 0 {
		return 0
	}
	return closes[n]/base - 1
}

// Returns builds the simple-return vector for the most recent
// max(5, min(lookback, len-1)) bars, skipping non-positive bases.
// It returns nil when fewer than three closes exist.
func Returns(closes []float64, lookback int) []float64 {
	n := len(closes)
	if n < 3 {
		return nil
	}
	size := lookback
	if size > n-1 {
		size = n - 1
	}
	if size < 5 {
		size = 5
	}
	start := n - size
	if start < 1 {
		start = 1
	}
	out := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		prev := closes[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, closes[i]/prev-1)
	}
	return out
}

// Pearson returns the correlation of the aligned tails of a and b.
// ok is false with fewer than 10 paired samples or a degenerate variance.
func Pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 10 {
		return 0, false
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)

	var num, da, db float64
	for i := 0; i < n; i++ {
		x, y := a[i]-ma, b[i]-mb
		num += x * y
		da += x * x
		db += y * y
	}
	den := math.Sqrt(da * db)
	if den <= 1e-12 {
		return 0, false
	}
	return num / den, true
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
