package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TrueRange returns max(h-l, |h-prevClose|, |l-prevClose|) for bar i >= 1.
func TrueRange(h, l, c []float64, i int) float64 {
	pc := c[i-1]
	return math.Max(h[i]-l[i], math.Max(math.Abs(h[i]-pc), math.Abs(l[i]-pc)))
}

// ATRSeries returns Wilder's average true range over period p. out[p] is the
// mean of the first p true ranges; later slots apply Wilder smoothing.
// The effective period is at least 2.
func ATRSeries(h, l, c []float64, p int) []float64 {
	n := len(c)
	out := nanSeries(n)
	if p < 2 {
		p = 2
	}
	if len(h) != n || len(l) != n || n < p+1 {
		return out
	}
	atr := talib.Atr(h, l, c, p)
	copy(out[p:], atr[p:])
	return out
}

// ATR returns the latest Wilder ATR. ok is false when fewer than p+1 bars exist.
func ATR(h, l, c []float64, p int) (float64, bool) {
	if p < 1 || len(c) < p+1 {
		return 0, false
	}
	return Last(ATRSeries(h, l, c, p))
}
