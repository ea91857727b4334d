package indicator

// RSI returns Wilder's relative strength index of closes over period p.
// ok is false when fewer than p+1 closes exist. A window without losses
// yields 100.
//
// TA-Lib's Rsi returns 0 for a zero-loss window after a flat seed, so this
// one is computed directly.
func RSI(closes []float64, p int) (float64, bool) {
	if p < 1 || len(closes) < p+1 {
		return 0, false
	}

	var gains, losses float64
	for i := 1; i <= p; i++ {
		d := closes[i] - closes[i-1]
		if d >= 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgG := gains / float64(p)
	avgL := losses / float64(p)

	pf := float64(p)
	for i := p + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, lo := 0.0, 0.0
		if d >= 0 {
			g = d
		} else {
			lo = -d
		}
		avgG = (avgG*(pf-1) + g) / pf
		avgL = (avgL*(pf-1) + lo) / pf
	}

	if avgL == 0 {
		return 100, true
	}
	rs := avgG / avgL
	return 100 - 100/(1+rs), true
}
