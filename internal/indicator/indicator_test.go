package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func naiveSMA(values []float64, p int) []float64 {
	out := nanSeries(len(values))
	for i := p - 1; i < len(values); i++ {
		sum := 0.0
		for j := i - p + 1; j <= i; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(p)
	}
	return out
}

func TestSMA_WarmupAndValues(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	got := SMA(values, 3)

	require.Len(t, got, len(values))
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 5.0, got[5], 1e-12)
}

func TestSMA_MatchesNaive(t *testing.T) {
	values := make([]float64, 250)
	for i := range values {
		values[i] = 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.1
	}
	got := SMA(values, 20)
	want := naiveSMA(values, 20)
	for i := 19; i < len(values); i++ {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("SMA[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSMA_ShortInput(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	require.Len(t, got, 2)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %f, want NaN", i, v)
		}
	}
	assert.Empty(t, SMA(nil, 3))
}

func TestEMA_SeededWithSMA(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}
	got := EMA(values, 3)

	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 4.0, got[2], 1e-12)
	// k = 0.5
	assert.InDelta(t, 8*0.5+4*0.5, got[3], 1e-12)
	assert.InDelta(t, 10*0.5+6*0.5, got[4], 1e-12)
}

func TestRSI(t *testing.T) {
	t.Run("insufficient", func(t *testing.T) {
		_, ok := RSI(ramp(14, 1, 1), 14)
		assert.False(t, ok)
	})

	t.Run("only gains yields 100", func(t *testing.T) {
		v, ok := RSI(ramp(30, 1, 1), 14)
		require.True(t, ok)
		assert.Equal(t, 100.0, v)
	})

	t.Run("only losses yields 0", func(t *testing.T) {
		v, ok := RSI(ramp(30, 100, -1), 14)
		require.True(t, ok)
		assert.InDelta(t, 0.0, v, 1e-9)
	})

	t.Run("alternating is near 50", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100
			if i%2 == 1 {
				closes[i] = 101
			}
		}
		v, ok := RSI(closes, 14)
		require.True(t, ok)
		assert.InDelta(t, 50.0, v, 5.0)
	})
}

func TestATR(t *testing.T) {
	n := 40
	c := ramp(n, 100, 0)
	h := make([]float64, n)
	l := make([]float64, n)
	for i := range c {
		h[i] = c[i] + 1
		l[i] = c[i] - 1
	}

	_, ok := ATR(h[:14], l[:14], c[:14], 14)
	assert.False(t, ok, "needs p+1 bars")

	v, ok := ATR(h, l, c, 14)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)

	series := ATRSeries(h, l, c, 14)
	assert.True(t, math.IsNaN(series[13]))
	assert.InDelta(t, 2.0, series[14], 1e-9)
}

func TestATRSeries_WilderSmoothing(t *testing.T) {
	c := []float64{10, 10, 10, 10, 10}
	h := []float64{11, 11, 11, 13, 11}
	l := []float64{9, 9, 9, 9, 9}

	got := ATRSeries(h, l, c, 2)
	// TR = [_, 2, 2, 4, 2]
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 3.0, got[3], 1e-12)
	assert.InDelta(t, 2.5, got[4], 1e-12)
}

func TestIndicators_Deterministic(t *testing.T) {
	values := make([]float64, 300)
	for i := range values {
		values[i] = 50 + math.Cos(float64(i)/3)*4
	}
	first := EMA(values, 21)
	for run := 0; run < 5; run++ {
		again := EMA(values, 21)
		for i := range first {
			if math.IsNaN(first[i]) != math.IsNaN(again[i]) || (!math.IsNaN(first[i]) && first[i] != again[i]) {
				t.Fatalf("run %d: EMA[%d] differs", run, i)
			}
		}
	}
}

func TestMeanLast(t *testing.T) {
	values := []float64{math.NaN(), 1, 2, 3, 4}
	m, ok := MeanLast(values, 3, 4)
	require.True(t, ok)
	assert.InDelta(t, 3.0, m, 1e-12)

	m, ok = MeanLast(values, 10, 4)
	require.True(t, ok)
	assert.InDelta(t, 2.5, m, 1e-12)

	_, ok = MeanLast([]float64{math.NaN()}, 1, 0)
	assert.False(t, ok)
}

func TestReturns(t *testing.T) {
	assert.Nil(t, Returns([]float64{1, 2}, 40))

	closes := ramp(50, 100, 1)
	r := Returns(closes, 40)
	require.Len(t, r, 40)
	assert.InDelta(t, closes[49]/closes[48]-1, r[len(r)-1], 1e-12)

	short := Returns([]float64{1, 2, 3, 4}, 40)
	assert.Len(t, short, 3)
}

func TestPearson(t *testing.T) {
	a := ramp(20, 1, 1)
	b := ramp(20, 5, 2)

	r, ok := Pearson(a, b)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	neg := ramp(20, 100, -3)
	r, ok = Pearson(a, neg)
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	_, ok = Pearson(a[:9], b[:9])
	assert.False(t, ok, "fewer than 10 samples")

	flat := ramp(20, 1, 0)
	_, ok = Pearson(a, flat)
	assert.False(t, ok, "zero variance")
}

func TestPctChange(t *testing.T) {
	closes := []float64{0, 100, 110}
	assert.InDelta(t, 0.1, PctChange(closes, 2, 1), 1e-12)
	assert.Equal(t, 0.0, PctChange(closes, 1, 1))
	assert.Equal(t, 0.0, PctChange(closes, 1, 5))
}
