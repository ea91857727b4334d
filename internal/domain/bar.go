package domain

import (
	"errors"
	"fmt"
)

// Bar is one OHLCV candle. Timestamps are candle open times in Unix ms.
type Bar struct {
	TimestampMs int64   // candle open time (ms)
	Open        float64 // open price
	High        float64 // highest trade price
	Low         float64 // lowest trade price
	Close       float64 // close price
	Volume      float64 // base volume
}

// ErrInvalidSeries is returned by BarSeries.Validate.
var ErrInvalidSeries = errors.New("invalid bar series")

// BarSeries is an ordered, immutable sequence of bars for one instrument and interval.
// Consumers never mutate Bars; Upto returns views that share the backing array.
type BarSeries struct {
	Symbol   string
	Interval string
	Bars     []Bar
}

// NewBarSeries creates a series over bars.
func NewBarSeries(symbol, interval string, bars []Bar) *BarSeries {
	return &BarSeries{Symbol: symbol, Interval: interval, Bars: bars}
}

// Len returns the number of bars.
func (s *BarSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar. ok is false for an empty series.
func (s *BarSeries) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Upto returns a view of bars [0..i] inclusive.
func (s *BarSeries) Upto(i int) *BarSeries {
	if i >= len(s.Bars) {
		i = len(s.Bars) - 1
	}
	return &BarSeries{Symbol: s.Symbol, Interval: s.Interval, Bars: s.Bars[:i+1]}
}

// Closes returns close prices in order.
func (s *BarSeries) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Opens returns open prices in order.
func (s *BarSeries) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

// Highs returns high prices in order.
func (s *BarSeries) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns low prices in order.
func (s *BarSeries) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Volumes returns volumes in order.
func (s *BarSeries) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return b.Volume })
}

func (s *BarSeries) column(f func(Bar) float64) []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = f(b)
	}
	return out
}

// Validate checks chronological order and positive prices.
func (s *BarSeries) Validate() error {
	var prev int64
	for i, b := range s.Bars {
		if b.Close <= 0 || b.High <= 0 || b.Low <= 0 {
			return fmt.Errorf("%w: non-positive price at index %d", ErrInvalidSeries, i)
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: high below low at index %d", ErrInvalidSeries, i)
		}
		if i > 0 && b.TimestampMs <= prev {
			return fmt.Errorf("%w: timestamps not increasing at index %d", ErrInvalidSeries, i)
		}
		prev = b.TimestampMs
	}
	return nil
}
