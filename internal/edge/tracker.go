// Package edge tracks the rolling expectancy of recent closed trades.
package edge

// DefaultWindow is the number of net results kept when none is configured.
const DefaultWindow = 50

// minWindow bounds tiny windows so the statistics stay meaningful.
const minWindow = 5

// Tracker keeps the last Window net P&L samples and a lifetime trade count.
// A Tracker is owned by one run and is not safe for concurrent use.
type Tracker struct {
	window  int
	samples []float64
	trades  int
}

// NewTracker creates a tracker over the last window samples.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if window < minWindow {
		window = minWindow
	}
	return &Tracker{window: window}
}

// AddTrade records one net result.
func (t *Tracker) AddTrade(netPnL float64) {
	t.trades++
	t.samples = append(t.samples, netPnL)
	if len(t.samples) > t.window {
		t.samples = t.samples[len(t.samples)-t.window:]
	}
}

// TradesCount returns the lifetime number of recorded trades.
func (t *Tracker) TradesCount() int {
	return t.trades
}

// Window returns the effective window size.
func (t *Tracker) Window() int {
	return t.window
}

// RollingExpectancy returns the mean of the retained samples, 0 when empty.
func (t *Tracker) RollingExpectancy() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range t.samples {
		sum += s
	}
	return sum / float64(len(t.samples))
}

// RollingWinRate returns the share of retained samples above zero.
func (t *Tracker) RollingWinRate() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	wins := 0
	for _, s := range t.samples {
		if s > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(t.samples))
}

// Snapshot is a read-only view for decision models.
type Snapshot struct {
	Trades     int
	Expectancy float64
	WinRate    float64
}

// Snapshot returns the current statistics.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return Snapshot{
		Trades:     t.trades,
		Expectancy: t.RollingExpectancy(),
		WinRate:    t.RollingWinRate(),
	}
}
