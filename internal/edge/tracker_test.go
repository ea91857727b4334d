package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Window(t *testing.T) {
	tr := NewTracker(5)
	for i := 0; i < 8; i++ {
		tr.AddTrade(float64(i))
	}

	assert.Equal(t, 8, tr.TradesCount())
	// samples 3..7
	assert.InDelta(t, 5.0, tr.RollingExpectancy(), 1e-12)
	assert.InDelta(t, 1.0, tr.RollingWinRate(), 1e-12)
}

func TestTracker_MinimumWindow(t *testing.T) {
	assert.Equal(t, minWindow, NewTracker(2).Window())
	assert.Equal(t, DefaultWindow, NewTracker(0).Window())
}

func TestTracker_Empty(t *testing.T) {
	tr := NewTracker(10)
	if tr.RollingExpectancy() != 0 || tr.RollingWinRate() != 0 {
		t.Errorf("empty tracker should report zeros")
	}

	var nilTracker *Tracker
	assert.Equal(t, Snapshot{}, nilTracker.Snapshot())
}

func TestTracker_WinRate(t *testing.T) {
	tr := NewTracker(10)
	for _, v := range []float64{1, -1, 2, 0} {
		tr.AddTrade(v)
	}
	snap := tr.Snapshot()
	assert.Equal(t, 4, snap.Trades)
	assert.InDelta(t, 0.5, snap.WinRate, 1e-12)
	assert.InDelta(t, 0.5, snap.Expectancy, 1e-12)
}
