package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
	"trend-edge-lab/internal/marketdata/stub"
)

func testConfig() *domain.Config {
	return &domain.Config{
		ScoreMin:           7,
		MinTrendStrength:   0.0006,
		MinATRPct:          0.003,
		ATRPeriod:          14,
		SlopeLookback:      80,
		ChopSlopeNorm:      0.05,
		BullSlopeNorm:      0.10,
		BreakoutLookback:   12,
		MinMomentum:        0.001,
		EdgeMinTrades:      30,
		EdgeWindow:         50,
		ProbLookAhead:      50,
		ProbMinOccurrences: 30,
		ProbRR:             2.0,
		ProbMinProbability: 0.55,
		StopATRMult:        1.8,
		RTarget:            2.5,
		StopMinPct:         0.001,
	}
}

type fixedEdge struct{ snap edge.Snapshot }

func (f fixedEdge) Snapshot() edge.Snapshot { return f.snap }

func TestModels_ShortSeriesHold(t *testing.T) {
	series := stub.RandomWalk("BTCUSDT", 100, 100, 0.01, 7)
	cfg := testConfig()

	for _, m := range []Model{NewBaselineModel(), NewMomentumModel(nil), NewProbabilityModel()} {
		d := m.Evaluate(series, cfg)
		if d.Signal != domain.SignalHold {
			t.Errorf("%s: expected HOLD, got %s", m.Name(), d.Signal)
		}
		if d.Reason != domain.ReasonInsufficientData {
			t.Errorf("%s: expected %s, got %s", m.Name(), domain.ReasonInsufficientData, d.Reason)
		}
		assert.Equal(t, "BTCUSDT", d.Symbol)
	}
}

func TestModels_NilSeries(t *testing.T) {
	cfg := testConfig()
	for _, m := range []Model{NewBaselineModel(), NewMomentumModel(nil), NewProbabilityModel()} {
		d := m.Evaluate(nil, cfg)
		assert.Equal(t, domain.SignalHold, d.Signal)
		assert.Equal(t, domain.ReasonInsufficientData, d.Reason)
	}
}

func TestBaseline_FlatSeriesScoreLow(t *testing.T) {
	series := stub.FlatSeries("ETHUSDT", 300, 50)
	cfg := testConfig()

	d := NewBaselineModel().Evaluate(series, cfg)
	assert.Equal(t, domain.SignalHold, d.Signal)
	assert.Equal(t, domain.ReasonScoreLow, d.Reason)
	assert.InDelta(t, 3.8, d.Score, 1e-9)

	cfg.TestMode = true
	boosted := NewBaselineModel().Evaluate(series, cfg)
	assert.InDelta(t, d.Score+1.5, boosted.Score, 1e-9)
}

func TestBaseline_RisingSeriesBuys(t *testing.T) {
	series := stub.RisingSeries("BTCUSDT", 300, 100, 0.003, 10)
	d := NewBaselineModel().Evaluate(series, testConfig())

	require.Equal(t, domain.SignalBuy, d.Signal, "reasons: %v", d.Reasons)
	assert.Equal(t, domain.ReasonScoreSetup, d.Reason)
	assert.True(t, d.RegimeBull)
	assert.GreaterOrEqual(t, d.Score, 7.0)
	assert.LessOrEqual(t, d.Score, 10.0)
	assert.InDelta(t, d.Score/10, d.Confidence, 1e-12)
	require.NotNil(t, d.ATR)
	require.NotNil(t, d.MA200)
}

func TestBaseline_FallingSeriesSells(t *testing.T) {
	series := stub.RisingSeries("BTCUSDT", 300, 100, -0.003, 10)
	d := NewBaselineModel().Evaluate(series, testConfig())

	if d.Signal == domain.SignalBuy {
		t.Fatalf("falling series must never BUY")
	}
	assert.True(t, d.RegimeBear)
}

func TestMomentum_FlatSeriesIsChop(t *testing.T) {
	series := stub.FlatSeries("BTCUSDT", 320, 100)
	d := NewMomentumModel(nil).Evaluate(series, testConfig())

	assert.Equal(t, domain.SignalHold, d.Signal)
	assert.Equal(t, domain.ReasonRegimeChop, d.Reason)
	assert.Equal(t, domain.RegimeChop, d.Regime)
	assert.Equal(t, 0.0, d.SlopeNorm)
}

func TestMomentum_ExpansionBarBuys(t *testing.T) {
	series := stub.RisingSeries("BTCUSDT", 400, 100, 0.003, 10)
	d := NewMomentumModel(nil).Evaluate(series.Upto(330), testConfig())

	require.Equal(t, domain.SignalBuy, d.Signal, "reason: %s", d.Reason)
	assert.Equal(t, domain.ReasonMomentumSetup, d.Reason)
	assert.Equal(t, domain.RegimeBull, d.Regime)
	assert.True(t, d.Breakout)
	assert.True(t, d.BreakoutPass)
	assert.True(t, d.VolumeExpansion)
	assert.True(t, d.EdgeOK)
	require.NotNil(t, d.Momentum)
	assert.Greater(t, *d.Momentum, 0.001)
	assert.InDelta(t, d.Score/100, d.Confidence, 1e-12)
}

func TestMomentum_ReasonPrecedence(t *testing.T) {
	series := stub.RisingSeries("BTCUSDT", 400, 100, 0.003, 10)
	cfg := testConfig()

	t.Run("no breakout after expansion bar", func(t *testing.T) {
		d := NewMomentumModel(nil).Evaluate(series.Upto(333), cfg)
		assert.Equal(t, domain.ReasonBreakoutFail, d.Reason)
	})

	t.Run("negative edge", func(t *testing.T) {
		src := fixedEdge{snap: edge.Snapshot{Trades: 40, Expectancy: -0.2}}
		d := NewMomentumModel(src).Evaluate(series.Upto(330), cfg)
		assert.Equal(t, domain.ReasonEdgeNegative, d.Reason)
		assert.False(t, d.EdgeOK)
		assert.Equal(t, 40, d.EdgeTrades)
	})

	t.Run("edge ignored below minimum trades", func(t *testing.T) {
		src := fixedEdge{snap: edge.Snapshot{Trades: 29, Expectancy: -5}}
		d := NewMomentumModel(src).Evaluate(series.Upto(330), cfg)
		assert.Equal(t, domain.SignalBuy, d.Signal)
	})

	t.Run("weak momentum", func(t *testing.T) {
		strict := *cfg
		strict.MinMomentum = 10
		d := NewMomentumModel(nil).Evaluate(series.Upto(330), &strict)
		assert.Equal(t, domain.ReasonMomentumWeak, d.Reason)
	})

	t.Run("probability confirmation required", func(t *testing.T) {
		withProb := *cfg
		withProb.MomentumRequiresProb = true
		d := NewMomentumModel(nil).Evaluate(series.Upto(330), &withProb)
		assert.Equal(t, domain.ReasonNeedsProbConfirmation, d.Reason)
		assert.Equal(t, domain.SignalHold, d.Signal)
	})

	t.Run("falling series is non-bull", func(t *testing.T) {
		falling := stub.RisingSeries("BTCUSDT", 400, 100, -0.003, 10)
		d := NewMomentumModel(nil).Evaluate(falling, cfg)
		assert.Equal(t, domain.ReasonRegimeNonBull, d.Reason)
		assert.Equal(t, domain.RegimeNonBull, d.Regime)
	})
}

func TestMomentum_Deterministic(t *testing.T) {
	series := stub.RandomWalk("SOLUSDT", 400, 20, 0.01, 42)
	cfg := testConfig()
	model := NewMomentumModel(nil)

	first := model.Evaluate(series, cfg)
	for run := 0; run < 5; run++ {
		again := model.Evaluate(series, cfg)
		assert.Equal(t, first, again, "run %d differs", run)
	}
}

func TestProbability_NoOccurrencesOnSmoothRise(t *testing.T) {
	// Closes never clear the prior 20-bar high on a smooth rise.
	series := stub.RisingSeries("BTCUSDT", 400, 100, 0.003, 10)
	d := NewProbabilityModel().Evaluate(series, testConfig())

	assert.Equal(t, domain.SignalHold, d.Signal)
	assert.Equal(t, domain.ReasonInsufficientOccurrences, d.Reason)
	assert.Equal(t, 0, d.Occurrences)
	assert.Nil(t, d.Probability)
}

func TestResolveBracket(t *testing.T) {
	params := probParams{lookAhead: 3, minOcc: 1, rr: 2, minProb: 0.5, stopMult: 1, stopPct: 0.001}
	atr := []float64{1, 1, 1, 1, 1, 1}

	// entry 100, stop 99, target 102
	tests := []struct {
		name        string
		highs, lows []float64
		n           int
		wantWin     bool
		wantCounted bool
	}{
		{
			name:        "stop checked before target",
			highs:       []float64{100, 103, 100, 100, 100, 100},
			lows:        []float64{100, 98.5, 100, 100, 100, 100},
			n:           5,
			wantWin:     false,
			wantCounted: true,
		},
		{
			name:        "target hit",
			highs:       []float64{100, 101, 102.5, 100, 100, 100},
			lows:        []float64{100, 99.5, 99.5, 100, 100, 100},
			n:           5,
			wantWin:     true,
			wantCounted: true,
		},
		{
			name:        "expired window counts as non-win",
			highs:       []float64{100, 101, 101, 101, 101, 101},
			lows:        []float64{100, 99.5, 99.5, 99.5, 99.5, 99.5},
			n:           5,
			wantWin:     false,
			wantCounted: true,
		},
		{
			name:        "truncated window is excluded",
			highs:       []float64{100, 101, 101, 101, 101, 101},
			lows:        []float64{100, 99.5, 99.5, 99.5, 99.5, 99.5},
			n:           2,
			wantWin:     false,
			wantCounted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := indicatorSet{
				closes: []float64{100, 100, 100, 100, 100, 100},
				highs:  tt.highs,
				lows:   tt.lows,
			}
			win, counted := resolveBracket(in, atr, 0, tt.n, params)
			assert.Equal(t, tt.wantWin, win)
			assert.Equal(t, tt.wantCounted, counted)
		})
	}
}

type stubModel struct {
	name domain.ModelType
	d    domain.Decision
}

func (s stubModel) Evaluate(*domain.BarSeries, *domain.Config) domain.Decision { return s.d }
func (s stubModel) Name() domain.ModelType                                  { return s.name }

func TestComparator(t *testing.T) {
	buyScore := stubModel{name: domain.ModelScore, d: domain.Decision{Model: domain.ModelScore, Signal: domain.SignalBuy, Score: 8}}
	buyMom := stubModel{name: domain.ModelMomentum, d: domain.Decision{Model: domain.ModelMomentum, Signal: domain.SignalBuy, Confidence: 0.8}}
	buyProb := stubModel{name: domain.ModelProbability, d: domain.Decision{Model: domain.ModelProbability, Signal: domain.SignalBuy, Probability: domain.Float(0.6)}}
	holdMom := stubModel{name: domain.ModelMomentum, d: domain.Decision{Model: domain.ModelMomentum, Signal: domain.SignalHold, Confidence: 0.99}}

	t.Run("ties keep earlier model", func(t *testing.T) {
		cmp := NewComparator(buyScore, buyMom, buyProb)
		out := cmp.Compare(nil, testConfig())
		assert.Equal(t, domain.ModelScore, out.Winner)
		require.Len(t, out.Results, 3)
		assert.InDelta(t, 0.8, out.Results[0].Confidence, 1e-12)
		assert.InDelta(t, 0.6, out.Results[2].Confidence, 1e-12)
	})

	t.Run("hold contributes zero", func(t *testing.T) {
		cmp := NewComparator(holdMom, buyProb)
		out := cmp.Compare(nil, testConfig())
		assert.Equal(t, domain.ModelProbability, out.Winner)
		assert.Equal(t, 0.0, out.Results[0].Confidence)
	})

	t.Run("no buy yields none", func(t *testing.T) {
		out := NewComparator(holdMom).Compare(nil, testConfig())
		assert.Equal(t, WinnerNone, out.Winner)
	})
}

func TestFromType(t *testing.T) {
	m, err := FromType(domain.ModelMomentum, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.ModelMomentum, m.Name())

	m, err = FromType("", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.ModelScore, m.Name())

	_, err = FromType("nope", Options{})
	assert.ErrorIs(t, err, ErrUnknownModel)
}
