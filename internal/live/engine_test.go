package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/marketdata/stub"
	"trend-edge-lab/internal/risk"
	"trend-edge-lab/internal/storage/memory"
)

// fakeSource serves flat series at a per-symbol price. Unknown symbols trade
// at 100.
type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	block  chan struct{}
	calls  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{prices: make(map[string]float64), errs: make(map[string]error)}
}

func (f *fakeSource) FetchBars(ctx context.Context, symbol, _ string, _ int) (*domain.BarSeries, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		price = 100
	}
	return stub.FlatSeries(symbol, 60, price), nil
}

func (f *fakeSource) setPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

// fixedModel always asks for the same entry with an ATR of 1% of price.
type fixedModel struct {
	signal domain.Signal
	score  float64
}

func (m fixedModel) Name() domain.ModelType { return domain.ModelScore }

func (m fixedModel) Evaluate(series *domain.BarSeries, _ *domain.Config) domain.Decision {
	last, _ := series.Last()
	atr := last.Close * 0.01
	return domain.Decision{
		Model:       domain.ModelScore,
		Symbol:      series.Symbol,
		Signal:      m.signal,
		Score:       m.score,
		Last:        last.Close,
		TimestampMs: last.TimestampMs,
		ATR:         &atr,
	}
}

func testConfig(symbols ...string) domain.Config {
	cfg := config.Default()
	cfg.Symbols = symbols
	cfg.Interval = "1h"
	cfg.MaxOpen = 5
	cfg.CooldownCandles = 0
	cfg.NoRepeat = true
	cfg.PartialOn = false
	cfg.TimeStopOn = false
	cfg.AutoProfitOn = false
	cfg.BreakEvenR = 0
	cfg.ATRTrail = 0
	cfg.TaxOn = false
	cfg.ProfitProtectOn = false
	cfg.MaxDailyDD = 0
	cfg.MaxDD = 0
	return cfg
}

var testNow = time.UnixMilli(stub.BaseTimestampMs + 60*stub.BarMs)

func newTestEngine(t *testing.T, cfg domain.Config, src BarSource, score float64, opts ...Option) (*Engine, *audit.MemoryRecorder) {
	t.Helper()
	rec := audit.NewMemoryRecorder()
	base := []Option{
		WithModel(fixedModel{signal: domain.SignalBuy, score: score}),
		WithPipeline(risk.NewPipeline()),
		WithRecorder(rec),
		WithClock(func() time.Time { return testNow }),
		WithRunID("run-test"),
	}
	e, err := New(cfg, src, append(base, opts...)...)
	require.NoError(t, err)
	return e, rec
}

func TestEngine_TickOpensAndGuardsRepeat(t *testing.T) {
	src := newFakeSource()
	e, rec := newTestEngine(t, testConfig("BTCUSDT", "ETHUSDT"), src, 9.5)

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 2, rep.Opened)
	assert.NoError(t, rep.Err)
	require.Len(t, e.Positions(), 2)
	assert.Len(t, rec.ByType(audit.EventOpen), 2)
	assert.Len(t, rec.ByType(audit.EventDecision), 2)

	pos := e.Positions()[0]
	assert.Equal(t, "BTCUSDT", pos.Symbol)
	assert.InDelta(t, 97.4, pos.Stop, 1e-9)
	assert.InDelta(t, 103.2, pos.Target, 1e-9)
	assert.Greater(t, pos.Entry, 100.0)

	// same bar again: the no-repeat guard blocks both symbols
	rep, err = e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Opened)
	assert.Equal(t, 2, rep.Vetoes[domain.ReasonNoRepeat])
	assert.Len(t, e.Positions(), 2)

	st := e.Status()
	assert.Equal(t, int64(2), st.Ticks)
	assert.Equal(t, 2, st.OpenPositions)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, st.Symbols)
}

func TestEngine_AskModeQueuesIdeas(t *testing.T) {
	cfg := testConfig("BTCUSDT", "ETHUSDT")
	cfg.Mode = domain.TradeModeAsk
	e, rec := newTestEngine(t, cfg, newFakeSource(), 8)

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Opened)
	assert.Equal(t, 2, rep.Queued)
	assert.Empty(t, e.Positions())

	ideas := e.Pending()
	require.Len(t, ideas, 2)
	assert.Equal(t, "ETHUSDT", ideas[0].Symbol, "newest first")

	pos, err := e.AcceptPending(ideas[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", pos.Symbol)
	assert.Len(t, e.Positions(), 1)

	require.NoError(t, e.RejectPending(ideas[0].ID))
	assert.Empty(t, e.Pending())

	assert.ErrorIs(t, e.RejectPending("missing"), ErrIdeaNotFound)
	_, err = e.AcceptPending("missing")
	assert.ErrorIs(t, err, ErrIdeaNotFound)

	actions := map[string]int{}
	for _, ev := range rec.ByType(audit.EventPending) {
		actions[ev.Payload.(audit.PendingInfo).Action]++
	}
	assert.Equal(t, map[string]int{"ADDED": 2, "ACCEPTED": 1, "REJECTED": 1}, actions)

	// queued keys are marked, so the same bar is not offered again
	rep, err = e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Queued)
}

func TestEngine_AskModeAutoOpensHighScore(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.Mode = domain.TradeModeAsk
	cfg.ScoreAutoOnAsk = 9
	e, _ := newTestEngine(t, cfg, newFakeSource(), 9.5)

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Opened)
	assert.Equal(t, 0, rep.Queued)
	assert.Empty(t, e.Pending())
}

func TestEngine_LowScoreIsNotAnEntry(t *testing.T) {
	e, _ := newTestEngine(t, testConfig("BTCUSDT"), newFakeSource(), 5)

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Evaluated)
	assert.Equal(t, 0, rep.Opened)
	assert.Empty(t, e.Positions())
}

func TestEngine_SkipsTickWhileBusy(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	e, _ := newTestEngine(t, testConfig("BTCUSDT"), src, 9.5)

	done := make(chan error, 1)
	go func() {
		_, err := e.Tick(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	_, err := e.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickBusy)

	close(src.block)
	require.NoError(t, <-done)

	st := e.Status()
	assert.Equal(t, int64(1), st.TicksSkipped)
	assert.Equal(t, int64(1), st.Ticks)
	assert.Equal(t, 1, st.OpenPositions)
}

func TestEngine_SymbolErrorsDoNotAbortTick(t *testing.T) {
	src := newFakeSource()
	src.errs["ETHUSDT"] = errors.New("boom")
	e, rec := newTestEngine(t, testConfig("BTCUSDT", "ETHUSDT"), src, 9.5)

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Evaluated)
	assert.Equal(t, 1, rep.Opened)
	require.Error(t, rep.Err)
	assert.Contains(t, rep.Err.Error(), "ETHUSDT: boom")

	evs := rec.ByType(audit.EventTickError)
	require.Len(t, evs, 1)
	assert.Equal(t, "ETHUSDT", evs[0].Symbol)
	assert.Contains(t, e.Status().LastTickErrors, "boom")
}

func TestEngine_CancelledTickReturnsError(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	e, _ := newTestEngine(t, testConfig("BTCUSDT"), src, 9.5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.Positions())
}

func TestEngine_ManualCloses(t *testing.T) {
	src := newFakeSource()
	store := memory.NewTradeRecordStore()
	e, rec := newTestEngine(t, testConfig("BTCUSDT", "ETHUSDT"), src, 9.5, WithTradeStore(store))

	_, err := e.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Positions(), 2)

	src.setPrice("BTCUSDT", 102)
	src.setPrice("ETHUSDT", 98)
	_, err = e.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Positions(), 2, "neither stop nor target is reached")

	assert.Equal(t, 1, e.CloseProfitable())
	require.Len(t, e.Positions(), 1)
	assert.Equal(t, "ETHUSDT", e.Positions()[0].Symbol)

	_, err = e.ClosePosition("missing")
	assert.ErrorIs(t, err, lifecycle.ErrPositionNotFound)

	tr, err := e.ClosePosition(e.Positions()[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitReasonManual, tr.ExitReason)
	assert.Less(t, tr.NetPnL, 0.0)

	assert.Empty(t, e.Positions())
	assert.Len(t, rec.ByType(audit.EventClose), 2)
	assert.Equal(t, 0, e.CloseAll())

	stored, err := store.GetByRunID(context.Background(), "run-test")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEngine_OnKlineHitsTarget(t *testing.T) {
	e, rec := newTestEngine(t, testConfig("BTCUSDT"), newFakeSource(), 9.5)
	_, err := e.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Positions(), 1)

	// no position on ETH: ignored
	e.OnKline(marketdata.KlineUpdate{Symbol: "ETHUSDT", Bar: domain.Bar{Close: 200}})
	require.Len(t, e.Positions(), 1)

	e.OnKline(marketdata.KlineUpdate{
		Symbol: "BTCUSDT",
		Bar:    domain.Bar{TimestampMs: stub.BaseTimestampMs + 60*stub.BarMs, Close: 104},
	})
	assert.Empty(t, e.Positions())

	closes := rec.ByType(audit.EventClose)
	require.Len(t, closes, 1)
	assert.Equal(t, domain.ExitReasonTarget, closes[0].Payload.(audit.FillInfo).Reason)
	assert.Equal(t, 1, e.Status().Ledger.ClosedTrades)
}

func TestEngine_LossStreakLocksAndUnlock(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.MaxConsecutiveLosses = 1
	src := newFakeSource()
	e, rec := newTestEngine(t, cfg, src, 9.5)

	_, err := e.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Positions(), 1)

	src.setPrice("BTCUSDT", 97)
	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Closed)
	assert.Equal(t, 1, rep.Vetoes[domain.ReasonLocked])

	st := e.Status()
	assert.True(t, st.Ledger.Locked)
	assert.Equal(t, ledger.LockLoss, st.Ledger.LockType)
	assert.NotEmpty(t, rec.ByType(audit.EventLock))

	e.Unlock()
	st = e.Status()
	assert.False(t, st.Ledger.Locked)
	assert.Equal(t, 0, st.Ledger.LossStreak)
	assert.Len(t, rec.ByType(audit.EventUnlock), 1)
}

type fakeTickers map[string]float64

func (f fakeTickers) Fetch24hChangePercent(context.Context) (map[string]float64, error) {
	return f, nil
}

func TestEngine_TopNUniverse(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.UniverseMode = domain.UniverseTopN
	cfg.TopN = 2
	u := marketdata.NewUniverse(fakeTickers{
		"AAAUSDT": 1.5,
		"BBBUSDT": -9,
		"CCCUSDT": 4,
	}, []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}, nil)
	e, rec := newTestEngine(t, cfg, newFakeSource(), 5, WithUniverse(u))

	rep, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BBBUSDT", "CCCUSDT"}, rep.Symbols)

	evs := rec.ByType(audit.EventUniverse)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"BBBUSDT", "CCCUSDT"}, evs[0].Payload.(audit.UniverseInfo).Symbols)

	// unchanged ranking records nothing new
	_, err = e.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, rec.ByType(audit.EventUniverse), 1)
}

func TestEngine_RunTicksUntilCancelled(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.LoopSec = 1
	e, rec := newTestEngine(t, cfg, newFakeSource(), 9.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Status().Ticks >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Len(t, rec.ByType(audit.EventRunStart), 1)
	assert.Len(t, rec.ByType(audit.EventRunStop), 1)
	assert.Len(t, e.Positions(), 1)
}

func TestPendingBook(t *testing.T) {
	b := NewPendingBook(2)

	added, evicted := b.Add(Idea{ID: "1", Key: "k1"})
	assert.True(t, added)
	assert.Nil(t, evicted)

	added, _ = b.Add(Idea{ID: "1b", Key: "k1"})
	assert.False(t, added, "duplicate key")

	b.Add(Idea{ID: "2", Key: "k2"})
	added, evicted = b.Add(Idea{ID: "3", Key: "k3"})
	assert.True(t, added)
	require.NotNil(t, evicted)
	assert.Equal(t, "1", evicted.ID)

	ids := []string{}
	for _, i := range b.List() {
		ids = append(ids, i.ID)
	}
	assert.Equal(t, []string{"3", "2"}, ids)

	_, ok := b.Remove("2")
	assert.True(t, ok)
	assert.Equal(t, 1, b.Len())
	b.Clear()
	assert.Equal(t, 0, b.Len())
}
