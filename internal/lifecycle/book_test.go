package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
)

const hourMs = int64(3_600_000)

// frictionless returns a config with zero fees and execution costs.
func frictionless() *domain.Config {
	return &domain.Config{
		Interval:     "1h",
		FeeMode:      domain.FeeModeCustom,
		CustomFeePct: 0,
	}
}

func newBook(cash float64) (*Book, *ledger.Ledger) {
	l := ledger.New(cash, ledger.Policy{MaxConsecutiveLosses: 2})
	return NewBook("run-1", l), l
}

func openLong(t *testing.T, b *Book, cfg *domain.Config, mark, stop, target, risk float64) domain.Position {
	t.Helper()
	p, err := b.Open(OpenRequest{
		ID:      "pos-1",
		Symbol:  "BTCUSDT",
		Side:    domain.SignalBuy,
		Mark:    mark,
		Stop:    stop,
		Target:  target,
		ATR:     1,
		RiskUSD: risk,
	}, cfg)
	require.NoError(t, err)
	return p
}

func bar(ts int64, high, low, close float64) Observation {
	return Observation{Price: close, High: high, Low: low, BarTs: ts}
}

func TestExecutionPrice(t *testing.T) {
	cfg := &domain.Config{SpreadBps: 5, SlippageBps: 3, LatencyMs: 250, LatencyBpsPerSec: 1}

	assert.InDelta(t, 5.75, AdverseBps(cfg), 1e-12)
	assert.InDelta(t, 100*(1+5.75/10_000), ExecutionPrice(domain.SignalBuy, 100, cfg), 1e-9)
	assert.InDelta(t, 100*(1-5.75/10_000), ExecutionPrice(domain.SignalSell, 100, cfg), 1e-9)
	assert.Equal(t, 0.0, ExecutionPrice(domain.SignalBuy, 0, cfg))
	assert.Equal(t, 0.0, ExecutionPrice(domain.SignalSell, -3, cfg))
	assert.InDelta(t, 0.0575, ExecCostPctOneWay(cfg), 1e-12)
}

func TestFeePct(t *testing.T) {
	tests := []struct {
		mode   domain.FeeMode
		custom float64
		want   float64
	}{
		{domain.FeeModeStandard, 0, 0.10},
		{"", 0, 0.10},
		{domain.FeeModeBNB, 0, 0.075},
		{domain.FeeModeCustom, 0.2, 0.2},
		{domain.FeeModeCustom, 3, 1},
		{domain.FeeModeCustom, -1, 0},
	}
	for _, tt := range tests {
		got := FeePct(&domain.Config{FeeMode: tt.mode, CustomFeePct: tt.custom})
		if got != tt.want {
			t.Errorf("FeePct(%s, %v) = %v, want %v", tt.mode, tt.custom, got, tt.want)
		}
	}
	assert.InDelta(t, 0.1, FeeUSD(-100, 0.1), 1e-12)
}

func TestAdvance_Target(t *testing.T) {
	cfg := frictionless()
	b, l := newBook(100)
	p := openLong(t, b, cfg, 100, 98, 104, 2)
	assert.InDelta(t, 1.0, p.Qty, 1e-12)

	fills := b.Advance("BTCUSDT", bar(hourMs, 104.5, 99, 103), cfg)
	require.Len(t, fills, 1)
	f := fills[0]
	assert.Equal(t, FillClose, f.Kind)
	assert.Equal(t, domain.ExitReasonTarget, f.Reason)
	require.NotNil(t, f.Record)
	assert.InDelta(t, 4.0, f.Record.NetPnL, 1e-9)
	assert.InDelta(t, 2.0, f.Record.NetR, 1e-9)
	assert.Equal(t, domain.OutcomeClassWin, f.Record.OutcomeClass)
	assert.Equal(t, "run-1", f.Record.RunID)
	assert.InDelta(t, 104.0, l.Cash(), 1e-9)
	assert.Equal(t, 0, b.OpenCount())
}

func TestAdvance_StopBeforeTarget(t *testing.T) {
	cfg := frictionless()
	b, l := newBook(100)
	openLong(t, b, cfg, 100, 98, 104, 2)

	fills := b.Advance("BTCUSDT", bar(hourMs, 105, 97, 101), cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitReasonStop, fills[0].Reason)
	assert.InDelta(t, 98.0, fills[0].Price, 1e-9)
	assert.InDelta(t, 98.0, l.Cash(), 1e-9)
}

func TestAdvance_OtherSymbolUntouched(t *testing.T) {
	cfg := frictionless()
	b, _ := newBook(100)
	openLong(t, b, cfg, 100, 98, 104, 2)

	fills := b.Advance("ETHUSDT", bar(hourMs, 200, 1, 100), cfg)
	assert.Empty(t, fills)
	assert.Equal(t, 1, b.OpenCount())
}

func TestAdvance_ShortStop(t *testing.T) {
	cfg := frictionless()
	b, l := newBook(100)
	_, err := b.Open(OpenRequest{
		ID: "s-1", Symbol: "BTCUSDT", Side: domain.SignalSell,
		Mark: 100, Stop: 102, Target: 96, RiskUSD: 2,
	}, cfg)
	require.NoError(t, err)

	fills := b.Advance("BTCUSDT", bar(hourMs, 102.5, 99, 101), cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitReasonStop, fills[0].Reason)
	assert.InDelta(t, 98.0, l.Cash(), 1e-9)
}

func TestAdvance_PartialConservesPnL(t *testing.T) {
	cfg := frictionless()
	cfg.CustomFeePct = 0.1
	cfg.PartialOn = true
	cfg.PartialAtR = 0.5
	cfg.PartialPct = 0.3
	cfg.BEAfterPartialOn = true

	b, l := newBook(100)
	openLong(t, b, cfg, 100, 98, 110, 2)
	assert.InDelta(t, 99.9, l.Cash(), 1e-12, "entry fee charged immediately")

	fills := b.Advance("BTCUSDT", PriceObservation(101.5, hourMs), cfg)
	require.Len(t, fills, 1)
	leg := fills[0]
	assert.Equal(t, FillPartial, leg.Kind)
	assert.InDelta(t, 0.3, leg.Qty, 1e-12)
	assert.InDelta(t, 0.45, leg.GrossPnL, 1e-9)
	assert.InDelta(t, 0.03, leg.FeeEntryAlloc, 1e-12)
	assert.InDelta(t, 0.7, leg.Position.Qty, 1e-12)
	assert.Equal(t, domain.PositionPartial, leg.Position.State)
	assert.InDelta(t, 1.4, leg.Position.RiskUSD, 1e-12)
	open := b.Positions()[0]
	assert.InDelta(t, open.Entry, open.Stop, 1e-12, "stop moved to entry")
	assert.True(t, open.MovedBE)

	final, err := b.Close("pos-1", 101.5, domain.ExitReasonManual, 2*hourMs, cfg)
	require.NoError(t, err)
	require.NotNil(t, final.Record)

	// partial + final gross equals full quantity at the same exit
	assert.InDelta(t, 1.5, final.Record.GrossPnL, 1e-9)
	assert.InDelta(t, 0.1+101.5*0.001, final.Record.FeesUSD, 1e-9)
	assert.InDelta(t, 1.5-(0.1+0.1015), final.Record.NetPnL, 1e-9)
	assert.InDelta(t, 0.07, final.FeeEntryAlloc, 1e-12)
	assert.InDelta(t, 100+final.Record.NetPnL, l.Cash(), 1e-9)
	assert.Equal(t, 0, b.OpenCount())
}

func TestAdvance_TrailingNeverLoosens(t *testing.T) {
	cfg := frictionless()
	cfg.ATRTrail = 1
	b, _ := newBook(100)
	openLong(t, b, cfg, 100, 97, 200, 3)

	assert.Empty(t, b.Advance("BTCUSDT", PriceObservation(103, hourMs), cfg))
	assert.InDelta(t, 102.0, b.Positions()[0].Stop, 1e-12)

	assert.Empty(t, b.Advance("BTCUSDT", PriceObservation(102.5, 2*hourMs), cfg))
	assert.InDelta(t, 102.0, b.Positions()[0].Stop, 1e-12)

	fills := b.Advance("BTCUSDT", PriceObservation(101.9, 3*hourMs), cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitReasonStop, fills[0].Reason)
	assert.InDelta(t, 2.0, fills[0].GrossPnL, 1e-9)
}

func TestAdvance_BreakEven(t *testing.T) {
	cfg := frictionless()
	cfg.BreakEvenR = 1
	b, _ := newBook(100)
	openLong(t, b, cfg, 100, 98, 200, 2)

	b.Advance("BTCUSDT", PriceObservation(101, hourMs), cfg)
	assert.False(t, b.Positions()[0].MovedBE)

	b.Advance("BTCUSDT", PriceObservation(102, 2*hourMs), cfg)
	pos := b.Positions()[0]
	assert.True(t, pos.MovedBE)
	assert.InDelta(t, 100.0, pos.Stop, 1e-12)
	assert.InDelta(t, 1.0, pos.MaxFavR, 1e-12)
}

func TestAdvance_TimeStop(t *testing.T) {
	cfg := frictionless()
	cfg.TimeStopOn = true
	cfg.TimeStopCandles = 2
	b, _ := newBook(100)
	openLong(t, b, cfg, 100, 98, 200, 2)

	assert.Empty(t, b.Advance("BTCUSDT", PriceObservation(100.5, hourMs), cfg))
	fills := b.Advance("BTCUSDT", PriceObservation(100.5, 2*hourMs), cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitReasonTimeStop, fills[0].Reason)
	assert.InDelta(t, 100.5, fills[0].Price, 1e-12)
}

func TestAdvance_AutoProfit(t *testing.T) {
	cfg := frictionless()
	cfg.AutoProfitOn = true
	cfg.AutoProfitPct = 0.35
	b, _ := newBook(100)
	openLong(t, b, cfg, 100, 98, 200, 2)

	assert.Empty(t, b.Advance("BTCUSDT", PriceObservation(100.3, hourMs), cfg))
	fills := b.Advance("BTCUSDT", PriceObservation(100.4, 2*hourMs), cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.ExitReasonAutoProfit, fills[0].Reason)
}

func TestClose_TaxFromCash(t *testing.T) {
	cfg := frictionless()
	cfg.TaxOn = true
	cfg.TaxPct = 15
	cfg.TaxApplyCash = true
	b, l := newBook(100)
	openLong(t, b, cfg, 100, 98, 104, 2)

	fills := b.Advance("BTCUSDT", bar(hourMs, 104, 100, 104), cfg)
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.6, fills[0].Tax, 1e-9)
	assert.InDelta(t, 0.6, fills[0].Record.TaxUSD, 1e-9)
	assert.InDelta(t, 103.4, l.Cash(), 1e-9)
}

func TestClose_LossLock(t *testing.T) {
	cfg := frictionless()
	b, l := newBook(100)

	for i, id := range []string{"a", "b"} {
		_, err := b.Open(OpenRequest{ID: id, Symbol: "BTCUSDT", Side: domain.SignalBuy, Mark: 100, Stop: 99, Target: 110, RiskUSD: 1}, cfg)
		require.NoError(t, err)
		f, err := b.Close(id, 99, domain.ExitReasonStop, int64(i), cfg)
		require.NoError(t, err)
		assert.Equal(t, i == 1, f.LossLocked)
	}
	assert.True(t, l.Locked())
}

func TestBook_Errors(t *testing.T) {
	cfg := frictionless()
	b, _ := newBook(100)

	_, err := b.Close("missing", 1, domain.ExitReasonManual, 0, cfg)
	assert.True(t, errors.Is(err, ErrPositionNotFound))

	_, err = b.Open(OpenRequest{ID: "x", Symbol: "BTCUSDT", Side: domain.SignalBuy, Mark: 100, Stop: 99}, cfg)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = b.Open(OpenRequest{ID: "x", Symbol: "BTCUSDT", Side: domain.SignalHold, Mark: 100, Stop: 99, RiskUSD: 1}, cfg)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestBook_CloseWhereAndEquity(t *testing.T) {
	cfg := frictionless()
	b, _ := newBook(100)
	for _, id := range []string{"w", "l"} {
		_, err := b.Open(OpenRequest{ID: id, Symbol: id, Side: domain.SignalBuy, Mark: 100, Stop: 95, Target: 150, RiskUSD: 5}, cfg)
		require.NoError(t, err)
	}
	b.Advance("w", PriceObservation(102, hourMs), cfg)
	b.Advance("l", PriceObservation(99, hourMs), cfg)
	assert.InDelta(t, 101.0, b.Equity(), 1e-9)

	fills := b.CloseWhere(func(p domain.Position) bool { return p.UnrealizedPnL(p.LastPrice) > 0 }, domain.ExitReasonManual, 2*hourMs, cfg)
	require.Len(t, fills, 1)
	assert.Equal(t, "w", fills[0].Position.Symbol)
	assert.True(t, b.HasOpen("l"))
	assert.False(t, b.HasOpen("w"))
}
