// Package lifecycle owns open paper positions: entry execution, the ordered
// per-observation management sequence and the accounting of every exit leg
// against a ledger.
package lifecycle

import (
	"errors"
	"fmt"
	"math"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/ledger"
)

// Book errors
var (
	ErrPositionNotFound = errors.New("position not found")
	ErrInvalidPosition  = errors.New("invalid position")
)

const (
	dustQty        = 1e-10
	minPartialPct  = 0.01
	maxPartialPct  = 0.90
	rDenominatorLo = 1e-9
)

// OpenRequest describes an approved entry.
type OpenRequest struct {
	ID       string
	Symbol   string
	Interval string
	Side     domain.Signal
	Model    domain.ModelType
	Score    float64
	Mark     float64 // nominal entry price before execution costs
	Stop     float64
	Target   float64
	ATR      float64
	RiskUSD  float64 // risk budget; quantity = RiskUSD / |entry - stop|
	RiskMult float64
	BarTs    int64 // open time of the signal bar
	NowMs    int64
}

// Observation is one price update for a symbol. Live ticks carry
// High = Low = Price; replayed bars carry the bar range.
type Observation struct {
	Price float64
	High  float64
	Low   float64
	BarTs int64
}

// PriceObservation builds a point observation.
func PriceObservation(price float64, barTs int64) Observation {
	return Observation{Price: price, High: price, Low: price, BarTs: barTs}
}

// BarObservation builds an observation from a completed bar.
func BarObservation(b domain.Bar) Observation {
	return Observation{Price: b.Close, High: b.High, Low: b.Low, BarTs: b.TimestampMs}
}

// FillKind distinguishes partial and terminal exits.
type FillKind string

// Fill kinds.
const (
	FillPartial FillKind = "PARTIAL"
	FillClose   FillKind = "CLOSE"
)

// Fill is the accounting of one exit leg.
type Fill struct {
	Kind          FillKind
	Position      domain.Position // state after the leg
	Reason        string
	Mark          float64
	Price         float64 // executed
	Qty           float64
	GrossPnL      float64
	FeeExit       float64
	FeeEntryAlloc float64
	Taxable       float64
	Tax           float64
	LossLocked    bool                // the leg engaged the LOSS lock
	Record        *domain.TradeRecord // terminal fills only
	Effect        ledger.CloseEffect  // terminal fills only
}

// Book is the set of open positions of one run. It is not safe for
// concurrent use.
type Book struct {
	runID     string
	ledger    *ledger.Ledger
	positions []*domain.Position
}

// NewBook creates an empty book booking against l.
func NewBook(runID string, l *ledger.Ledger) *Book {
	return &Book{runID: runID, ledger: l}
}

// Open executes an entry, charges the entry fee and adds the position.
func (b *Book) Open(req OpenRequest, cfg *domain.Config) (domain.Position, error) {
	if req.Side != domain.SignalBuy && req.Side != domain.SignalSell {
		return domain.Position{}, fmt.Errorf("%w: side %q", ErrInvalidPosition, req.Side)
	}
	entry := ExecutionPrice(req.Side, req.Mark, cfg)
	if entry <= 0 || !(req.RiskUSD > 0) {
		return domain.Position{}, fmt.Errorf("%w: entry=%f risk=%f", ErrInvalidPosition, entry, req.RiskUSD)
	}
	qty := req.RiskUSD / math.Max(rDenominatorLo, math.Abs(entry-req.Stop))
	if !(qty > dustQty) || math.IsInf(qty, 0) {
		return domain.Position{}, fmt.Errorf("%w: qty=%g", ErrInvalidPosition, qty)
	}

	feePct := FeePct(cfg)
	feeEntry := FeeUSD(entry*qty, feePct)
	b.ledger.ChargeFee(feeEntry)

	riskMult := req.RiskMult
	if riskMult <= 0 {
		riskMult = 1
	}
	p := &domain.Position{
		ID:                req.ID,
		Symbol:            req.Symbol,
		Interval:          req.Interval,
		Side:              req.Side,
		Model:             req.Model,
		Score:             req.Score,
		State:             domain.PositionOpen,
		Entry:             entry,
		Stop:              req.Stop,
		Target:            req.Target,
		ATR:               req.ATR,
		Qty:               qty,
		QtyInitial:        qty,
		RiskUSD:           req.RiskUSD,
		RiskUSDInitial:    req.RiskUSD,
		RiskMult:          riskMult,
		FeePct:            feePct,
		FeeEntryTotal:     feeEntry,
		FeeEntryRemaining: feeEntry,
		TaxOn:             cfg.TaxOn,
		TaxPct:            cfg.TaxPct,
		TaxApplyCash:      cfg.TaxApplyCash,
		TrailMult:         cfg.ATRTrail,
		Peak:              entry,
		OpenedAtMs:        req.NowMs,
		OpenedBarMs:       req.BarTs,
		LastPrice:         entry,
	}
	b.positions = append(b.positions, p)
	b.ledger.RecordOpen(entry * qty)
	return *p, nil
}

// Advance applies one observation to every open position on symbol, in
// order: excursion, partial exit, break-even, trailing stop, time stop,
// auto-profit and stop/target. It returns the exit legs it booked.
func (b *Book) Advance(symbol string, obs Observation, cfg *domain.Config) []Fill {
	barMs := domain.IntervalMs(cfg.Interval)
	var fills []Fill

	for _, p := range b.bySymbol(symbol) {
		price := obs.Price
		p.LastPrice = price
		dir := p.Dir()

		// 1. excursion
		if p.Side == domain.SignalBuy {
			p.Peak = math.Max(p.Peak, price)
		} else {
			p.Peak = math.Min(p.Peak, price)
		}
		favR := dir * (price - p.Entry) / riskUnit(p)
		p.MaxFavR = math.Max(p.MaxFavR, math.Max(0, favR))
		p.MaxAdvR = math.Max(p.MaxAdvR, math.Max(0, -favR))

		// 2. partial exit
		if cfg.PartialOn && !p.PartialDone && favR >= cfg.PartialAtR {
			reason := fmt.Sprintf("%s R>=%.1f", domain.ExitReasonPartial, cfg.PartialAtR)
			leg, closed := b.partial(p, price, cfg.PartialPct, reason, obs.BarTs, cfg)
			fills = append(fills, leg...)
			p.PartialDone = true
			if closed {
				continue
			}
			if cfg.BEAfterPartialOn {
				p.Stop = p.Entry
				p.MovedBE = true
			}
		}

		// 3. break-even
		if !p.MovedBE && cfg.BreakEvenR > 0 && favR >= cfg.BreakEvenR {
			p.Stop = p.Entry
			p.MovedBE = true
		}

		// 4. trailing stop, never loosens
		if p.TrailMult > 0 && p.ATR > 0 {
			dist := p.ATR * p.TrailMult
			if p.Side == domain.SignalBuy {
				if s := p.Peak - dist; s > p.Stop {
					p.Stop = s
				}
			} else if s := p.Peak + dist; s < p.Stop {
				p.Stop = s
			}
		}

		// 5. time stop
		if cfg.TimeStopOn && cfg.TimeStopCandles > 0 && barMs > 0 {
			bars := (obs.BarTs - p.OpenedBarMs) / barMs
			if bars >= int64(cfg.TimeStopCandles) {
				fills = append(fills, b.close(p, price, domain.ExitReasonTimeStop, obs.BarTs, cfg))
				continue
			}
		}

		// 6. auto-profit
		if cfg.AutoProfitOn {
			notional := math.Max(rDenominatorLo, math.Abs(p.Entry*p.Qty))
			if p.UnrealizedPnL(price)/notional*100 >= cfg.AutoProfitPct {
				fills = append(fills, b.close(p, price, domain.ExitReasonAutoProfit, obs.BarTs, cfg))
				continue
			}
		}

		// 7. stop before target, filled at the level
		if p.Side == domain.SignalBuy {
			switch {
			case obs.Low <= p.Stop:
				fills = append(fills, b.close(p, p.Stop, domain.ExitReasonStop, obs.BarTs, cfg))
			case obs.High >= p.Target:
				fills = append(fills, b.close(p, p.Target, domain.ExitReasonTarget, obs.BarTs, cfg))
			}
		} else {
			switch {
			case obs.High >= p.Stop:
				fills = append(fills, b.close(p, p.Stop, domain.ExitReasonStop, obs.BarTs, cfg))
			case obs.Low <= p.Target:
				fills = append(fills, b.close(p, p.Target, domain.ExitReasonTarget, obs.BarTs, cfg))
			}
		}
	}
	return fills
}

// Close terminates position id at mark.
func (b *Book) Close(id string, mark float64, reason string, tsMs int64, cfg *domain.Config) (Fill, error) {
	p := b.find(id)
	if p == nil {
		return Fill{}, ErrPositionNotFound
	}
	return b.close(p, mark, reason, tsMs, cfg), nil
}

// ClosePartial closes pct (clamped to [0.01, 0.90]) of position id at mark.
func (b *Book) ClosePartial(id string, mark, pct float64, reason string, tsMs int64, cfg *domain.Config) ([]Fill, error) {
	p := b.find(id)
	if p == nil {
		return nil, ErrPositionNotFound
	}
	fills, _ := b.partial(p, mark, pct, reason, tsMs, cfg)
	return fills, nil
}

// CloseWhere terminates every position accepted by match at its last price.
func (b *Book) CloseWhere(match func(domain.Position) bool, reason string, tsMs int64, cfg *domain.Config) []Fill {
	var fills []Fill
	for _, p := range append([]*domain.Position(nil), b.positions...) {
		if match != nil && !match(*p) {
			continue
		}
		fills = append(fills, b.close(p, p.LastPrice, reason, tsMs, cfg))
	}
	return fills
}

// Positions returns copies of the open positions in opening order.
func (b *Book) Positions() []domain.Position {
	out := make([]domain.Position, len(b.positions))
	for i, p := range b.positions {
		out[i] = *p
	}
	return out
}

// OpenCount returns the number of open positions.
func (b *Book) OpenCount() int {
	return len(b.positions)
}

// HasOpen reports whether symbol has an open position.
func (b *Book) HasOpen(symbol string) bool {
	for _, p := range b.positions {
		if p.Symbol == symbol {
			return true
		}
	}
	return false
}

// Equity returns cash plus the unrealized P&L of open positions at their
// last observed price.
func (b *Book) Equity() float64 {
	eq := b.ledger.Cash()
	for _, p := range b.positions {
		eq += p.UnrealizedPnL(p.LastPrice)
	}
	return eq
}

// settle executes qty of p at mark and books the gross result.
func (b *Book) settle(p *domain.Position, mark, qty float64, cfg *domain.Config) (px, pnl, feeExit float64, locked bool) {
	px = ExecutionPrice(opposite(p.Side), mark, cfg)
	feeExit = FeeUSD(px*qty, p.FeePct)
	b.ledger.ChargeFee(feeExit)
	p.FeeExitTotal += feeExit

	pnl = p.Dir() * (px - p.Entry) * qty
	locked = b.ledger.BookRealized(pnl)
	p.GrossRealized += pnl
	return px, pnl, feeExit, locked
}

func (b *Book) tax(p *domain.Position, taxable float64) float64 {
	if !p.TaxOn {
		return 0
	}
	t := b.ledger.ChargeTax(taxable, p.TaxPct, p.TaxApplyCash)
	p.TaxTotal += t
	return t
}

// partial closes a fraction of p. closed reports that the remainder fell
// below dust and the position was finalized.
func (b *Book) partial(p *domain.Position, mark, pct float64, reason string, tsMs int64, cfg *domain.Config) ([]Fill, bool) {
	pct = math.Max(minPartialPct, math.Min(maxPartialPct, pct))
	pre := p.Qty
	qtyClose := pre * pct
	if qtyClose <= 1e-12 {
		return nil, false
	}

	px, pnl, feeExit, locked := b.settle(p, mark, qtyClose, cfg)
	alloc := p.FeeEntryRemaining * qtyClose / math.Max(1e-12, pre)
	p.FeeEntryRemaining = math.Max(0, p.FeeEntryRemaining-alloc)
	taxable := pnl - alloc - feeExit
	tax := b.tax(p, taxable)

	p.Qty = pre - qtyClose
	p.RiskUSD *= 1 - pct
	p.State = domain.PositionPartial

	fills := []Fill{{
		Kind:          FillPartial,
		Reason:        reason,
		Mark:          mark,
		Price:         px,
		Qty:           qtyClose,
		GrossPnL:      pnl,
		FeeExit:       feeExit,
		FeeEntryAlloc: alloc,
		Taxable:       taxable,
		Tax:           tax,
		LossLocked:    locked,
	}}
	if p.Qty <= dustQty {
		fills = append(fills, b.finalize(p, px, reason, tsMs))
		fills[0].Position = fills[1].Position
		return fills, true
	}
	fills[0].Position = *p
	return fills, false
}

// close terminates p at mark.
func (b *Book) close(p *domain.Position, mark float64, reason string, tsMs int64, cfg *domain.Config) Fill {
	qty := p.Qty
	px, pnl, feeExit, locked := b.settle(p, mark, qty, cfg)
	alloc := p.FeeEntryRemaining
	p.FeeEntryRemaining = 0
	taxable := pnl - alloc - feeExit
	tax := b.tax(p, taxable)

	f := b.finalize(p, px, reason, tsMs)
	f.Mark = mark
	f.Qty = qty
	f.GrossPnL = pnl
	f.FeeExit = feeExit
	f.FeeEntryAlloc = alloc
	f.Taxable = taxable
	f.Tax = tax
	f.LossLocked = locked
	return f
}

// finalize removes p from the book and records its net outcome.
func (b *Book) finalize(p *domain.Position, exitPx float64, reason string, tsMs int64) Fill {
	p.Qty = 0
	p.State = domain.PositionClosed
	b.remove(p.ID)

	fees := p.FeeEntryTotal + p.FeeExitTotal
	net := p.GrossRealized - fees - p.TaxTotal
	netR := net / math.Max(rDenominatorLo, p.RiskUSDInitial)
	outcome := domain.OutcomeClassLoss
	if net > 0 {
		outcome = domain.OutcomeClassWin
	}
	rec := &domain.TradeRecord{
		TradeID:      p.ID,
		RunID:        b.runID,
		Symbol:       p.Symbol,
		Interval:     p.Interval,
		Side:         p.Side,
		Model:        p.Model,
		OpenedAtMs:   p.OpenedBarMs,
		EntryPrice:   p.Entry,
		QtyInitial:   p.QtyInitial,
		RiskUSD:      p.RiskUSDInitial,
		ClosedAtMs:   tsMs,
		ExitPrice:    exitPx,
		ExitReason:   reason,
		GrossPnL:     p.GrossRealized,
		FeesUSD:      fees,
		TaxUSD:       p.TaxTotal,
		NetPnL:       net,
		NetR:         netR,
		MaxFavR:      p.MaxFavR,
		MaxAdvR:      p.MaxAdvR,
		OutcomeClass: outcome,
	}
	eff := b.ledger.RecordClose(domain.ClosedNet{
		TimestampMs: tsMs,
		Symbol:      p.Symbol,
		NetUSD:      net,
		NetR:        netR,
		Win:         net > 0,
	})
	return Fill{
		Kind:     FillClose,
		Position: *p,
		Reason:   reason,
		Price:    exitPx,
		Record:   rec,
		Effect:   eff,
	}
}

// riskUnit is the initial entry-to-stop distance, the denominator of R.
func riskUnit(p *domain.Position) float64 {
	if p.QtyInitial > 0 && p.RiskUSDInitial > 0 {
		return math.Max(rDenominatorLo, p.RiskUSDInitial/p.QtyInitial)
	}
	return math.Max(rDenominatorLo, math.Abs(p.Entry-p.Stop))
}

func (b *Book) bySymbol(symbol string) []*domain.Position {
	var out []*domain.Position
	for _, p := range b.positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out
}

func (b *Book) find(id string) *domain.Position {
	for _, p := range b.positions {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (b *Book) remove(id string) {
	for i, p := range b.positions {
		if p.ID == id {
			b.positions = append(b.positions[:i], b.positions[i+1:]...)
			return
		}
	}
}
