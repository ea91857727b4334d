package live

import (
	"fmt"

	"go.uber.org/zap"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/idhash"
	"trend-edge-lab/internal/ledger"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/risk"
)

// Status is a point-in-time view of the session.
type Status struct {
	RunID            string
	Model            domain.ModelType
	Interval         string
	Mode             domain.TradeMode
	Symbols          []string
	Ledger           ledger.State
	Fees             ledger.FeesSnapshot
	Rollup           ledger.Rollup
	Equity           float64
	DrawdownFromHigh float64
	OpenPositions    int
	Pending          int
	Ticks            int64
	TicksSkipped     int64
	LastTickMs       int64
	LastTickDuration int64 // milliseconds
	LastTickErrors   string
}

// Status returns the current session view.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{
		RunID:            e.runID,
		Model:            e.model.Name(),
		Interval:         e.cfg.Interval,
		Mode:             e.cfg.Mode,
		Symbols:          append([]string(nil), e.symbols...),
		Ledger:           e.ledger.State(),
		Fees:             e.ledger.Fees(e.cfg.OffRampSpreadPct, e.cfg.OffRampFixedUSD),
		Rollup:           e.ledger.Rollup(),
		Equity:           e.book.Equity(),
		DrawdownFromHigh: e.ledger.DrawdownFromHigh(),
		OpenPositions:    e.book.OpenCount(),
		Pending:          e.pending.Len(),
		Ticks:            e.ticks.Load(),
		TicksSkipped:     e.skipped.Load(),
		LastTickMs:       e.lastTick.StartedAtMs,
		LastTickDuration: e.lastTick.Duration.Milliseconds(),
	}
	if e.lastTick.Err != nil {
		st.LastTickErrors = e.lastTick.Err.Error()
	}
	return st
}

// Positions returns the open positions in opening order.
func (e *Engine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Positions()
}

// Pending returns the ideas waiting for acceptance, newest first.
func (e *Engine) Pending() []Idea {
	return e.pending.List()
}

// AcceptPending opens a pending idea. The account pre-gates are checked
// again and the position is sized on the current cash.
func (e *Engine) AcceptPending(id string) (domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idea, ok := e.pending.Get(id)
	if !ok {
		return domain.Position{}, fmt.Errorf("pending %s: %w", id, ErrIdeaNotFound)
	}
	nowMs := e.clock().UnixMilli()
	if adm := risk.Admit(e.ledger, e.book.OpenCount(), idea.Symbol, nowMs, e.cfg); !adm.OK && adm.Reason != domain.ReasonCooldown {
		return domain.Position{}, fmt.Errorf("%w: %s", ErrIdeaBlocked, adm.Reason)
	}
	pos, err := e.open(idea, nowMs)
	if err != nil {
		return domain.Position{}, err
	}
	e.pending.Remove(id)
	e.record(audit.EventPending, idea.Symbol, pendingInfo(idea, "ACCEPTED"))
	return pos, nil
}

// RejectPending drops a pending idea.
func (e *Engine) RejectPending(id string) error {
	idea, ok := e.pending.Remove(id)
	if !ok {
		return fmt.Errorf("pending %s: %w", id, ErrIdeaNotFound)
	}
	e.record(audit.EventPending, idea.Symbol, pendingInfo(idea, "REJECTED"))
	return nil
}

// ClosePosition closes position id at its last observed price.
func (e *Engine) ClosePosition(id string) (*domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var mark float64
	for _, p := range e.book.Positions() {
		if p.ID == id {
			mark = p.LastPrice
		}
	}
	if mark <= 0 {
		if !e.hasPosition(id) {
			return nil, lifecycle.ErrPositionNotFound
		}
		return nil, ErrNoPrice
	}
	nowMs := e.clock().UnixMilli()
	f, err := e.book.Close(id, mark, domain.ExitReasonManual, nowMs, e.cfg)
	if err != nil {
		return nil, err
	}
	e.settle(nowMs, []lifecycle.Fill{f})
	return f.Record, nil
}

// CloseAll closes every open position at market.
func (e *Engine) CloseAll() int {
	return e.closeWhere("all", nil)
}

// CloseProfitable closes the positions currently in profit.
func (e *Engine) CloseProfitable() int {
	return e.closeWhere("profitable", func(p domain.Position) bool {
		return p.UnrealizedPnL(p.LastPrice) > 0
	})
}

// CloseLosing closes the positions currently at a loss.
func (e *Engine) CloseLosing() int {
	return e.closeWhere("losing", func(p domain.Position) bool {
		return p.UnrealizedPnL(p.LastPrice) < 0
	})
}

func (e *Engine) closeWhere(scope string, match func(domain.Position) bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	nowMs := e.clock().UnixMilli()
	n := e.settle(nowMs, e.book.CloseWhere(func(p domain.Position) bool {
		return p.LastPrice > 0 && (match == nil || match(p))
	}, domain.ExitReasonManual, nowMs, e.cfg))
	e.logger.Info("manual close", zap.String("scope", scope), zap.Int("closed", n))
	return n
}

// Unlock clears every safety lock, both loss streaks, the risk cut and the
// kill switch, and re-anchors the day at the current cash.
func (e *Engine) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, reason := e.ledger.LockInfo()
	e.ledger.Unlock()
	e.record(audit.EventUnlock, "", audit.LockInfo{LockType: prev, Reason: reason, Cash: e.ledger.Cash()})
	e.logger.Info("manual unlock", zap.String("previous", string(prev)))
}

func (e *Engine) hasPosition(id string) bool {
	for _, p := range e.book.Positions() {
		if p.ID == id {
			return true
		}
	}
	return false
}

func positionID(runID string, idea Idea) string {
	return idhash.ComputePositionID(runID, idea.Symbol, idea.Side, idea.BarTs)
}
