package risk

import (
	"sync"

	"trend-edge-lab/internal/domain"
)

// Trade guard bounds.
const (
	guardCap  = 1500
	guardTrim = 700
)

// TradeGuard remembers recently opened signal keys so the same signal on the
// same bar is never opened twice. When it grows past 1500 keys the oldest 700
// are dropped.
type TradeGuard struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewTradeGuard creates an empty guard.
func NewTradeGuard() *TradeGuard {
	return &TradeGuard{seen: make(map[string]struct{})}
}

// Check vetoes NO_REPEAT when NoRepeat is set and key was already marked.
func (g *TradeGuard) Check(key string, cfg *domain.Config) domain.GateResult {
	if !cfg.NoRepeat || !g.Seen(key) {
		return domain.Pass(domain.GateTradeGuard)
	}
	return domain.Veto(domain.GateTradeGuard, domain.ReasonNoRepeat, nil)
}

// Seen reports whether key was marked.
func (g *TradeGuard) Seen(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[key]
	return ok
}

// Mark records key.
func (g *TradeGuard) Mark(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return
	}
	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
	if len(g.order) > guardCap {
		for _, k := range g.order[:guardTrim] {
			delete(g.seen, k)
		}
		g.order = append([]string(nil), g.order[guardTrim:]...)
	}
}

// Len returns the number of remembered keys.
func (g *TradeGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
