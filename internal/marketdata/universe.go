package marketdata

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"trend-edge-lab/internal/domain"
)

// MaxTopN bounds the best-of-day universe.
const MaxTopN = 20

// DefaultCandidates are the USDT majors ranked for the best-of-day universe.
var DefaultCandidates = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT", "TRXUSDT", "AVAXUSDT", "LINKUSDT",
	"DOTUSDT", "MATICUSDT", "TONUSDT", "SHIBUSDT", "BCHUSDT", "LTCUSDT", "UNIUSDT", "ATOMUSDT", "ETCUSDT", "FILUSDT",
	"APTUSDT", "ARBUSDT", "OPUSDT", "NEARUSDT", "INJUSDT", "ICPUSDT", "XLMUSDT", "HBARUSDT", "IMXUSDT", "AAVEUSDT",
	"EGLDUSDT", "SUIUSDT", "FTMUSDT", "GALAUSDT", "PEPEUSDT", "RNDRUSDT", "RUNEUSDT", "STXUSDT", "MKRUSDT", "LDOUSDT",
	"KASUSDT", "TIAUSDT", "SEIUSDT", "JUPUSDT", "WIFUSDT", "BONKUSDT", "FLOKIUSDT", "PYTHUSDT", "ARUSDT", "THETAUSDT",
}

// TickerSource returns the 24h change percent per symbol.
type TickerSource interface {
	Fetch24hChangePercent(ctx context.Context) (map[string]float64, error)
}

// Mover is a candidate with its 24h change.
type Mover struct {
	Symbol    string
	ChangePct float64
}

// RankMovers orders the candidates present in changes by |change| desc,
// ties by symbol. Candidates without a finite change are dropped.
func RankMovers(candidates []string, changes map[string]float64) []Mover {
	out := make([]Mover, 0, len(candidates))
	for _, sym := range candidates {
		pct, ok := changes[sym]
		if !ok || math.IsNaN(pct) || math.IsInf(pct, 0) {
			continue
		}
		out = append(out, Mover{Symbol: sym, ChangePct: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := math.Abs(out[i].ChangePct), math.Abs(out[j].ChangePct)
		if a != b {
			return a > b
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// ClampTopN bounds n to [1, MaxTopN].
func ClampTopN(n int) int {
	return min(MaxTopN, max(1, n))
}

// Universe keeps the best-of-day ranking and resolves the symbols a live
// tick scans. A failed refresh keeps the previous ranking.
type Universe struct {
	source     TickerSource
	candidates []string
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	movers    []Mover
	updatedAt time.Time
	lastErr   error
}

// NewUniverse creates a universe ranking candidates; nil selects
// DefaultCandidates.
func NewUniverse(source TickerSource, candidates []string, logger *zap.Logger) *Universe {
	if candidates == nil {
		candidates = DefaultCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Universe{
		source:     source,
		candidates: candidates,
		logger:     logger,
		now:        time.Now,
	}
}

// Due reports whether the ranking is older than cfg.BestRefreshMin.
func (u *Universe) Due(cfg *domain.Config) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.updatedAt.IsZero() {
		return true
	}
	return u.now().Sub(u.updatedAt) >= time.Duration(cfg.BestRefreshMin)*time.Minute
}

// Refresh reranks the candidates unless the ranking is fresh. force skips
// the freshness check.
func (u *Universe) Refresh(ctx context.Context, cfg *domain.Config, force bool) error {
	if !force && !u.Due(cfg) {
		return nil
	}
	changes, err := u.source.Fetch24hChangePercent(ctx)
	if err != nil {
		u.mu.Lock()
		u.lastErr = err
		u.mu.Unlock()
		u.logger.Warn("best-of-day refresh failed", zap.Error(err))
		return err
	}
	movers := RankMovers(u.candidates, changes)

	u.mu.Lock()
	u.movers = movers
	u.updatedAt = u.now()
	u.lastErr = nil
	u.mu.Unlock()

	top := movers[:min(ClampTopN(cfg.TopN), len(movers))]
	fields := make([]string, len(top))
	for i, m := range top {
		fields[i] = m.Symbol
	}
	u.logger.Info("best-of-day updated", zap.Strings("top", fields))
	return nil
}

// Symbols returns the symbols to scan: cfg.Symbols in FIXED mode, otherwise
// the top cfg.TopN movers, falling back to cfg.Symbols before the first
// successful refresh.
func (u *Universe) Symbols(cfg *domain.Config) []string {
	if cfg.UniverseMode != domain.UniverseTopN {
		return cfg.Symbols
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	if len(u.movers) == 0 {
		return cfg.Symbols
	}
	n := min(ClampTopN(cfg.TopN), len(u.movers))
	out := make([]string, n)
	for i := range n {
		out[i] = u.movers[i].Symbol
	}
	return out
}

// Movers returns a copy of the current ranking.
func (u *Universe) Movers() []Mover {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]Mover(nil), u.movers...)
}

// LastError returns the error of the latest refresh, nil after a success.
func (u *Universe) LastError() error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastErr
}
