// Package gridsearch replays one series under every combination of a
// parameter grid and ranks the combinations by expectancy.
package gridsearch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/edge"
)

// Acceptance bounds and ranking size.
const (
	DefaultMinTrades   = 6
	DefaultMaxDrawdown = 0.12
	DefaultTopK        = 10
)

// Grid search errors
var (
	ErrEmptyGrid = errors.New("empty parameter grid")
)

// Grid maps a config yaml key to the values to try.
type Grid map[string][]any

// DefaultGrid returns the stock exploration grid.
func DefaultGrid() Grid {
	return Grid{
		"stopAtrMult":      {1.2, 1.5, 1.8, 2.1},
		"rTarget":          {2.0, 2.5, 3.0},
		"breakoutLookback": {10, 12, 15},
		"chopSlopeNorm":    {0.03, 0.05, 0.08},
		"bullSlopeNorm":    {0.08, 0.10, 0.12},
	}
}

// ParseGrid parses "key=v1,v2,..." specs into a grid. Values stay strings;
// config.ApplyOverrides converts them to the field type.
func ParseGrid(specs []string) (Grid, error) {
	g := make(Grid, len(specs))
	for _, spec := range specs {
		k, vals, ok := strings.Cut(spec, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=v1,v2", ErrEmptyGrid, spec)
		}
		for _, v := range strings.Split(vals, ",") {
			if v = strings.TrimSpace(v); v != "" {
				g[k] = append(g[k], v)
			}
		}
		if len(g[k]) == 0 {
			return nil, fmt.Errorf("%w: %s has no values", ErrEmptyGrid, k)
		}
	}
	return g, nil
}

// Size returns the number of combinations.
func (g Grid) Size() int {
	n := 0
	for _, vals := range g {
		if len(vals) == 0 {
			continue
		}
		n = max(n, 1) * len(vals)
	}
	return n
}

// Combos expands the grid into every combination, iterating keys in sorted
// order with the last key varying fastest. Keys without values are skipped.
func (g Grid) Combos() []map[string]any {
	keys := make([]string, 0, len(g))
	for k, vals := range g {
		if len(vals) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	out := make([]map[string]any, 0, g.Size())
	cur := make(map[string]any, len(keys))
	var walk func(i int)
	walk = func(i int) {
		if i == len(keys) {
			combo := make(map[string]any, len(cur))
			for k, v := range cur {
				combo[k] = v
			}
			out = append(out, combo)
			return
		}
		for _, v := range g[keys[i]] {
			cur[keys[i]] = v
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// Request is one grid search.
type Request struct {
	Series      *domain.BarSeries
	Base        domain.Config
	Grid        Grid // nil selects DefaultGrid
	Workers     int  // concurrent replays; 0 selects GOMAXPROCS
	MinTrades   int
	MaxDrawdown float64
	TopK        int
	Recorder    audit.Recorder     // optional; receives one GRID_SEARCH event
	Logger      *zap.Logger        // optional
	Progress    prometheus.Counter // optional; incremented per replayed combination
}

// Row is the outcome of one combination.
type Row struct {
	Index       int
	Params      map[string]any
	Trades      int
	NetProfit   float64
	Expectancy  float64
	WinRate     float64
	MaxDrawdown float64
	Rejected    bool
	Err         string // replay failure; the row is rejected
}

// Result ranks the combinations.
type Result struct {
	Best        *Row // first valid row, nil when none passed
	Top         []Row
	Rows        []Row // every combination in combo order
	TotalCombos int
	ValidCount  int
}

// Run replays req.Series once per combination. Each replay owns a fresh edge
// tracker, ledger and book, so combinations never share state. A replay that
// fails or panics yields a rejected row; only cancellation aborts the search.
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Series == nil {
		return nil, backtest.ErrNoSeries
	}
	grid := req.Grid
	if grid == nil {
		grid = DefaultGrid()
	}
	combos := grid.Combos()
	if len(combos) == 0 {
		return nil, ErrEmptyGrid
	}
	minTrades := req.MinTrades
	if minTrades <= 0 {
		minTrades = DefaultMinTrades
	}
	maxDD := req.MaxDrawdown
	if maxDD <= 0 {
		maxDD = DefaultMaxDrawdown
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rows := make([]Row, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, params := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = evaluate(gctx, req, i, params, minTrades, maxDD)
			if req.Progress != nil {
				req.Progress.Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := rank(rows, req.TopK)
	logger.Info("grid search finished",
		zap.String("symbol", req.Series.Symbol),
		zap.Int("total_combos", res.TotalCombos),
		zap.Int("valid", res.ValidCount),
	)
	if req.Recorder != nil {
		info := audit.GridInfo{TotalCombos: res.TotalCombos, ValidCount: res.ValidCount}
		if res.Best != nil {
			info.BestExpectancy = res.Best.Expectancy
		}
		var ts int64
		if last, ok := req.Series.Last(); ok {
			ts = last.TimestampMs
		}
		req.Recorder.Record(audit.Event{
			Type:    audit.EventGridSearchRun,
			Symbol:  req.Series.Symbol,
			TsMs:    ts,
			Payload: info,
		})
	}
	return res, nil
}

// evaluate replays one combination.
func evaluate(ctx context.Context, req Request, i int, params map[string]any, minTrades int, maxDD float64) (row Row) {
	row = Row{Index: i, Params: params, Rejected: true}
	defer func() {
		if r := recover(); r != nil {
			row.Rejected = true
			row.Err = fmt.Sprintf("panic: %v", r)
		}
	}()

	cfg, err := config.ApplyOverrides(req.Base, params)
	if err != nil {
		row.Err = err.Error()
		return row
	}
	cfg = config.Normalize(cfg)
	res, err := backtest.Run(ctx, backtest.Request{
		Series:  req.Series,
		Config:  cfg,
		Tracker: edge.NewTracker(cfg.EdgeWindow),
	})
	if err != nil {
		row.Err = err.Error()
		return row
	}
	row.Trades = res.Trades
	row.NetProfit = res.NetProfit
	row.Expectancy = res.Expectancy
	row.WinRate = res.WinRate
	row.MaxDrawdown = res.MaxDrawdown
	row.Rejected = res.Trades < minTrades || res.MaxDrawdown > maxDD
	return row
}

// rank orders valid rows by expectancy desc, net profit desc and drawdown
// asc, ties by combo index, and appends the rejected rows in combo order.
func rank(rows []Row, topK int) *Result {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var valid, rejected []Row
	for _, r := range rows {
		if r.Rejected {
			rejected = append(rejected, r)
		} else {
			valid = append(valid, r)
		}
	}
	sort.SliceStable(valid, func(a, b int) bool {
		x, y := valid[a], valid[b]
		if x.Expectancy != y.Expectancy {
			return x.Expectancy > y.Expectancy
		}
		if x.NetProfit != y.NetProfit {
			return x.NetProfit > y.NetProfit
		}
		return x.MaxDrawdown < y.MaxDrawdown
	})

	all := append(append([]Row(nil), valid...), rejected...)
	res := &Result{
		Top:         all[:min(topK, len(all))],
		Rows:        rows,
		TotalCombos: len(rows),
		ValidCount:  len(valid),
	}
	if len(valid) > 0 {
		best := valid[0]
		res.Best = &best
	}
	return res
}
