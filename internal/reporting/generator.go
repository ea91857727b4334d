package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/metrics"
	"trend-edge-lab/internal/storage"
)

// Generator produces reports from stored runs and trades.
type Generator struct {
	runs storage.BacktestRunStore
	agg  *metrics.Aggregator
	now  func() time.Time // injectable for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(runs storage.BacktestRunStore, trades storage.TradeRecordStore) *Generator {
	return &Generator{
		runs: runs,
		agg:  metrics.NewAggregator(trades, runs),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate lists every stored run and, when detailRunID is set, adds the
// trade breakdown of that run.
func (g *Generator) Generate(ctx context.Context, detailRunID string) (*Report, error) {
	runs, err := g.runs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	rep := &Report{GeneratedAt: g.now(), Runs: make([]RunRow, len(runs))}
	for i, r := range runs {
		rep.Runs[i] = runRow(r)
	}

	if detailRunID != "" {
		rr, err := g.agg.Report(ctx, detailRunID)
		if err != nil {
			return nil, err
		}
		rep.Detail = runDetail(rr)
	}
	return rep, nil
}

func runRow(r *domain.BacktestRun) RunRow {
	return RunRow{
		RunID:               r.RunID,
		Symbol:              r.Symbol,
		Interval:            r.Interval,
		Model:               string(r.Model),
		CreatedAtMs:         r.CreatedAtMs,
		Bars:                r.Bars,
		Trades:              r.Trades,
		NetProfit:           usd(r.NetProfit),
		WinRate:             r.WinRate,
		Expectancy:          usd(r.Expectancy),
		MaxDrawdown:         r.MaxDrawdown,
		FinalEquity:         usd(r.FinalEquity),
		DominantBlockReason: r.DominantBlockReason,
	}
}

func runDetail(rr *metrics.RunReport) *RunDetail {
	d := &RunDetail{
		Run:     runRow(rr.Run),
		Overall: statsRow("ALL", rr.Stats),
	}
	for _, s := range rr.Symbols {
		d.Symbols = append(d.Symbols, statsRow(s.Symbol, s.Stats))
	}
	for reason, n := range rr.Stats.ExitReasons {
		d.ExitReasons = append(d.ExitReasons, ReasonCount{Reason: reason, Count: n})
	}
	sortReasons(d.ExitReasons)
	return d
}

func statsRow(label string, s metrics.Stats) StatsRow {
	return StatsRow{
		Label:                label,
		Trades:               s.Trades,
		WinRate:              s.WinRate,
		NetProfit:            usd(s.NetProfit),
		GrossProfit:          usd(s.GrossProfit),
		GrossLoss:            usd(s.GrossLoss),
		ProfitFactor:         s.ProfitFactor,
		Expectancy:           usd(s.Expectancy),
		FeesUSD:              usd(s.FeesUSD),
		TaxUSD:               usd(s.TaxUSD),
		NetRMean:             s.NetRMean,
		NetRMedian:           s.NetRMedian,
		NetRP10:              s.NetRP10,
		NetRP90:              s.NetRP90,
		MaxDrawdownUSD:       usd(s.MaxDrawdownUSD),
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
	}
}

// sortReasons orders by count DESC, then reason ASC.
func sortReasons(rs []ReasonCount) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Count != rs[j].Count {
			return rs[i].Count > rs[j].Count
		}
		return rs[i].Reason < rs[j].Reason
	})
}
