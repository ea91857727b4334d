package reporting

import (
	"fmt"
	"strings"
	"time"

	"trend-edge-lab/internal/gridsearch"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d\n\n", len(r.Runs)))

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Symbol | Interval | Model | Bars | Trades | Net | WinRate | Expectancy | MaxDD | Equity | Block |\n")
		sb.WriteString("|-----|--------|----------|-------|------|--------|-----|---------|------------|-------|--------|-------|\n")
		for _, run := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %d | %s | %.4f | %s | %.4f | %s | %s |\n",
				run.RunID, run.Symbol, run.Interval, run.Model, run.Bars, run.Trades,
				run.NetProfit.StringFixed(2), run.WinRate, run.Expectancy.StringFixed(2),
				run.MaxDrawdown, run.FinalEquity.StringFixed(2), orDash(run.DominantBlockReason)))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	if r.Detail == nil {
		return sb.String()
	}

	d := r.Detail
	sb.WriteString(fmt.Sprintf("## Run %s\n\n", d.Run.RunID))
	if d.Overall.Trades == 0 {
		sb.WriteString(fmt.Sprintf("No trades. Dominant block reason: %s\n\n", orDash(d.Run.DominantBlockReason)))
		return sb.String()
	}

	sb.WriteString("### Trade Statistics\n\n")
	writeStatsTable(&sb, append([]StatsRow{d.Overall}, d.Symbols...))

	sb.WriteString("### Exit Reasons\n\n")
	sb.WriteString("| Reason | Count |\n")
	sb.WriteString("|--------|-------|\n")
	for _, rc := range d.ExitReasons {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", rc.Reason, rc.Count))
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeStatsTable(sb *strings.Builder, rows []StatsRow) {
	sb.WriteString("| Scope | Trades | WinRate | Net | PF | Expectancy | Fees | Tax | MeanR | MedianR | P10R | P90R | MaxDD | MaxLoss |\n")
	sb.WriteString("|-------|--------|---------|-----|----|------------|------|-----|-------|---------|------|------|-------|---------|\n")
	for _, s := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %s | %.2f | %s | %s | %s | %.3f | %.3f | %.3f | %.3f | %s | %d |\n",
			s.Label, s.Trades, s.WinRate, s.NetProfit.StringFixed(2), s.ProfitFactor,
			s.Expectancy.StringFixed(2), s.FeesUSD.StringFixed(2), s.TaxUSD.StringFixed(2),
			s.NetRMean, s.NetRMedian, s.NetRP10, s.NetRP90,
			s.MaxDrawdownUSD.StringFixed(2), s.MaxConsecutiveLosses))
	}
	sb.WriteString("\n")
}

// RenderGridMarkdown renders the top combinations of a grid search.
func RenderGridMarkdown(res *gridsearch.Result) string {
	var sb strings.Builder

	sb.WriteString("# Grid Search\n\n")
	sb.WriteString(fmt.Sprintf("Combinations: %d | Valid: %d\n\n", res.TotalCombos, res.ValidCount))
	if len(res.Top) == 0 {
		sb.WriteString("No combination passed the filters.\n")
		return sb.String()
	}

	keys := paramKeys(res.Top)
	sb.WriteString("| Rank | " + strings.Join(keys, " | ") + " | Trades | Net | Expectancy | WinRate | MaxDD |\n")
	sb.WriteString("|------|" + strings.Repeat("---|", len(keys)) + "--------|-----|------------|---------|-------|\n")
	for i, r := range res.Top {
		vals := make([]string, len(keys))
		for j, k := range keys {
			vals[j] = fmt.Sprintf("%v", r.Params[k])
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %.4f | %.4f |\n",
			i+1, strings.Join(vals, " | "), r.Trades,
			usd(r.NetProfit).StringFixed(2), usd(r.Expectancy).StringFixed(2),
			r.WinRate, r.MaxDrawdown))
	}
	sb.WriteString("\n")
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
