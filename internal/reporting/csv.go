package reporting

import (
	"fmt"
	"sort"
	"strings"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/gridsearch"
)

// RenderCSV renders the run list as CSV.
func RenderCSV(runs []RunRow) string {
	var sb strings.Builder

	sb.WriteString("run_id,symbol,interval,model,created_at_ms,bars,trades,net_profit,win_rate,")
	sb.WriteString("expectancy,max_drawdown,final_equity,dominant_block_reason\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%d,%d,%s,%.6f,%s,%.6f,%s,%s\n",
			r.RunID,
			r.Symbol,
			r.Interval,
			r.Model,
			r.CreatedAtMs,
			r.Bars,
			r.Trades,
			r.NetProfit.StringFixed(2),
			r.WinRate,
			r.Expectancy.StringFixed(2),
			r.MaxDrawdown,
			r.FinalEquity.StringFixed(2),
			r.DominantBlockReason,
		))
	}

	return sb.String()
}

// RenderTradesCSV renders trade records as CSV, one row per closed trade.
func RenderTradesCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,symbol,side,opened_at_ms,entry,closed_at_ms,exit,exit_reason,")
	sb.WriteString("gross_pnl,fees_usd,tax_usd,net_pnl,net_r\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.8f,%d,%.8f,%s,%s,%s,%s,%s,%.4f\n",
			t.TradeID,
			t.RunID,
			t.Symbol,
			t.Side,
			t.OpenedAtMs,
			t.EntryPrice,
			t.ClosedAtMs,
			t.ExitPrice,
			t.ExitReason,
			usd(t.GrossPnL).StringFixed(2),
			usd(t.FeesUSD).StringFixed(2),
			usd(t.TaxUSD).StringFixed(2),
			usd(t.NetPnL).StringFixed(2),
			t.NetR,
		))
	}

	return sb.String()
}

// RenderGridCSV renders every grid search row in combination order. The
// parameter columns are the sorted union of the combination keys.
func RenderGridCSV(res *gridsearch.Result) string {
	keys := paramKeys(res.Rows)
	var sb strings.Builder

	sb.WriteString("index,")
	for _, k := range keys {
		sb.WriteString(k + ",")
	}
	sb.WriteString("trades,net_profit,expectancy,win_rate,max_drawdown,rejected,error\n")

	for _, r := range res.Rows {
		sb.WriteString(fmt.Sprintf("%d,", r.Index))
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("%v,", r.Params[k]))
		}
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%.6f,%.6f,%t,%q\n",
			r.Trades,
			usd(r.NetProfit).StringFixed(2),
			usd(r.Expectancy).StringFixed(2),
			r.WinRate,
			r.MaxDrawdown,
			r.Rejected,
			r.Err,
		))
	}

	return sb.String()
}

func paramKeys(rows []gridsearch.Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Params {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
