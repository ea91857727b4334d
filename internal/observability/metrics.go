// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Live loop metrics
	TicksTotal      *prometheus.CounterVec
	TicksSkipped    prometheus.Counter
	TickDuration    prometheus.Histogram
	SymbolErrors    *prometheus.CounterVec
	UniverseSize    prometheus.Gauge
	StreamUpdates   prometheus.Counter
	StreamReconnect prometheus.Counter

	// Decision and gate metrics
	Decisions   *prometheus.CounterVec
	GateVetoes  *prometheus.CounterVec
	PendingSize prometheus.Gauge

	// Trading metrics
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	OpenPositions   prometheus.Gauge
	RealizedNetUSD  prometheus.Counter
	TradeNetR       prometheus.Histogram

	// Account metrics
	CashUSD       prometheus.Gauge
	EquityUSD     prometheus.Gauge
	DrawdownRatio prometheus.Gauge
	Locked        prometheus.Gauge

	// Backtest metrics
	BacktestRuns     *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	GridCombos       prometheus.Counter

	// Market data metrics
	MarketDataLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTick prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg. A nil reg
// selects the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "trend_edge_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Live loop metrics
		TicksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "ticks_total",
			Help:      "Total number of live ticks by status",
		}, []string{"status"}),
		TicksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "ticks_skipped_total",
			Help:      "Total number of ticks skipped because the previous one was still running",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "tick_duration_seconds",
			Help:      "Live tick duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		SymbolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "symbol_errors_total",
			Help:      "Total number of per-symbol tick errors",
		}, []string{"symbol"}),
		UniverseSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "universe_size",
			Help:      "Number of symbols scanned per tick",
		}),
		StreamUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "stream_updates_total",
			Help:      "Total number of kline stream updates applied",
		}),
		StreamReconnect: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "stream_reconnects_total",
			Help:      "Total number of kline stream reconnects",
		}),

		// Decision and gate metrics
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "decisions_total",
			Help:      "Total number of decisions by model and signal",
		}, []string{"model", "signal"}),
		GateVetoes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "gate_vetoes_total",
			Help:      "Total number of vetoes by gate and reason",
		}, []string{"gate", "reason"}),
		PendingSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "pending_ideas",
			Help:      "Number of ideas waiting for acceptance",
		}),

		// Trading metrics
		PositionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by side",
		}, []string{"side"}),
		PositionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by exit reason",
		}, []string{"reason"}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}),
		RealizedNetUSD: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_net_profit_usd_total",
			Help:      "Sum of positive realized net P&L in USD",
		}),
		TradeNetR: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_net_r",
			Help:      "Net R multiple of closed trades",
			Buckets:   []float64{-2, -1, -0.5, 0, 0.5, 1, 2, 3, 5},
		}),

		// Account metrics
		CashUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "cash_usd",
			Help:      "Paper account cash balance",
		}),
		EquityUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "equity_usd",
			Help:      "Cash plus unrealized P&L",
		}),
		DrawdownRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "drawdown_ratio",
			Help:      "Drawdown from the cash high-water mark",
		}),
		Locked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "locked",
			Help:      "1 when new entries are locked",
		}),

		// Backtest metrics
		BacktestRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		GridCombos: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "grid_combos_total",
			Help:      "Total number of grid search combinations replayed",
		}),

		// Market data metrics
		MarketDataLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_latency_seconds",
			Help:      "Market data request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulTick: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of last completed live tick",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordTick records one finished tick.
func (m *Metrics) RecordTick(status string, seconds float64, endUnix int64) {
	m.TicksTotal.WithLabelValues(status).Inc()
	m.TickDuration.Observe(seconds)
	if status == "ok" {
		m.LastSuccessfulTick.Set(float64(endUnix))
	}
}

// RecordVeto records a gate veto.
func (m *Metrics) RecordVeto(gate, reason string) {
	m.GateVetoes.WithLabelValues(gate, reason).Inc()
}

// RecordClose records a closed trade.
func (m *Metrics) RecordClose(reason string, netUSD, netR float64) {
	m.PositionsClosed.WithLabelValues(reason).Inc()
	m.TradeNetR.Observe(netR)
	if netUSD > 0 {
		m.RealizedNetUSD.Add(netUSD)
	}
}

// UpdateAccount sets the account gauges.
func (m *Metrics) UpdateAccount(cash, equity, drawdown float64, locked bool, open, pending int) {
	m.CashUSD.Set(cash)
	m.EquityUSD.Set(equity)
	m.DrawdownRatio.Set(drawdown)
	m.OpenPositions.Set(float64(open))
	m.PendingSize.Set(float64(pending))
	if locked {
		m.Locked.Set(1)
	} else {
		m.Locked.Set(0)
	}
}

// RecordBacktest records a finished backtest.
func (m *Metrics) RecordBacktest(status string, seconds float64) {
	m.BacktestRuns.WithLabelValues(status).Inc()
	m.BacktestDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
