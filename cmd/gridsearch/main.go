// Package main runs a parameter grid search over one symbol's history and
// prints the ranked combinations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/gridsearch"
	"trend-edge-lab/internal/logging"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/reporting"
	"trend-edge-lab/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", os.Getenv("TEL_CONFIG"), "YAML configuration file")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to replay")
	interval := flag.String("interval", "1h", "Bar interval")
	limit := flag.Int("limit", 1000, "Bars to fetch from the exchange")
	source := flag.String("source", "rest", "Bar source: rest or store")
	preset := flag.String("preset", "", "Preset applied to the base configuration")
	workers := flag.Int("workers", 0, "Concurrent replays (0 = GOMAXPROCS)")
	minTrades := flag.Int("min-trades", gridsearch.DefaultMinTrades, "Minimum trades for a valid combination")
	maxDD := flag.Float64("max-dd", gridsearch.DefaultMaxDrawdown, "Maximum drawdown fraction for a valid combination")
	topK := flag.Int("top", gridsearch.DefaultTopK, "Combinations kept in the ranking")
	format := flag.String("format", "md", "Output format: md or csv")
	var sets, grid config.Pairs
	flag.Var(&sets, "set", "Base override key=value (repeatable)")
	flag.Var(&grid, "grid", "Grid axis key=v1,v2,... (repeatable; default: stock grid)")
	flag.Parse()

	file, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Must(file.Log)
	defer func() { _ = logger.Sync() }()

	base, err := config.ApplyPreset(config.DefaultBacktest(), strings.ToUpper(*preset))
	if err != nil {
		logger.Fatal("invalid preset", zap.Error(err))
	}
	overrides, err := config.ParseSet(sets)
	if err != nil {
		logger.Fatal("invalid --set", zap.Error(err))
	}
	if base, err = config.ApplyOverrides(base, overrides); err != nil {
		logger.Fatal("invalid --set", zap.Error(err))
	}
	base.Interval = *interval

	g := gridsearch.DefaultGrid()
	if len(grid) > 0 {
		if g, err = gridsearch.ParseGrid(grid); err != nil {
			logger.Fatal("invalid --grid", zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	series, err := loadSeries(ctx, file, strings.ToUpper(*symbol), *interval, *limit, *source, logger)
	if err != nil {
		logger.Fatal("load bars", zap.Error(err))
	}

	m := observability.NewMetrics("", prometheus.NewRegistry())
	logger.Info("grid search started",
		zap.String("symbol", series.Symbol),
		zap.Int("bars", series.Len()),
		zap.Int("combos", g.Size()),
	)
	start := time.Now()
	res, err := gridsearch.Run(ctx, gridsearch.Request{
		Series:      series,
		Base:        base,
		Grid:        g,
		Workers:     *workers,
		MinTrades:   *minTrades,
		MaxDrawdown: *maxDD,
		TopK:        *topK,
		Recorder:    audit.NewZapRecorder(logger.Named("audit")),
		Logger:      logger,
		Progress:    m.GridCombos,
	})
	if err != nil {
		logger.Fatal("grid search failed", zap.Error(err))
	}
	logger.Info("grid search finished",
		zap.Int("valid", res.ValidCount),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch *format {
	case "csv":
		fmt.Print(reporting.RenderGridCSV(res))
	default:
		fmt.Print(reporting.RenderGridMarkdown(res))
	}
}

func loadSeries(ctx context.Context, file *config.File, symbol, interval string, limit int, source string, logger *zap.Logger) (*domain.BarSeries, error) {
	switch source {
	case "rest":
		client := marketdata.NewClient(file.MarketData.BaseURL,
			marketdata.WithTimeout(time.Duration(file.MarketData.TimeoutSec)*time.Second),
			marketdata.WithMaxRetries(file.MarketData.MaxRetries),
			marketdata.WithLogger(logger.Named("marketdata")),
		)
		return client.FetchBars(ctx, symbol, interval, limit)
	case "store":
		stores, err := backend.Open(ctx, file.Storage, logger)
		if err != nil {
			return nil, err
		}
		defer func() { _ = stores.Close() }()
		bars, err := stores.Bars.GetBySymbol(ctx, symbol, interval)
		if err != nil {
			return nil, err
		}
		return domain.NewBarSeries(symbol, interval, bars), nil
	default:
		return nil, fmt.Errorf("unknown bar source %q", source)
	}
}
