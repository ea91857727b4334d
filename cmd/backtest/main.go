// Package main replays one symbol through the backtest engine and prints
// the run report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/logging"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/reporting"
	"trend-edge-lab/internal/storage"
	"trend-edge-lab/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", os.Getenv("TEL_CONFIG"), "YAML configuration file")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to replay")
	interval := flag.String("interval", "", "Bar interval (default: engine interval of the backtest profile)")
	limit := flag.Int("limit", 1000, "Bars to fetch from the exchange")
	source := flag.String("source", "rest", "Bar source: rest or store")
	saveBars := flag.Bool("save-bars", false, "Store bars fetched from the exchange")
	preset := flag.String("preset", "", "Preset (GROWTH_100, SCALE_300, CONSOLID_700)")
	driver := flag.String("storage", os.Getenv("TEL_STORAGE"), "Storage driver: memory or postgres")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	format := flag.String("format", "md", "Report format: md or csv")
	tradesCSV := flag.String("trades-csv", "", "Write the trade list as CSV to this file")
	var sets config.Pairs
	flag.Var(&sets, "set", "Engine override key=value (repeatable)")
	flag.Parse()

	file, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Must(file.Log)
	defer func() { _ = logger.Sync() }()

	if *driver != "" {
		file.Storage.Driver = *driver
	}
	if *postgresDSN != "" {
		file.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		file.Storage.ClickHouseDSN = *clickhouseDSN
	}

	cfg, err := buildConfig(strings.ToUpper(*symbol), *interval, *preset, sets)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := backend.Open(ctx, file.Storage, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer func() { _ = stores.Close() }()

	runner := backtest.NewRunner(stores.Bars,
		backtest.WithTradeStore(stores.Trades),
		backtest.WithRunStore(stores.Runs),
		backtest.WithRecorder(audit.NewZapRecorder(logger.Named("audit"))),
		backtest.WithLogger(logger),
	)

	var res *backtest.Result
	switch *source {
	case "store":
		res, err = runner.Run(ctx, cfg.Symbols[0], cfg)
	case "rest":
		client := marketdata.NewClient(file.MarketData.BaseURL,
			marketdata.WithTimeout(time.Duration(file.MarketData.TimeoutSec)*time.Second),
			marketdata.WithMaxRetries(file.MarketData.MaxRetries),
			marketdata.WithLogger(logger.Named("marketdata")),
		)
		var series *domain.BarSeries
		series, err = client.FetchBars(ctx, cfg.Symbols[0], cfg.Interval, *limit)
		if err != nil {
			logger.Fatal("fetch bars", zap.Error(err))
		}
		if *saveBars {
			saveSeries(ctx, stores.Bars, series, logger)
		}
		res, err = runner.RunSeries(ctx, series, cfg)
	default:
		logger.Fatal("unknown bar source", zap.String("source", *source))
	}
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	rep, err := reporting.NewGenerator(stores.Runs, stores.Trades).Generate(ctx, res.RunID)
	if err != nil {
		logger.Fatal("build report", zap.Error(err))
	}
	switch *format {
	case "csv":
		fmt.Print(reporting.RenderCSV(rep.Runs))
	default:
		fmt.Print(reporting.RenderMarkdown(rep))
	}

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(res.History)), 0o644); err != nil {
			logger.Fatal("write trades csv", zap.Error(err))
		}
	}
}

// buildConfig starts from the backtest profile and applies the preset and
// overrides for symbol.
func buildConfig(symbol, interval, preset string, sets []string) (domain.Config, error) {
	cfg, err := config.ApplyPreset(config.DefaultBacktest(), strings.ToUpper(preset))
	if err != nil {
		return cfg, err
	}
	overrides, err := config.ParseSet(sets)
	if err != nil {
		return cfg, err
	}
	if cfg, err = config.ApplyOverrides(cfg, overrides); err != nil {
		return cfg, err
	}
	if interval != "" {
		cfg.Interval = interval
	}
	cfg.Symbols = []string{symbol}
	cfg.UniverseMode = domain.UniverseFixed
	cfg = config.Normalize(cfg)
	return cfg, config.Validate(&cfg)
}

// saveSeries stores series; bars already stored are left untouched.
func saveSeries(ctx context.Context, bars storage.BarStore, series *domain.BarSeries, logger *zap.Logger) {
	err := bars.InsertBulk(ctx, series.Symbol, series.Interval, series.Bars)
	switch {
	case err == nil:
		logger.Info("bars stored", zap.String("symbol", series.Symbol), zap.Int("bars", series.Len()))
	case errors.Is(err, storage.ErrDuplicateKey):
		logger.Warn("bars already stored", zap.String("symbol", series.Symbol))
	default:
		logger.Warn("store bars", zap.Error(err))
	}
}
