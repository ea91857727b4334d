// Package main runs the live trading session with its HTTP API:
// - Live loop: universe refresh, scan, gates, position lifecycle
// - Audit shipping: buffered events flushed to the audit store
// - HTTP API: session control, on-demand backtests, /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trend-edge-lab/internal/api"
	"trend-edge-lab/internal/audit"
	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/live"
	"trend-edge-lab/internal/logging"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/storage/backend"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("TEL_CONFIG"), "YAML configuration file")
	listen := flag.String("listen", os.Getenv("TEL_LISTEN"), "HTTP listen address (overrides server.listen)")
	driver := flag.String("storage", os.Getenv("TEL_STORAGE"), "Storage driver: memory or postgres (overrides storage.driver)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	preset := flag.String("preset", "", "Preset applied over the engine section (GROWTH_100, SCALE_300, CONSOLID_700)")
	mode := flag.String("mode", "", "Trade mode: AUTO or ASK")
	var sets config.Pairs
	flag.Var(&sets, "set", "Engine override key=value (repeatable)")
	flag.Parse()

	file, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(file, *listen, *driver, *postgresDSN, *clickhouseDSN, *preset, *mode, sets); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(file.Log)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	if err := run(ctx, file, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// applyFlags overlays the command line onto the loaded file.
func applyFlags(f *config.File, listen, driver, pgDSN, chDSN, preset, mode string, sets []string) error {
	if listen != "" {
		f.Server.Listen = listen
	}
	if driver != "" {
		f.Storage.Driver = driver
	}
	if pgDSN != "" {
		f.Storage.PostgresDSN = pgDSN
		if driver == "" {
			f.Storage.Driver = backend.DriverPostgres
		}
	}
	if chDSN != "" {
		f.Storage.ClickHouseDSN = chDSN
	}

	engine, err := config.ApplyPreset(f.Engine, strings.ToUpper(preset))
	if err != nil {
		return err
	}
	overrides, err := config.ParseSet(sets)
	if err != nil {
		return err
	}
	if engine, err = config.ApplyOverrides(engine, overrides); err != nil {
		return err
	}
	if mode != "" {
		engine.Mode = domain.TradeMode(strings.ToUpper(mode))
	}
	f.Engine = config.Normalize(engine)
	return config.Validate(&f.Engine)
}

// handleSignals cancels on the first signal and exits on the second.
func handleSignals(cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	cancel()

	select {
	case sig = <-sigCh:
		logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
	case <-time.After(30 * time.Second):
		logger.Warn("graceful shutdown timed out after 30s, forcing exit")
	}
	os.Exit(1)
}

func run(ctx context.Context, file *config.File, logger *zap.Logger) error {
	cfg := file.Engine

	stores, err := backend.Open(ctx, file.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := observability.NewMetrics("", reg)
	stores.Instrument(m)

	client := marketdata.NewClient(file.MarketData.BaseURL,
		marketdata.WithTimeout(time.Duration(file.MarketData.TimeoutSec)*time.Second),
		marketdata.WithMaxRetries(file.MarketData.MaxRetries),
		marketdata.WithLatencyObserver(m.MarketDataLatency),
		marketdata.WithLogger(logger.Named("marketdata")),
	)

	shipper := audit.NewShipper(stores.Audit,
		audit.WithBatchSize(file.Live.AuditBatchSize),
		audit.WithBufferCap(file.Live.AuditBufferCap),
		audit.WithFlushEvery(time.Duration(file.Live.AuditFlushSec)*time.Second),
		audit.WithLogger(logger.Named("audit")),
	)
	recorder := audit.Multi{audit.NewZapRecorder(logger.Named("audit")), shipper}

	opts := []live.Option{
		live.WithRecorder(recorder),
		live.WithMetrics(m),
		live.WithTradeStore(stores.Trades),
		live.WithLogger(logger.Named("live")),
		live.WithSlowTick(time.Duration(file.Live.SlowTickMs) * time.Millisecond),
		live.WithUniverse(marketdata.NewUniverse(client, cfg.Symbols, logger.Named("universe"))),
	}
	if cfg.MTFConfirmOn {
		opts = append(opts, live.WithMTF(marketdata.NewMTFCache(client, cfg.MTFMinTrendStrength, cfg.Limit)))
	}
	if file.MarketData.StreamOn {
		stream := marketdata.NewKlineStream(file.MarketData.StreamURL, cfg.Symbols, cfg.Interval, nil, logger.Named("stream"))
		opts = append(opts, live.WithStream(stream))
	}
	engine, err := live.New(cfg, client, opts...)
	if err != nil {
		return fmt.Errorf("create live engine: %w", err)
	}

	runner := backtest.NewRunner(stores.Bars,
		backtest.WithTradeStore(stores.Trades),
		backtest.WithRunStore(stores.Runs),
		backtest.WithMetrics(m),
		backtest.WithLogger(logger.Named("backtest")),
	)
	router := api.NewAPIRouter(
		api.NewTradingHandler(engine),
		api.NewBacktester(client, runner, config.DefaultBacktest()),
		reg,
	)
	srv := &http.Server{
		Addr:              file.Server.Listen,
		Handler:           api.NewEngine(file.Server.Mode, logger.Named("http"), router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		zap.String("run_id", engine.RunID()),
		zap.String("listen", file.Server.Listen),
		zap.String("model", string(cfg.Model)),
		zap.String("mode", string(cfg.Mode)),
		zap.String("interval", cfg.Interval),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("storage", file.Storage.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		shipper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server on %s: %w", file.Server.Listen, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// loadEnvFile loads environment variables from .env file if it exists.
// Variables already set in the environment win.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"`))
		}
	}
}
