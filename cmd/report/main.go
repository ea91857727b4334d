// Package main renders the backtest report from stored runs and trades.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/marketdata/stub"
	"trend-edge-lab/internal/reporting"
	"trend-edge-lab/internal/storage/backend"
)

func main() {
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	configPath := flag.String("config", os.Getenv("TEL_CONFIG"), "YAML configuration file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	runID := flag.String("run", "", "Run id to break down by symbol and exit reason")
	useFixtures := flag.Bool("use-fixtures", false, "Replay synthetic series into memory stores instead of reading a database")
	flag.Parse()

	ctx := context.Background()

	file, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		file.Storage.Driver = backend.DriverPostgres
		file.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		file.Storage.ClickHouseDSN = *clickhouseDSN
	}

	var stores *backend.Stores
	if *useFixtures {
		stores = backend.Memory()
		id, err := loadFixtures(ctx, stores)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
		if *runID == "" {
			*runID = id
		}
	} else {
		if file.Storage.Driver != backend.DriverPostgres {
			fmt.Fprintln(os.Stderr, "Error: --postgres-dsn (or storage.driver postgres) is required when not using fixtures")
			fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
			os.Exit(1)
		}
		stores, err = backend.Open(ctx, file.Storage, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
			os.Exit(1)
		}
	}
	defer func() { _ = stores.Close() }()

	rep, err := reporting.NewGenerator(stores.Runs, stores.Trades).Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}
	outputs := map[string]string{
		"REPORT.md": reporting.RenderMarkdown(rep),
		"RUNS.csv":  reporting.RenderCSV(rep.Runs),
	}
	if *runID != "" {
		trades, err := stores.Trades.GetByRunID(ctx, *runID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading trades: %v\n", err)
			os.Exit(1)
		}
		outputs["TRADES.csv"] = reporting.RenderTradesCSV(trades)
	}

	fmt.Println("Report generated successfully:")
	for _, name := range []string{"REPORT.md", "RUNS.csv", "TRADES.csv"} {
		body, ok := outputs[name]
		if !ok {
			continue
		}
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s\n", path)
	}
}

// loadFixtures replays deterministic synthetic series into stores and
// returns the run id of the first replay.
func loadFixtures(ctx context.Context, stores *backend.Stores) (string, error) {
	fixed := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	runner := backtest.NewRunner(stores.Bars,
		backtest.WithTradeStore(stores.Trades),
		backtest.WithRunStore(stores.Runs),
		backtest.WithClock(func() time.Time { return fixed }),
	)

	var first string
	for i, symbol := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		series := stub.WaveSeries(symbol, 600, 100*float64(i+1), 0.0015, 0.04, 48)
		res, err := runner.RunSeries(ctx, series, config.DefaultBacktest())
		if err != nil {
			return "", fmt.Errorf("replay %s: %w", symbol, err)
		}
		if first == "" {
			first = res.RunID
		}
	}
	return first, nil
}
