package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
)

var errBadRequest = errors.New("bad request")

// Bar request bounds of POST /api/v1/backtest.
const (
	DefaultBacktestBars = 500
	MaxBacktestBars     = 1000
)

// BarSource fetches the history replayed by a backtest request.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) (*domain.BarSeries, error)
}

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	Symbol   string         `json:"symbol" binding:"required"`
	Interval string         `json:"interval"`
	Limit    int            `json:"limit"`
	Preset   string         `json:"preset"`
	Set      map[string]any `json:"set"` // config overrides by yaml key
}

// BacktestResponse is the summary returned for a finished backtest.
type BacktestResponse struct {
	RunID               string         `json:"run_id"`
	Symbol              string         `json:"symbol"`
	Interval            string         `json:"interval"`
	Model               string         `json:"model"`
	Bars                int            `json:"bars"`
	Trades              int            `json:"trades"`
	Wins                int            `json:"wins"`
	Losses              int            `json:"losses"`
	NetProfit           float64        `json:"net_profit"`
	WinRate             float64        `json:"win_rate"`
	Expectancy          float64        `json:"expectancy"`
	MaxDrawdown         float64        `json:"max_drawdown"`
	FinalEquity         float64        `json:"final_equity"`
	DominantBlockReason string         `json:"dominant_block_reason,omitempty"`
	BlockReasons        map[string]int `json:"block_reasons"`
	WarmupSkips         int            `json:"warmup_skips"`
}

// Backtester replays freshly fetched bars through a backtest runner.
type Backtester struct {
	bars   BarSource
	runner *backtest.Runner
	base   domain.Config
}

// NewBacktester creates a backtester whose requests start from base.
func NewBacktester(bars BarSource, runner *backtest.Runner, base domain.Config) *Backtester {
	return &Backtester{bars: bars, runner: runner, base: base}
}

// Config resolves the effective configuration of req: preset, then
// overrides, then clamping.
func (b *Backtester) Config(req BacktestRequest) (domain.Config, error) {
	cfg, err := config.ApplyPreset(b.base, strings.ToUpper(req.Preset))
	if err != nil {
		return cfg, err
	}
	if len(req.Set) > 0 {
		if cfg, err = config.ApplyOverrides(cfg, req.Set); err != nil {
			return cfg, err
		}
	}
	if req.Interval != "" {
		cfg.Interval = req.Interval
	}
	cfg.Symbols = []string{strings.ToUpper(req.Symbol)}
	cfg.UniverseMode = domain.UniverseFixed
	cfg = config.Normalize(cfg)
	if err := config.Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Run fetches the bars of req and replays them.
func (b *Backtester) Run(ctx context.Context, req BacktestRequest) (*backtest.Result, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", errBadRequest)
	}
	cfg, err := b.Config(req)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultBacktestBars
	case limit > MaxBacktestBars:
		limit = MaxBacktestBars
	}
	symbol := cfg.Symbols[0]
	series, err := b.bars.FetchBars(ctx, symbol, cfg.Interval, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s %s: %w", symbol, cfg.Interval, err)
	}
	return b.runner.RunSeries(ctx, series, cfg)
}

// Handle serves POST /api/v1/backtest.
func (b *Backtester) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BacktestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			JSON(c, fmt.Errorf("%w: %v", errBadRequest, err), nil)
			return
		}
		res, err := b.Run(c.Request.Context(), req)
		if err != nil {
			JSON(c, err, nil)
			return
		}
		JSON(c, nil, newBacktestResponse(res))
	}
}

func newBacktestResponse(res *backtest.Result) BacktestResponse {
	return BacktestResponse{
		RunID:               res.RunID,
		Symbol:              res.Symbol,
		Interval:            res.Interval,
		Model:               string(res.Model),
		Bars:                res.Bars,
		Trades:              res.Trades,
		Wins:                res.Wins,
		Losses:              res.Losses,
		NetProfit:           res.NetProfit,
		WinRate:             res.WinRate,
		Expectancy:          res.Expectancy,
		MaxDrawdown:         res.MaxDrawdown,
		FinalEquity:         res.FinalEquity,
		DominantBlockReason: res.DominantBlockReason,
		BlockReasons:        res.BlockReasons,
		WarmupSkips:         res.WarmupSkips,
	}
}
