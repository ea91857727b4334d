package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/live"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/marketdata/stub"
	"trend-edge-lab/internal/observability"
	"trend-edge-lab/internal/storage"
	"trend-edge-lab/internal/storage/memory"
)

type fakeTrader struct {
	positions []domain.Position
	pending   []live.Idea
	closed    []string
	unlocked  int
}

func (f *fakeTrader) Status() live.Status {
	return live.Status{RunID: "live-1", Interval: "1h", OpenPositions: len(f.positions)}
}

func (f *fakeTrader) Positions() []domain.Position { return f.positions }
func (f *fakeTrader) Pending() []live.Idea         { return f.pending }

func (f *fakeTrader) AcceptPending(id string) (domain.Position, error) {
	for i, idea := range f.pending {
		if idea.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			pos := domain.Position{ID: "pos-" + id, Symbol: idea.Symbol}
			f.positions = append(f.positions, pos)
			return pos, nil
		}
	}
	return domain.Position{}, fmt.Errorf("pending %s: %w", id, live.ErrIdeaNotFound)
}

func (f *fakeTrader) RejectPending(id string) error {
	for i, idea := range f.pending {
		if idea.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pending %s: %w", id, live.ErrIdeaNotFound)
}

func (f *fakeTrader) ClosePosition(id string) (*domain.TradeRecord, error) {
	for _, p := range f.positions {
		if p.ID != id {
			continue
		}
		if p.LastPrice <= 0 {
			return nil, live.ErrNoPrice
		}
		f.closed = append(f.closed, id)
		return &domain.TradeRecord{TradeID: id, Symbol: p.Symbol, ExitReason: domain.ExitReasonManual}, nil
	}
	return nil, lifecycle.ErrPositionNotFound
}

func (f *fakeTrader) CloseAll() int        { return len(f.positions) }
func (f *fakeTrader) CloseProfitable() int { return 2 }
func (f *fakeTrader) CloseLosing() int     { return 1 }
func (f *fakeTrader) Unlock()              { f.unlocked++ }

type fakeBars struct {
	series *domain.BarSeries
	err    error
	calls  []string
}

func (f *fakeBars) FetchBars(_ context.Context, symbol, interval string, limit int) (*domain.BarSeries, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%d", symbol, interval, limit))
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

type envelope struct {
	RequestID string          `json:"request_id"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

type harness struct {
	trader *fakeTrader
	bars   *fakeBars
	runs   *memory.BacktestRunStore
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trader := &fakeTrader{
		positions: []domain.Position{
			{ID: "p1", Symbol: "BTCUSDT", LastPrice: 101},
			{ID: "p2", Symbol: "ETHUSDT"},
		},
		pending: []live.Idea{
			{ID: "i1", Symbol: "SOLUSDT"},
			{ID: "i2", Symbol: "BNBUSDT"},
		},
	}
	bars := &fakeBars{series: stub.RisingSeries("BTCUSDT", 400, 100, 0.002, 10)}
	runs := memory.NewBacktestRunStore()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	runner := backtest.NewRunner(nil,
		backtest.WithRunStore(runs),
		backtest.WithTradeStore(memory.NewTradeRecordStore()),
		backtest.WithMetrics(m),
	)
	bt := NewBacktester(bars, runner, config.DefaultBacktest())
	router := NewAPIRouter(NewTradingHandler(trader), bt, reg)
	return &harness{
		trader: trader,
		bars:   bars,
		runs:   runs,
		engine: NewEngine(gin.TestMode, zap.NewNop(), router),
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w, _ = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_live_ticks_skipped_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "req-42", env.RequestID)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestStatusPositionsPending(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	var st live.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "live-1", st.RunID)
	assert.Equal(t, 2, st.OpenPositions)

	_, env = h.do(t, http.MethodGet, "/api/v1/positions", nil)
	var positions []domain.Position
	require.NoError(t, json.Unmarshal(env.Data, &positions))
	assert.Len(t, positions, 2)

	_, env = h.do(t, http.MethodGet, "/api/v1/pending", nil)
	var ideas []live.Idea
	require.NoError(t, json.Unmarshal(env.Data, &ideas))
	require.Len(t, ideas, 2)
	assert.Equal(t, "i1", ideas[0].ID)
}

func TestAcceptAndRejectPending(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/v1/pending/i1/accept", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pos domain.Position
	require.NoError(t, json.Unmarshal(env.Data, &pos))
	assert.Equal(t, "pos-i1", pos.ID)
	assert.Len(t, h.trader.pending, 1)

	w, env = h.do(t, http.MethodPost, "/api/v1/pending/i1/accept", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
	assert.Contains(t, env.Message, "pending idea not found")

	w, _ = h.do(t, http.MethodPost, "/api/v1/pending/i2/reject", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.trader.pending)

	w, _ = h.do(t, http.MethodPost, "/api/v1/pending/i2/reject", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClosePosition(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/v1/positions/p1/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.TradeRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, domain.ExitReasonManual, rec.ExitReason)
	assert.Equal(t, []string{"p1"}, h.trader.closed)

	w, _ = h.do(t, http.MethodPost, "/api/v1/positions/p2/close", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "no observed price yet")

	w, _ = h.do(t, http.MethodPost, "/api/v1/positions/missing/close", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseScope(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		scope  string
		status int
		closed int
	}{
		{"all", http.StatusOK, 2},
		{"profitable", http.StatusOK, 2},
		{"losing", http.StatusOK, 1},
		{"random", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			w, env := h.do(t, http.MethodPost, "/api/v1/close/"+tt.scope, nil)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			var out struct {
				Scope  string `json:"scope"`
				Closed int    `json:"closed"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &out))
			assert.Equal(t, tt.scope, out.Scope)
			assert.Equal(t, tt.closed, out.Closed)
		})
	}
}

func TestUnlock(t *testing.T) {
	h := newHarness(t)
	w, _ := h.do(t, http.MethodPost, "/api/v1/unlock", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, h.trader.unlocked)
}

func TestBacktestEndpoint(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/v1/backtest", BacktestRequest{
		Symbol: "btcusdt",
		Limit:  5000,
		Set:    map[string]any{"riskFraction": "0.01"},
	})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	var out BacktestResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "BTCUSDT", out.Symbol)
	assert.Equal(t, 400, out.Bars)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, []string{"BTCUSDT/1h/1000"}, h.bars.calls, "limit is capped")

	run, err := h.runs.GetByID(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, out.Trades, run.Trades)
}

func TestBacktestEndpointErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		body   any
		setup  func()
		status int
	}{
		{"missing symbol", map[string]any{"interval": "1h"}, nil, http.StatusBadRequest},
		{"unknown preset", BacktestRequest{Symbol: "BTCUSDT", Preset: "moon"}, nil, http.StatusBadRequest},
		{"unknown key", BacktestRequest{Symbol: "BTCUSDT", Set: map[string]any{"nope": 1}}, nil, http.StatusBadRequest},
		{"bad interval", BacktestRequest{Symbol: "BTCUSDT", Interval: "hourly"}, nil, http.StatusBadRequest},
		{"exchange down", BacktestRequest{Symbol: "BTCUSDT"}, func() {
			h.bars.err = &marketdata.HTTPError{Status: http.StatusServiceUnavailable, Body: "maintenance"}
		}, http.StatusBadGateway},
		{"too few bars", BacktestRequest{Symbol: "BTCUSDT"}, func() {
			h.bars.err = nil
			h.bars.series = stub.FlatSeries("BTCUSDT", 3, 100)
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			w, env := h.do(t, http.MethodPost, "/api/v1/backtest", tt.body)
			assert.Equal(t, tt.status, w.Code, env.Message)
			assert.Equal(t, tt.status, env.Code)
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("load run: %w", storage.ErrNotFound), http.StatusNotFound},
		{lifecycle.ErrPositionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: COOLDOWN", live.ErrIdeaBlocked), http.StatusConflict},
		{fmt.Errorf("%w: x", config.ErrInvalidOverride), http.StatusBadRequest},
		{marketdata.ErrBadResponse, http.StatusBadGateway},
		{backtest.ErrInsufficientBars, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}
