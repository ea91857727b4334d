// Package api exposes the live session and on-demand backtests over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trend-edge-lab/internal/observability"
)

// Router registers a route group on a gin engine.
type Router interface {
	Load(g *gin.Engine)
}

// APIRouter wires the handlers under /api/v1.
type APIRouter struct {
	trading  *TradingHandler
	backtest *Backtester // optional
	gatherer prometheus.Gatherer
}

// NewAPIRouter creates the router. backtester may be nil, which leaves
// POST /api/v1/backtest unregistered. A nil gatherer serves the default registry.
func NewAPIRouter(trading *TradingHandler, backtester *Backtester, gatherer prometheus.Gatherer) *APIRouter {
	return &APIRouter{trading: trading, backtest: backtester, gatherer: gatherer}
}

// Load registers every route on g.
func (api *APIRouter) Load(g *gin.Engine) {
	g.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if api.gatherer != nil {
		g.GET("/metrics", gin.WrapH(observability.HandlerFor(api.gatherer)))
	} else {
		g.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	base := g.Group("/api/v1")
	{
		base.GET("/status", api.trading.Status())
		base.POST("/unlock", api.trading.Unlock())
	}

	p := base.Group("/positions")
	{
		p.GET("", api.trading.Positions())
		p.POST("/:id/close", api.trading.ClosePosition())
	}

	base.POST("/close/:scope", api.trading.CloseScope())

	pd := base.Group("/pending")
	{
		pd.GET("", api.trading.Pending())
		pd.POST("/:id/accept", api.trading.Accept())
		pd.POST("/:id/reject", api.trading.Reject())
	}

	if api.backtest != nil {
		base.POST("/backtest", api.backtest.Handle())
	}
}

// NewEngine builds a gin engine with the request middleware and loads rs.
func NewEngine(mode string, logger *zap.Logger, rs ...Router) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	g := gin.New()
	g.Use(RequestID(), Logger(logger), Recovery(logger))
	for _, r := range rs {
		r.Load(g)
	}
	return g
}
