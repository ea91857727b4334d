package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/live"
)

// Trader is the live session driven by the HTTP API. *live.Engine implements it.
type Trader interface {
	Status() live.Status
	Positions() []domain.Position
	Pending() []live.Idea
	AcceptPending(id string) (domain.Position, error)
	RejectPending(id string) error
	ClosePosition(id string) (*domain.TradeRecord, error)
	CloseAll() int
	CloseProfitable() int
	CloseLosing() int
	Unlock()
}

var _ Trader = (*live.Engine)(nil)

// TradingHandler serves the live session endpoints.
type TradingHandler struct {
	trader Trader
}

// NewTradingHandler creates a handler over trader.
func NewTradingHandler(trader Trader) *TradingHandler {
	return &TradingHandler{trader: trader}
}

// Status returns the session snapshot.
func (h *TradingHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		JSON(c, nil, h.trader.Status())
	}
}

// Positions lists the open positions.
func (h *TradingHandler) Positions() gin.HandlerFunc {
	return func(c *gin.Context) {
		JSON(c, nil, h.trader.Positions())
	}
}

// Pending lists the ideas waiting for acceptance.
func (h *TradingHandler) Pending() gin.HandlerFunc {
	return func(c *gin.Context) {
		JSON(c, nil, h.trader.Pending())
	}
}

// Accept opens the pending idea named in the path.
func (h *TradingHandler) Accept() gin.HandlerFunc {
	return func(c *gin.Context) {
		pos, err := h.trader.AcceptPending(c.Param("id"))
		if err != nil {
			JSON(c, err, nil)
			return
		}
		JSON(c, nil, pos)
	}
}

// Reject drops the pending idea named in the path.
func (h *TradingHandler) Reject() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.trader.RejectPending(id); err != nil {
			JSON(c, err, nil)
			return
		}
		JSON(c, nil, gin.H{"rejected": id})
	}
}

// ClosePosition closes the position named in the path at market.
func (h *TradingHandler) ClosePosition() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.trader.ClosePosition(c.Param("id"))
		if err != nil {
			JSON(c, err, nil)
			return
		}
		JSON(c, nil, rec)
	}
}

// CloseScope closes every position matching the scope in the path:
// all, profitable or losing.
func (h *TradingHandler) CloseScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := c.Param("scope")
		var n int
		switch scope {
		case "all":
			n = h.trader.CloseAll()
		case "profitable":
			n = h.trader.CloseProfitable()
		case "losing":
			n = h.trader.CloseLosing()
		default:
			JSON(c, fmt.Errorf("%w: unknown close scope %q", errBadRequest, scope), nil)
			return
		}
		JSON(c, nil, gin.H{"scope": scope, "closed": n})
	}
}

// Unlock clears the safety locks.
func (h *TradingHandler) Unlock() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.trader.Unlock()
		JSON(c, nil, h.trader.Status().Ledger)
	}
}
