package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trend-edge-lab/internal/backtest"
	"trend-edge-lab/internal/config"
	"trend-edge-lab/internal/lifecycle"
	"trend-edge-lab/internal/live"
	"trend-edge-lab/internal/marketdata"
	"trend-edge-lab/internal/storage"
)

// Response is the envelope of every JSON reply.
type Response struct {
	RequestID string `json:"request_id,omitempty"`
	Code      int    `json:"code"` // 0 on success, the HTTP status otherwise
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

// JSON writes data, or err when it is not nil, in the response envelope.
func JSON(c *gin.Context, err error, data any) {
	if err != nil {
		status := StatusOf(err)
		c.JSON(status, Response{
			RequestID: c.GetString(requestIDKey),
			Code:      status,
			Message:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		RequestID: c.GetString(requestIDKey),
		Message:   "ok",
		Data:      data,
	})
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var httpErr *marketdata.HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, live.ErrIdeaNotFound),
		errors.Is(err, lifecycle.ErrPositionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, live.ErrIdeaBlocked),
		errors.Is(err, live.ErrNoPrice):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, config.ErrInvalidModel),
		errors.Is(err, config.ErrInvalidInterval),
		errors.Is(err, config.ErrInvalidSymbols),
		errors.Is(err, config.ErrInvalidOverride),
		errors.Is(err, config.ErrUnknownKey),
		errors.Is(err, config.ErrUnknownPreset),
		errors.Is(err, marketdata.ErrInvalidArgs):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrInsufficientBars):
		return http.StatusUnprocessableEntity
	case errors.As(err, &httpErr), errors.Is(err, marketdata.ErrBadResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
