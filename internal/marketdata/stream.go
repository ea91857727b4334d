package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"trend-edge-lab/internal/domain"
)

// DefaultStreamURL is the public Binance websocket endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443/ws"

// ErrNotKline reports a stream message that is not a kline event.
var ErrNotKline = errors.New("not a kline event")

// StreamConfig configures websocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// KlineUpdate is one kline push, possibly for a bar still forming.
type KlineUpdate struct {
	Symbol   string
	Interval string
	Bar      domain.Bar
	Closed   bool
}

// KlineHandler receives stream updates in arrival order.
type KlineHandler func(KlineUpdate)

// KlineStream subscribes to <symbol>@kline_<interval> streams and keeps the
// connection alive across drops.
type KlineStream struct {
	endpoint string
	symbols  []string
	interval string
	config   StreamConfig
	logger   *zap.Logger

	requestID  atomic.Uint64
	reconnects atomic.Int64
}

// NewKlineStream creates a stream of interval klines for symbols. An empty
// endpoint selects DefaultStreamURL.
func NewKlineStream(endpoint string, symbols []string, interval string, config *StreamConfig, logger *zap.Logger) *KlineStream {
	if endpoint == "" {
		endpoint = DefaultStreamURL
	}
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KlineStream{
		endpoint: endpoint,
		symbols:  append([]string(nil), symbols...),
		interval: interval,
		config:   cfg,
		logger:   logger,
	}
}

// StreamNames returns the subscription names, e.g. btcusdt@kline_1h.
func (s *KlineStream) StreamNames() []string {
	out := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		out[i] = strings.ToLower(sym) + "@kline_" + s.interval
	}
	return out
}

// Reconnects returns the number of reconnect attempts made so far.
func (s *KlineStream) Reconnects() int64 {
	return s.reconnects.Load()
}

// Run streams updates to handler until ctx is done. Dropped connections are
// redialed with exponential backoff.
func (s *KlineStream) Run(ctx context.Context, handler KlineHandler) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("%w: no symbols to stream", ErrInvalidArgs)
	}
	delay := s.config.ReconnectDelay
	for {
		connected, err := s.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = s.config.ReconnectDelay
		}
		s.reconnects.Add(1)
		s.logger.Warn("kline stream dropped, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, s.config.MaxReconnectDelay)
	}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

// session runs one connection. connected reports whether the subscription
// was written before the session ended.
func (s *KlineStream) session(ctx context.Context, handler KlineHandler) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	req := subscribeRequest{Method: "SUBSCRIBE", Params: s.StreamNames(), ID: s.requestID.Add(1)}
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}
	s.logger.Info("kline stream subscribed", zap.Strings("streams", req.Params))

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		upd, err := ParseKline(msg)
		if err != nil {
			if !errors.Is(err, ErrNotKline) {
				s.logger.Debug("skipping stream message", zap.Error(err))
			}
			continue
		}
		handler(upd)
	}
}

// ParseKline decodes a kline event. Acknowledgements and other events
// return ErrNotKline.
func ParseKline(msg []byte) (KlineUpdate, error) {
	var raw struct {
		Event  string         `json:"e"`
		Symbol string         `json:"s"`
		Kline  map[string]any `json:"k"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return KlineUpdate{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if raw.Kline == nil {
		return KlineUpdate{}, ErrNotKline
	}

	k := raw.Kline
	ts, err := cast.ToInt64E(k["t"])
	if err != nil {
		return KlineUpdate{}, fmt.Errorf("%w: kline open time: %v", ErrBadResponse, err)
	}
	var vals [5]float64
	for i, key := range []string{"o", "h", "l", "c", "v"} {
		v, err := cast.ToFloat64E(k[key])
		if err != nil {
			return KlineUpdate{}, fmt.Errorf("%w: kline %s: %v", ErrBadResponse, key, err)
		}
		vals[i] = v
	}
	symbol := raw.Symbol
	if symbol == "" {
		symbol = cast.ToString(k["s"])
	}
	return KlineUpdate{
		Symbol:   symbol,
		Interval: cast.ToString(k["i"]),
		Closed:   cast.ToBool(k["x"]),
		Bar: domain.Bar{
			TimestampMs: ts,
			Open:        vals[0],
			High:        vals[1],
			Low:         vals[2],
			Close:       vals[3],
			Volume:      vals[4],
		},
	}, nil
}
