// Package marketdata fetches public exchange market data: REST klines and
// 24h tickers, cached higher-timeframe snapshots, the best-of-day universe
// and a websocket kline stream.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"trend-edge-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.binance.com"
	DefaultTimeout    = 8 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 250 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
	DefaultMaxJitter  = 120 * time.Millisecond

	// MaxKlineLimit is the exchange cap on klines per request.
	MaxKlineLimit = 1000
)

// Client errors
var (
	ErrBadResponse = errors.New("malformed market data response")
	ErrInvalidArgs = errors.New("invalid market data request")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("market data HTTP %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client is a Binance-compatible public REST client.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	maxJitter  time.Duration
	logger     *zap.Logger
	latency    prometheus.ObserverVec // optional, labelled by endpoint
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = max(0, n)
	}
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithMaxJitter sets the upper bound of the random delay added to each backoff.
func WithMaxJitter(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxJitter = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithLatencyObserver records the duration of every request attempt,
// labelled by endpoint path.
func WithLatencyObserver(o prometheus.ObserverVec) ClientOption {
	return func(c *Client) {
		c.latency = o
	}
}

// NewClient creates a client for baseURL. An empty baseURL selects the
// public Binance endpoint.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		maxJitter:  DefaultMaxJitter,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBars returns the most recent limit closed and open klines of symbol,
// oldest first.
func (c *Client) FetchBars(ctx context.Context, symbol, interval string, limit int) (*domain.BarSeries, error) {
	if symbol == "" || !domain.ValidInterval(interval) || limit <= 0 {
		return nil, fmt.Errorf("%w: symbol=%q interval=%q limit=%d", ErrInvalidArgs, symbol, interval, limit)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(min(limit, MaxKlineLimit)))

	var raw [][]any
	if err := c.get(ctx, "/api/v3/klines", q, &raw); err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}
	bars, err := parseKlines(raw)
	if err != nil {
		return nil, fmt.Errorf("parse klines %s %s: %w", symbol, interval, err)
	}
	return domain.NewBarSeries(symbol, interval, bars), nil
}

// ticker24h is the subset of /api/v3/ticker/24hr the client reads.
type ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// Fetch24hChangePercent returns the 24h price change percent of every
// listed symbol. Entries with an unparsable change are skipped.
func (c *Client) Fetch24hChangePercent(ctx context.Context) (map[string]float64, error) {
	var tickers []ticker24h
	if err := c.get(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, fmt.Errorf("fetch 24h tickers: %w", err)
	}
	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		pct, err := cast.ToFloat64E(t.PriceChangePercent)
		if err != nil || t.Symbol == "" {
			continue
		}
		out[t.Symbol] = pct
	}
	return out, nil
}

// get performs a GET with retries and exponential backoff plus jitter.
// Only network failures and retryable statuses are retried.
func (c *Client) get(ctx context.Context, path string, q url.Values, result any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Debug("retrying market data request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		body, err := c.do(ctx, u)
		if c.latency != nil {
			c.latency.WithLabelValues(path).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && !httpErr.Retryable() {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

// backoff returns retryDelay * 2^(attempt-1), capped at maxDelay, plus jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay << (attempt - 1)
	if d > c.maxDelay || d <= 0 {
		d = c.maxDelay
	}
	if c.maxJitter > 0 {
		d += rand.N(c.maxJitter)
	}
	return d
}

// parseKlines converts [openTime, open, high, low, close, volume, ...] rows.
func parseKlines(raw [][]any) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(raw))
	for i, row := range raw {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: row %d has %d fields", ErrBadResponse, i, len(row))
		}
		ts, err := cast.ToInt64E(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d open time: %v", ErrBadResponse, i, err)
		}
		var vals [5]float64
		for j := range vals {
			v, err := cast.ToFloat64E(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d field %d: %v", ErrBadResponse, i, j+1, err)
			}
			vals[j] = v
		}
		bars = append(bars, domain.Bar{
			TimestampMs: ts,
			Open:        vals[0],
			High:        vals[1],
			Low:         vals[2],
			Close:       vals[3],
			Volume:      vals[4],
		})
	}
	return bars, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
