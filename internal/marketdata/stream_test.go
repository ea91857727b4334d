package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const klineMsg = `{"e":"kline","E":1700000001000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700003599999,"s":"BTCUSDT","i":"1h","o":"100.0","c":"101.2","h":"101.9","l":"99.8","v":"42.5","x":false}}`

func TestParseKline(t *testing.T) {
	upd, err := ParseKline([]byte(klineMsg))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", upd.Symbol)
	assert.Equal(t, "1h", upd.Interval)
	assert.False(t, upd.Closed)
	assert.Equal(t, int64(1700000000000), upd.Bar.TimestampMs)
	assert.Equal(t, 101.2, upd.Bar.Close)
	assert.Equal(t, 99.8, upd.Bar.Low)
	assert.Equal(t, 42.5, upd.Bar.Volume)

	_, err = ParseKline([]byte(`{"result":null,"id":1}`))
	assert.ErrorIs(t, err, ErrNotKline)

	_, err = ParseKline([]byte(`{"e":"kline","k":{"t":1,"o":"x"}}`))
	assert.ErrorIs(t, err, ErrBadResponse)

	_, err = ParseKline([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestKlineStream_StreamNames(t *testing.T) {
	s := NewKlineStream("", []string{"BTCUSDT", "ETHUSDT"}, "5m", nil, nil)
	assert.Equal(t, []string{"btcusdt@kline_5m", "ethusdt@kline_5m"}, s.StreamNames())
}

func TestKlineStream_SubscribesAndReconnects(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		conns.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "SUBSCRIBE" || len(req.Params) != 1 || req.Params[0] != "btcusdt@kline_1h" {
			t.Errorf("unexpected subscribe request: %+v", req)
		}

		c.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		c.WriteMessage(websocket.TextMessage, []byte(klineMsg))
		// drop the connection to force a reconnect
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	s := NewKlineStream(wsURL, []string{"BTCUSDT"}, "1h", &StreamConfig{
		ReconnectDelay:    5 * time.Millisecond,
		MaxReconnectDelay: 20 * time.Millisecond,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan KlineUpdate, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(u KlineUpdate) {
			select {
			case updates <- u:
			default:
			}
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case u := <-updates:
			assert.Equal(t, "BTCUSDT", u.Symbol)
			assert.Equal(t, 101.2, u.Bar.Close)
		case <-ctx.Done():
			t.Fatal("timed out waiting for kline update")
		}
	}
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	assert.GreaterOrEqual(t, s.Reconnects(), int64(1))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestKlineStream_NoSymbols(t *testing.T) {
	err := NewKlineStream("ws://127.0.0.1:1", nil, "1h", nil, nil).Run(context.Background(), func(KlineUpdate) {})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}
