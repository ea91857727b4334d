package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/lifecycle"
)

type fakeSink struct {
	mu      sync.Mutex
	fail    bool
	batches [][]*domain.AuditRecord
}

func (f *fakeSink) InsertBulk(_ context.Context, records []*domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink down")
	}
	f.batches = append(f.batches, records)
	return nil
}

func closeEvent(i int) Event {
	return Event{
		Type:   EventClose,
		RunID:  "run-1",
		Symbol: "BTCUSDT",
		TsMs:   int64(i),
		Payload: FillInfo{
			PositionID: fmt.Sprintf("p%d", i),
			Kind:       lifecycle.FillClose,
			Reason:     domain.ExitReasonTarget,
			NetPnL:     1.5,
		},
	}
}

func TestEvent_Flatten(t *testing.T) {
	veto := Event{Type: EventGateVeto, Payload: VetoInfo(domain.Veto(domain.GateCostEdge, domain.ReasonCostEdgeLow, map[string]float64{"move_pct": 0.3}))}
	fields := veto.Flatten()
	assert.Equal(t, domain.GateCostEdge, fields["gate"])
	assert.Equal(t, domain.ReasonCostEdgeLow, fields["reason"])
	assert.Equal(t, map[string]interface{}{"move_pct": 0.3}, fields["diag"])

	rec := closeEvent(7).Record("ev-1")
	assert.Equal(t, "ev-1", rec.EventID)
	assert.Equal(t, string(EventClose), rec.EventType)
	assert.Equal(t, 1.5, rec.Payload["net_pnl"])

	assert.Empty(t, Event{Type: EventRunStop}.Flatten())
}

func TestZapRecorder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewZapRecorder(zap.New(core))
	r.Record(Event{Type: EventUniverse, Payload: UniverseInfo{Mode: domain.UniverseTopN, Symbols: []string{"A", "B"}}})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, string(EventUniverse), entry.Message)
	ev, ok := entry.ContextMap()["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(EventUniverse), ev["type"])
}

func TestMemoryAndMulti(t *testing.T) {
	a, b := NewMemoryRecorder(), NewMemoryRecorder()
	m := Multi{a, nil, b, Nop{}}
	m.Record(closeEvent(1))
	m.Record(Event{Type: EventRollup})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.ByType(EventClose), 1)
}

func TestShipper_BatchesAndRequeues(t *testing.T) {
	sink := &fakeSink{}
	s := NewShipper(sink, WithBatchSize(3))
	for i := 0; i < 7; i++ {
		s.Record(closeEvent(i))
	}

	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 4, s.Pending())

	sink.fail = true
	assert.Error(t, s.Flush(context.Background()))
	assert.Equal(t, 4, s.Pending(), "failed batch re-queued")

	sink.fail = false
	require.NoError(t, s.FlushAll(context.Background()))
	assert.Zero(t, s.Pending())

	var order []int64
	for _, b := range sink.batches {
		for _, r := range b {
			order = append(order, r.TsMs)
		}
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, order)
	assert.Len(t, sink.batches, 3)
}

func TestShipper_DropsOldestPastCap(t *testing.T) {
	s := NewShipper(&fakeSink{}, WithBufferCap(5))
	for i := 0; i < 8; i++ {
		s.Record(closeEvent(i))
	}
	assert.Equal(t, 5, s.Pending())
	assert.Equal(t, int64(3), s.Dropped())
}

func TestShipper_RunDrainsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	s := NewShipper(sink)
	s.Record(closeEvent(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Zero(t, s.Pending())
	assert.Len(t, sink.batches, 1)
}
