// Package audit carries structured events out of the engine. Events are typed
// values; they are formatted only at the boundary, by the zap recorder or by
// flattening for storage.
package audit

import (
	"go.uber.org/zap/zapcore"

	"trend-edge-lab/internal/domain"
)

// EventType names an audit event.
type EventType string

// Event types.
const (
	EventRunStart      EventType = "RUN_START"
	EventRunStop       EventType = "RUN_STOP"
	EventDecision      EventType = "DECISION"
	EventGateVeto      EventType = "GATE_VETO"
	EventOpen          EventType = "OPEN"
	EventPartial       EventType = "PARTIAL"
	EventClose         EventType = "CLOSE"
	EventRollup        EventType = "ROLLUP"
	EventFees          EventType = "FEES"
	EventLock          EventType = "LOCK"
	EventUnlock        EventType = "UNLOCK"
	EventKillSwitch    EventType = "KILL_SWITCH"
	EventRiskCut       EventType = "RISK_CUT"
	EventSlowTick      EventType = "SLOW_TICK"
	EventTickError     EventType = "TICK_ERROR"
	EventUniverse      EventType = "UNIVERSE"
	EventPending       EventType = "PENDING"
	EventBacktestDone  EventType = "BACKTEST_DONE"
	EventGridSearchRun EventType = "GRID_SEARCH"
)

// Event is one audit record.
type Event struct {
	Type    EventType
	RunID   string
	Symbol  string
	TsMs    int64
	Payload zapcore.ObjectMarshaler // optional
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", string(e.Type))
	if e.RunID != "" {
		enc.AddString("run_id", e.RunID)
	}
	if e.Symbol != "" {
		enc.AddString("symbol", e.Symbol)
	}
	enc.AddInt64("ts_ms", e.TsMs)
	if e.Payload != nil {
		return enc.AddObject("payload", e.Payload)
	}
	return nil
}

// Flatten converts the payload to JSON-compatible values.
func (e Event) Flatten() map[string]any {
	if e.Payload == nil {
		return map[string]any{}
	}
	enc := zapcore.NewMapObjectEncoder()
	if err := e.Payload.MarshalLogObject(enc); err != nil {
		enc.Fields["marshal_error"] = err.Error()
	}
	return enc.Fields
}

// Record converts the event into its persisted form.
func (e Event) Record(eventID string) *domain.AuditRecord {
	return &domain.AuditRecord{
		EventID:   eventID,
		RunID:     e.RunID,
		EventType: string(e.Type),
		Symbol:    e.Symbol,
		TsMs:      e.TsMs,
		Payload:   e.Flatten(),
	}
}

// Recorder receives audit events. Implementations must not block the caller
// for long and never report failures back to the engine.
type Recorder interface {
	Record(e Event)
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(Event) {}

// Multi fans an event out to several recorders in order.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(e Event) {
	for _, r := range m {
		if r != nil {
			r.Record(e)
		}
	}
}

var (
	_ Recorder = Nop{}
	_ Recorder = Multi(nil)
)
