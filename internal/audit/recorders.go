package audit

import (
	"sync"

	"go.uber.org/zap"
)

// ZapRecorder writes events to a logger at info level.
type ZapRecorder struct {
	logger *zap.Logger
}

// NewZapRecorder creates a recorder logging through logger.
func NewZapRecorder(logger *zap.Logger) *ZapRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapRecorder{logger: logger.Named("audit")}
}

// Record implements Recorder.
func (r *ZapRecorder) Record(e Event) {
	r.logger.Info(string(e.Type), zap.Object("event", e))
}

// MemoryRecorder keeps events in memory. Safe for concurrent use.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of all recorded events.
func (r *MemoryRecorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns the recorded events of type t.
func (r *MemoryRecorder) ByType(t EventType) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var (
	_ Recorder = (*ZapRecorder)(nil)
	_ Recorder = (*MemoryRecorder)(nil)
)
