package memory

import (
	"context"
	"sort"
	"sync"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// AuditEventStore is an in-memory implementation of storage.AuditEventStore.
type AuditEventStore struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	events []*domain.AuditRecord // insertion order
}

// NewAuditEventStore creates a new in-memory audit event store.
func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{
		ids: make(map[string]struct{}),
	}
}

// InsertBulk adds events atomically. Fails entire batch on duplicate event_id.
func (s *AuditEventStore) InsertBulk(_ context.Context, events []*domain.AuditRecord) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.ids[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	for _, e := range events {
		s.ids[e.EventID] = struct{}{}
		s.events = append(s.events, cloneRecord(e))
	}

	return nil
}

// GetByRunID retrieves all events of a run, ordered by timestamp ASC.
// Events sharing a timestamp keep insertion order.
func (s *AuditEventStore) GetByRunID(_ context.Context, runID string) ([]*domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditRecord
	for _, e := range s.events {
		if e.RunID == runID {
			result = append(result, cloneRecord(e))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TsMs < result[j].TsMs
	})

	return result, nil
}

// Len returns the number of stored events.
func (s *AuditEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func cloneRecord(e *domain.AuditRecord) *domain.AuditRecord {
	cp := *e
	if e.Payload != nil {
		cp.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}

var _ storage.AuditEventStore = (*AuditEventStore)(nil)
