package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trend-edge-lab/internal/domain"
	"trend-edge-lab/internal/storage"
)

// AuditEventStore implements storage.AuditEventStore using PostgreSQL.
// Payloads are stored as JSONB.
type AuditEventStore struct {
	pool *Pool
}

// NewAuditEventStore creates a new AuditEventStore.
func NewAuditEventStore(pool *Pool) *AuditEventStore {
	return &AuditEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuditEventStore = (*AuditEventStore)(nil)

// InsertBulk adds events atomically using a pgx batch inside one transaction.
func (s *AuditEventStore) InsertBulk(ctx context.Context, events []*domain.AuditRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		payload := e.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO audit_events (event_id, run_id, event_type, symbol, ts_ms, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.EventID, e.RunID, e.EventType, e.Symbol, e.TsMs, payload)
	}

	results := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert audit event: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all events of a run, ordered by timestamp then insertion.
func (s *AuditEventStore) GetByRunID(ctx context.Context, runID string) ([]*domain.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, run_id, event_type, symbol, ts_ms, payload
		FROM audit_events
		WHERE run_id = $1
		ORDER BY ts_ms ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get audit events by run id: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditRecord
	for rows.Next() {
		var e domain.AuditRecord
		if err := rows.Scan(&e.EventID, &e.RunID, &e.EventType, &e.Symbol, &e.TsMs, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan audit event row: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit event rows: %w", err)
	}

	return events, nil
}
