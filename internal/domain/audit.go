package domain

// AuditRecord is one persisted audit event. Payload holds the typed event
// fields flattened to JSON-compatible values.
// Corresponds to the audit_events table.
type AuditRecord struct {
	EventID   string
	RunID     string
	EventType string
	Symbol    string
	TsMs      int64
	Payload   map[string]any
}
