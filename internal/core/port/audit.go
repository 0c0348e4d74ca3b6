package port

import "context"

// AuditEntry represents a single auditable masking event.
type AuditEntry struct {
	RequestID    string
	Tool         string
	Operation    string
	MaskName     string
	RuleCount    int
	MaskAll      bool
	MaskedFields []string
	DurationMS   int64
	Err          error
}

// MaskAuditor records masking audit events.
type MaskAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
