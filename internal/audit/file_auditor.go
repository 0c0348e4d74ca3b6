package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/maskit/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record. Only field
// names are written, never the values that were masked.
type fileEntry struct {
	Timestamp    string   `json:"ts"`
	RequestID    string   `json:"request_id,omitempty"`
	Tool         string   `json:"tool,omitempty"`
	Operation    string   `json:"operation"`
	Mask         string   `json:"mask,omitempty"`
	RuleCount    int      `json:"rule_count"`
	MaskAll      bool     `json:"mask_all"`
	MaskedFields []string `json:"masked_fields"`
	DurationMS   int64    `json:"duration_ms"`
	Error        *string  `json:"error"`
}

// FileAuditor writes audit entries as NDJSON (one JSON object per line) to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	now  func() time.Time
}

var _ port.MaskAuditor = (*FileAuditor)(nil)

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:    a.now().UTC().Format(time.RFC3339),
		RequestID:    entry.RequestID,
		Tool:         entry.Tool,
		Operation:    entry.Operation,
		Mask:         entry.MaskName,
		RuleCount:    entry.RuleCount,
		MaskAll:      entry.MaskAll,
		MaskedFields: entry.MaskedFields,
		DurationMS:   entry.DurationMS,
	}
	if fe.MaskedFields == nil {
		fe.MaskedFields = []string{}
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; don't fail the request for audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.AuditEntry) {}
func (NoopAuditor) Close() error                            { return nil }
