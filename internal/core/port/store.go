package port

import (
	"context"
	"time"

	"github.com/guillermoBallester/maskit/internal/core/domain"
)

// MaskRecord is a named compiled mask as persisted, together with the sample
// it was saved against.
type MaskRecord struct {
	Name           string          `json:"name"`
	MaskedFields   []string        `json:"masked_fields"`
	Original       domain.Document `json:"original"`
	Param          domain.Param    `json:"param,omitempty"`
	SerializedMask string          `json:"serialized_mask"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MaskSummary is the listing form of a MaskRecord.
type MaskSummary struct {
	Name         string    `json:"name"`
	MaskedFields []string  `json:"masked_fields"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MaskStore persists named compiled masks. Save is an upsert keyed by name
// that keeps the original CreatedAt. Get returns domain.ErrNotFound for an
// unknown name.
type MaskStore interface {
	Save(ctx context.Context, rec MaskRecord) error
	Get(ctx context.Context, name string) (*MaskRecord, error)
	List(ctx context.Context) ([]MaskSummary, error)
	Delete(ctx context.Context, name string) error
}
