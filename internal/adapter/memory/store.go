package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
)

// MaskStore keeps compiled masks in process memory. Used when no database
// is configured; contents are lost on exit.
type MaskStore struct {
	mu      sync.RWMutex
	records map[string]port.MaskRecord
}

var _ port.MaskStore = (*MaskStore)(nil)

func NewMaskStore() *MaskStore {
	return &MaskStore{records: make(map[string]port.MaskRecord)}
}

func (s *MaskStore) Save(_ context.Context, rec port.MaskRecord) error {
	rec.Original = domain.CloneDocument(rec.Original)
	rec.Param = domain.CloneDocument(rec.Param)
	rec.MaskedFields = append([]string(nil), rec.MaskedFields...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.records[rec.Name]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	s.records[rec.Name] = rec
	return nil
}

func (s *MaskStore) Get(_ context.Context, name string) (*port.MaskRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mask %q: %w", name, domain.ErrNotFound)
	}
	rec.Original = domain.CloneDocument(rec.Original)
	rec.Param = domain.CloneDocument(rec.Param)
	rec.MaskedFields = append([]string(nil), rec.MaskedFields...)
	return &rec, nil
}

func (s *MaskStore) List(_ context.Context) ([]port.MaskSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]port.MaskSummary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, port.MaskSummary{
			Name:         rec.Name,
			MaskedFields: append([]string(nil), rec.MaskedFields...),
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MaskStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[name]; !ok {
		return fmt.Errorf("mask %q: %w", name, domain.ErrNotFound)
	}
	delete(s.records, name)
	return nil
}
