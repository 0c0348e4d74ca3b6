package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaskStore persists compiled masks in the compiled_masks table.
type MaskStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ port.MaskStore = (*MaskStore)(nil)

// NewMaskStore returns a store over pool. A zero timeout means 10s per call.
func NewMaskStore(pool *pgxpool.Pool, timeout time.Duration) *MaskStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MaskStore{pool: pool, timeout: timeout}
}

// Migrate creates the compiled_masks table if it does not exist.
func (s *MaskStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, queryCreateTable); err != nil {
		return fmt.Errorf("creating compiled_masks table: %w", err)
	}
	return nil
}

func (s *MaskStore) Save(ctx context.Context, rec port.MaskRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	original, err := json.Marshal(rec.Original)
	if err != nil {
		return fmt.Errorf("encoding original document: %w", err)
	}
	var param []byte
	if rec.Param != nil {
		if param, err = json.Marshal(rec.Param); err != nil {
			return fmt.Errorf("encoding param: %w", err)
		}
	}
	masked := rec.MaskedFields
	if masked == nil {
		masked = []string{}
	}

	_, err = s.pool.Exec(ctx, queryUpsertMask,
		rec.Name, masked, original, param, rec.SerializedMask, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting mask %q: %w", rec.Name, err)
	}
	return nil
}

func (s *MaskStore) Get(ctx context.Context, name string) (*port.MaskRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		rec      port.MaskRecord
		original []byte
		param    []byte
	)
	err := s.pool.QueryRow(ctx, queryGetMask, name).Scan(
		&rec.Name, &rec.MaskedFields, &original, &param, &rec.SerializedMask, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mask %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching mask %q: %w", name, err)
	}

	if err := json.Unmarshal(original, &rec.Original); err != nil {
		return nil, fmt.Errorf("decoding original document of %q: %w", name, err)
	}
	if len(param) > 0 {
		if err := json.Unmarshal(param, &rec.Param); err != nil {
			return nil, fmt.Errorf("decoding param of %q: %w", name, err)
		}
	}
	return &rec, nil
}

func (s *MaskStore) List(ctx context.Context) ([]port.MaskSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, queryListMasks)
	if err != nil {
		return nil, fmt.Errorf("listing masks: %w", err)
	}
	defer rows.Close()

	var out []port.MaskSummary
	for rows.Next() {
		var sm port.MaskSummary
		if err := rows.Scan(&sm.Name, &sm.MaskedFields, &sm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning mask row: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func (s *MaskStore) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, queryDeleteMask, name)
	if err != nil {
		return fmt.Errorf("deleting mask %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mask %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
