package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MappingPreset is a saved import mapping. Payload is opaque JSON: the column
// mapping plus whatever overrides the operator wants to reuse.
type MappingPreset struct {
	ID        uuid.UUID
	Name      string
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Store) UpsertMappingPreset(ctx context.Context, tenantID uuid.UUID, name string, payload json.RawMessage) (MappingPreset, error) {
	var p MappingPreset
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mapping_presets (tenant_id, name, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = now()
		RETURNING id, name, payload, created_at, updated_at
	`, tenantID, name, payload).Scan(&p.ID, &p.Name, &p.Payload, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return MappingPreset{}, fmt.Errorf("upsert mapping preset: %w", err)
	}
	return p, nil
}

func (s *Store) ListMappingPresets(ctx context.Context, tenantID uuid.UUID) ([]MappingPreset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, payload, created_at, updated_at
		FROM mapping_presets
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list mapping presets: %w", err)
	}
	defer rows.Close()

	var out []MappingPreset
	for rows.Next() {
		var p MappingPreset
		if err := rows.Scan(&p.ID, &p.Name, &p.Payload, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetMappingPreset(ctx context.Context, tenantID uuid.UUID, name string) (MappingPreset, error) {
	var p MappingPreset
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, payload, created_at, updated_at
		FROM mapping_presets
		WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&p.ID, &p.Name, &p.Payload, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return MappingPreset{}, err
	}
	return p, nil
}

func (s *Store) DeleteMappingPreset(ctx context.Context, tenantID uuid.UUID, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM mapping_presets WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
	if err != nil {
		return false, fmt.Errorf("delete mapping preset: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
