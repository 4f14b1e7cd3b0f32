package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/priceflow-platform/api/internal/store"
)

type Logger struct {
	store *store.Store
}

func NewLogger(s *store.Store) *Logger {
	return &Logger{store: s}
}

type Entry struct {
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  string
	Metadata   map[string]any
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	params := store.InsertAuditLogParams{
		TenantID:   entry.TenantID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		Metadata:   metadata,
	}
	if entry.UserID != nil {
		params.UserID = entry.UserID
	}
	if entry.EntityID != nil {
		params.EntityID = entry.EntityID
	}
	if entry.RequestID != "" {
		params.RequestID = &entry.RequestID
	}

	if err := l.store.InsertAuditLog(ctx, params); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
