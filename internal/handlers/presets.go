package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/priceflow-platform/api/internal/audit"
	"github.com/priceflow-platform/api/internal/httpx"
	"github.com/priceflow-platform/api/internal/middleware"
)

type presetPayload struct {
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (s *Server) GetImportsPresets(w http.ResponseWriter, r *http.Request) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	presets, err := s.Store.ListMappingPresets(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load presets", nil)
		return
	}

	out := make([]presetPayload, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetPayload{Name: p.Name, Payload: p.Payload, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"presets": out})
}

func (s *Server) PutImportsPresets(w http.ResponseWriter, r *http.Request) {
	_, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	var req struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "payload must be valid JSON", nil)
		return
	}

	preset, err := s.Store.UpsertMappingPreset(r.Context(), tenantID, req.Name, req.Payload)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to save preset", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "imports.preset_saved",
		EntityType: "mapping_preset",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   map[string]any{"name": preset.Name},
	})

	httpx.WriteJSON(w, http.StatusOK, presetPayload{Name: preset.Name, Payload: preset.Payload, CreatedAt: preset.CreatedAt, UpdatedAt: preset.UpdatedAt})
}

func (s *Server) GetImportsPresetsName(w http.ResponseWriter, r *http.Request, name string) {
	_, tenantID, _, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	preset, err := s.Store.GetMappingPreset(r.Context(), tenantID, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "preset_not_found", "Mapping preset not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load preset", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, presetPayload{Name: preset.Name, Payload: preset.Payload, CreatedAt: preset.CreatedAt, UpdatedAt: preset.UpdatedAt})
}

func (s *Server) DeleteImportsPresetsName(w http.ResponseWriter, r *http.Request, name string) {
	_, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	deleted, err := s.Store.DeleteMappingPreset(r.Context(), tenantID, name)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to delete preset", nil)
		return
	}
	if !deleted {
		httpx.WriteError(w, r, http.StatusNotFound, "preset_not_found", "Mapping preset not found", nil)
		return
	}

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "imports.preset_deleted",
		EntityType: "mapping_preset",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   map[string]any{"name": name},
	})

	w.WriteHeader(http.StatusNoContent)
}
