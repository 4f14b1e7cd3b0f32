package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/priceflow-platform/api/internal/audit"
	"github.com/priceflow-platform/api/internal/auth"
	"github.com/priceflow-platform/api/internal/config"
	"github.com/priceflow-platform/api/internal/httpx"
	"github.com/priceflow-platform/api/internal/importer"
	"github.com/priceflow-platform/api/internal/middleware"
	"github.com/priceflow-platform/api/internal/store"
)

type Server struct {
	Config config.Config
	Store  *store.Store
	Engine *importer.Engine
	Audit  *audit.Logger
	Logger *slog.Logger
}

func NewServer(cfg config.Config, st *store.Store, auditLogger *audit.Logger, logger *slog.Logger) *Server {
	return &Server{
		Config: cfg,
		Store:  st,
		Engine: importer.NewEngine(st, logger),
		Audit:  auditLogger,
		Logger: logger,
	}
}

type userPayload struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
}

type tenantPayload struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

type authSessionResponse struct {
	User   userPayload   `json:"user"`
	Tenant tenantPayload `json:"tenant"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) PostAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	users, err := s.Store.ListUsersByEmail(r.Context(), req.Email)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
		return
	}

	var matched *store.UserWithTenant
	for i := range users {
		user := users[i]
		if !user.IsActive {
			continue
		}
		ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Password verification failed", nil)
			return
		}
		if ok {
			matched = &user
			break
		}
	}

	if matched == nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
		return
	}

	if old, err := r.Cookie(s.Config.SessionCookieName); err == nil && old.Value != "" {
		_ = s.Store.RevokeSessionByTokenHash(r.Context(), auth.HashToken(old.Value))
	}

	sessionToken, err := auth.GenerateToken()
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create session", nil)
		return
	}
	csrfToken, err := auth.GenerateToken()
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to create CSRF token", nil)
		return
	}

	_, err = s.Store.CreateSession(r.Context(), store.CreateSessionParams{
		TenantID:  matched.TenantID,
		UserID:    matched.ID,
		TokenHash: auth.HashToken(sessionToken),
		CSRFToken: csrfToken,
		ExpiresAt: time.Now().Add(s.Config.SessionTTL),
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to save session", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Config.SecureCookies,
		Expires:  time.Now().Add(s.Config.SessionTTL),
	})

	userID := matched.ID
	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   matched.TenantID,
		UserID:     &userID,
		Action:     "auth.login",
		EntityType: "session",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	httpx.WriteJSON(w, http.StatusOK, authSessionResponse{
		User:   userPayload{ID: matched.ID, Email: matched.Email, FullName: matched.FullName},
		Tenant: tenantPayload{ID: matched.TenantID, Slug: matched.TenantSlug, Name: matched.TenantName},
	})
}

func (s *Server) PostAuthLogout(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(actor.SessionID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid session", nil)
		return
	}

	if err := s.Store.RevokeSessionByID(r.Context(), sessionID, tenantID); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to revoke session", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.Config.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Config.SecureCookies,
		MaxAge:   -1,
	})

	_ = s.Audit.Log(r.Context(), audit.Entry{
		TenantID:   tenantID,
		UserID:     &userID,
		Action:     "auth.logout",
		EntityType: "session",
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetAuthMe(w http.ResponseWriter, r *http.Request) {
	actor, tenantID, userID, ok := requireActorIDs(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authSessionResponse{
		User:   userPayload{ID: userID, Email: actor.Email, FullName: actor.FullName},
		Tenant: tenantPayload{ID: tenantID, Slug: actor.TenantSlug, Name: actor.TenantName},
	})
}

func (s *Server) GetAuthCsrf(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": actor.CSRFToken})
}

func requireActorIDs(w http.ResponseWriter, r *http.Request) (middleware.Actor, uuid.UUID, uuid.UUID, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return middleware.Actor{}, uuid.Nil, uuid.Nil, false
	}
	tenantID, err := uuid.Parse(actor.TenantID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid tenant", nil)
		return middleware.Actor{}, uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(actor.UserID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid user", nil)
		return middleware.Actor{}, uuid.Nil, uuid.Nil, false
	}
	return actor, tenantID, userID, true
}
