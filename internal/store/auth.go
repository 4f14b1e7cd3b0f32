package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type UserWithTenant struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	TenantSlug   string
	TenantName   string
}

type SessionPrincipal struct {
	SessionID  uuid.UUID
	UserID     uuid.UUID
	TenantID   uuid.UUID
	Email      string
	FullName   string
	TenantSlug string
	TenantName string
	CSRFToken  string
	ExpiresAt  time.Time
}

type CreateSessionParams struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CSRFToken string
	ExpiresAt time.Time
}

// ListUsersByEmail returns every user matching the email across tenants.
// Login verifies the password against each candidate; the same address may
// exist under more than one tenant.
func (s *Store) ListUsersByEmail(ctx context.Context, email string) ([]UserWithTenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.tenant_id, u.email, u.full_name, u.password_hash, u.is_active,
		       t.slug, t.name
		FROM users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE lower(u.email) = lower($1)
		ORDER BY u.created_at
	`, email)
	if err != nil {
		return nil, fmt.Errorf("list users by email: %w", err)
	}
	defer rows.Close()

	var users []UserWithTenant
	for rows.Next() {
		var u UserWithTenant
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.TenantSlug, &u.TenantName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateSession(ctx context.Context, params CreateSessionParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (tenant_id, user_id, token_hash, csrf_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, params.TenantID, params.UserID, params.TokenHash, params.CSRFToken, params.ExpiresAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *Store) SessionPrincipalByTokenHash(ctx context.Context, tokenHash string) (SessionPrincipal, error) {
	var p SessionPrincipal
	err := s.pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, s.tenant_id, u.email, u.full_name, t.slug, t.name,
		       s.csrf_token, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		JOIN tenants t ON t.id = s.tenant_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		  AND u.is_active
	`, tokenHash).Scan(&p.SessionID, &p.UserID, &p.TenantID, &p.Email, &p.FullName, &p.TenantSlug, &p.TenantName, &p.CSRFToken, &p.ExpiresAt)
	if err != nil {
		return SessionPrincipal{}, err
	}
	return p, nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1`, sessionID)
	return err
}

func (s *Store) RevokeSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	return err
}

func (s *Store) RevokeSessionByID(ctx context.Context, sessionID, tenantID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE id = $1 AND tenant_id = $2 AND revoked_at IS NULL
	`, sessionID, tenantID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Store) UserHasPermission(ctx context.Context, userID, tenantID uuid.UUID, permission string) (bool, error) {
	var has bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1 AND ur.tenant_id = $2 AND p.name = $3
		)
	`, userID, tenantID, permission).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check permission: %w", err)
	}
	return has, nil
}
