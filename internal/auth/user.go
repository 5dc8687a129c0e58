package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// User is a stored account. Users are tenant-scoped records.
type User struct {
	tenant.Record
	Email              string
	Username           string
	PasswordHash       string
	Enabled            bool
	Locked             bool
	CredentialsExpired bool
}

// UserStore looks users up within the bound tenant.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// PgUserStore implements UserStore using PostgreSQL.
type PgUserStore struct {
	q db.Querier
}

// NewUserStore constructs a PostgreSQL user store.
func NewUserStore(q db.Querier) *PgUserStore {
	return &PgUserStore{q: q}
}

const userColumns = `id, tenant_id, created_at, updated_at, created_by, updated_by, version, deleted, deleted_at, deleted_by, email, username, password_hash, enabled, locked, credentials_expired`

func (s *PgUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(ctx, `lower(email) = $1`, email)
}

func (s *PgUserStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.find(ctx, `id = $1`, id)
}

func (s *PgUserStore) find(ctx context.Context, predicate string, key any) (*User, error) {
	f, err := tenant.FilterFor(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := f.TenantID()
	if !ok {
		return nil, shared.NotFound("User", key)
	}
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+predicate+` AND tenant_id = $2 AND deleted = false`, key, id)
	var u User
	err = row.Scan(&u.ID, &u.TenantID, &u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy, &u.Version,
		&u.Deleted, &u.DeletedAt, &u.DeletedBy, &u.Email, &u.Username, &u.PasswordHash, &u.Enabled, &u.Locked, &u.CredentialsExpired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("User", key)
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if u.TenantID != id {
		return nil, shared.DataIntegrity("user %s owned by %s read under %s", u.ID, u.TenantID, id)
	}
	return &u, nil
}

var _ UserStore = (*PgUserStore)(nil)
