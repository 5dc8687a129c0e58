package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.Querier
	db.TxBeginner
}

// PgRepository implements Repository on user_roles and user_permission_grants.
type PgRepository struct {
	pool Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) UserExists(ctx context.Context, f tenant.Filter, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND deleted = false`
	args := []any{userID}
	if !f.Unrestricted() {
		id, ok := f.TenantID()
		if !ok {
			return false, nil
		}
		query += ` AND tenant_id = $2`
		args = append(args, id)
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, query+`)`, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) Roles(ctx context.Context, f tenant.Filter, userID uuid.UUID) ([]Role, error) {
	var out []Role
	err := r.scanStrings(ctx, f, `SELECT role FROM user_roles WHERE user_id = $1`, userID, func(s string) {
		if role := Role(s); role.Valid() {
			out = append(out, role)
		}
	})
	return out, err
}

func (r *PgRepository) Grants(ctx context.Context, f tenant.Filter, userID uuid.UUID) ([]Permission, error) {
	var out []Permission
	err := r.scanStrings(ctx, f, `SELECT permission FROM user_permission_grants WHERE user_id = $1`, userID, func(s string) {
		if p := Permission(s); p.Valid() {
			out = append(out, p)
		}
	})
	return out, err
}

func (r *PgRepository) scanStrings(ctx context.Context, f tenant.Filter, query string, userID uuid.UUID, fn func(string)) error {
	args := []any{userID}
	if !f.Unrestricted() {
		id, ok := f.TenantID()
		if !ok {
			return nil
		}
		query += ` AND tenant_id = $2`
		args = append(args, id)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY 1`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return err
		}
		fn(s)
	}
	return rows.Err()
}

func (r *PgRepository) AddRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error {
	if err := ensureUser(ctx, r.pool, tenantID, userID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (tenant_id, user_id, role) VALUES ($1, $2, $3) ON CONFLICT (user_id, role) DO NOTHING`, tenantID, userID, string(role))
	return err
}

func (r *PgRepository) RemoveRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE tenant_id = $1 AND user_id = $2 AND role = $3`, tenantID, userID, string(role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ReplaceRoles(ctx context.Context, tenantID, userID uuid.UUID, roles []Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, tenantID, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID); err != nil {
			return fmt.Errorf("rbac: clear roles: %w", err)
		}
		for _, role := range roles {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (tenant_id, user_id, role) VALUES ($1, $2, $3)`, tenantID, userID, string(role)); err != nil {
				return fmt.Errorf("rbac: insert role: %w", err)
			}
		}
		return nil
	})
}

func (r *PgRepository) AddGrant(ctx context.Context, tenantID, userID uuid.UUID, perm Permission) error {
	if err := ensureUser(ctx, r.pool, tenantID, userID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO user_permission_grants (tenant_id, user_id, permission) VALUES ($1, $2, $3) ON CONFLICT (user_id, permission) DO NOTHING`, tenantID, userID, string(perm))
	return err
}

func (r *PgRepository) RemoveGrant(ctx context.Context, tenantID, userID uuid.UUID, perm Permission) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permission_grants WHERE tenant_id = $1 AND user_id = $2 AND permission = $3`, tenantID, userID, string(perm))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ensureUser rejects assignments to users outside tenantID with the same error as a missing user.
func ensureUser(ctx context.Context, q db.Querier, tenantID, userID uuid.UUID) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND tenant_id = $2 AND deleted = false)`, userID, tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("rbac: lookup user: %w", err)
	}
	if !exists {
		return shared.NotFound("User", userID)
	}
	return nil
}

var _ Repository = (*PgRepository)(nil)
