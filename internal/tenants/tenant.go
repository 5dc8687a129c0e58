// Package tenants is the registry of organizations known to the platform.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/shared"
)

// Tenant is one subscribing organization.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store reads tenants.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	FindBySlug(ctx context.Context, slug string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

// Repository reads the tenants table. The registry itself is platform data and carries no tenant
// predicate.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const tenantColumns = `id, slug, name, active, created_at`

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row, id)
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	row := r.q.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row, slug)
}

func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.q.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("tenants: list: %w", err)
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("tenants: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row, key any) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.NotFound("Tenant", key)
		}
		return Tenant{}, fmt.Errorf("tenants: get: %w", err)
	}
	return t, nil
}

var _ Store = (*Repository)(nil)
