package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stocksaas/stocksaas/internal/audit"
	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenants"
	"github.com/stocksaas/stocksaas/internal/warehouses"
	_ "github.com/stocksaas/stocksaas/testing"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("STOCKSAAS_PG_INTEGRATION") != "1" {
		t.Skip("set STOCKSAAS_PG_INTEGRATION=1 to run against a postgres container")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("stocksaas"),
		postgres.WithUsername("stocksaas"),
		postgres.WithPassword("stocksaas"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool, nil))
	require.NoError(t, db.Migrate(ctx, pool, nil), "migrations must be idempotent")
	return pool
}

func seedTenant(t *testing.T, pool *pgxpool.Pool, slug string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `INSERT INTO tenants (id, slug, name) VALUES ($1, $2, $3)`, id, slug, slug)
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, email string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, tenant_id, email, username, password_hash) VALUES ($1, $2, $3, $3, 'x')`, id, tenantID, email)
	require.NoError(t, err)
	return id
}

func bound(t *testing.T, id uuid.UUID) context.Context {
	t.Helper()
	ctx, end := tenant.Begin(context.Background())
	t.Cleanup(end)
	require.NoError(t, tenant.Set(ctx, id))
	return ctx
}

func TestPostgresTenantIsolation(t *testing.T) {
	pool := startPostgres(t)
	acme := seedTenant(t, pool, "acme")
	globex := seedTenant(t, pool, "globex")

	directory := tenants.NewDirectory(tenants.NewRepository(pool), 8, time.Minute)
	recorder := audit.NewRecorder(audit.NewLogger(pool), nil)
	enforcer := tenant.NewEnforcer(nil, recorder)
	repo := tenant.NewRepository[*warehouses.Warehouse](warehouses.Entity, warehouses.NewTable(pool), enforcer,
		tenant.WithDirectory(directory))

	ctxA, ctxB := bound(t, acme), bound(t, globex)
	w := &warehouses.Warehouse{Code: "MAIN", Name: "Acme Main", Active: true}
	require.NoError(t, repo.Create(ctxA, w))
	require.Equal(t, acme, w.TenantID)
	require.NoError(t, repo.Create(ctxB, &warehouses.Warehouse{Code: "MAIN", Name: "Globex Main", Active: true}))

	_, err := repo.Get(ctxB, w.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	stolen := warehouses.Clone(w)
	stolen.Name = "stolen"
	require.ErrorIs(t, repo.Update(ctxB, stolen), shared.ErrTenantMismatch)

	got, err := repo.Get(ctxA, w.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Main", got.Name)

	stale := warehouses.Clone(got)
	got.Name = "Acme Central"
	require.NoError(t, repo.Update(ctxA, got))
	require.EqualValues(t, 2, got.Version)
	stale.Name = "late"
	require.ErrorIs(t, repo.Update(ctxA, stale), shared.ErrConflict)

	listed, err := repo.List(ctxA, tenant.Query{Search: "central"})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	admin := uuid.New()
	var all []*warehouses.Warehouse
	err = enforcer.CrossTenantRead(ctxA, tenant.Justification{Actor: admin, Reason: "integration"}, func(ctx context.Context) error {
		var err error
		all, err = repo.List(ctx, tenant.Query{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctxA, got))
	_, err = repo.Get(ctxA, w.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	timeline, err := audit.NewService(audit.NewPgRepository(pool)).Timeline(ctxB, audit.TimelineFilters{
		From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, timeline.Rows, 1)
	require.Equal(t, "tenant.violation", timeline.Rows[0].Action)
}

func TestPostgresRBACRepository(t *testing.T) {
	pool := startPostgres(t)
	acme := seedTenant(t, pool, "acme")
	globex := seedTenant(t, pool, "globex")
	alice := seedUser(t, pool, acme, "alice@acme.test")

	svc := rbac.NewService(rbac.NewPgRepository(pool))
	ctxA, ctxB := bound(t, acme), bound(t, globex)

	require.NoError(t, svc.SetRoles(ctxA, alice, rbac.RoleManager, rbac.RoleViewer))
	require.NoError(t, svc.Grant(ctxA, alice, rbac.PermWarehouseDelete))
	roles, grants, err := svc.Resolve(ctxA, alice)
	require.NoError(t, err)
	require.Equal(t, rbac.NewRoleSet(rbac.RoleManager, rbac.RoleViewer), roles)
	require.True(t, grants.Has(rbac.PermWarehouseDelete))

	require.ErrorIs(t, svc.AssignRole(ctxB, alice, rbac.RoleAdmin), shared.ErrNotFound)
	_, _, err = svc.Resolve(ctxB, alice)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, _, err = svc.Resolve(ctxA, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
	roles, err = svc.UserRoles(ctxB, alice)
	require.NoError(t, err)
	require.Empty(t, roles)
}
