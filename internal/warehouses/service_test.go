package warehouses_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/events"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenant/tenanttest"
	"github.com/stocksaas/stocksaas/internal/warehouses"
	_ "github.com/stocksaas/stocksaas/testing"
)

type captured struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captured) HandleEvent(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captured) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	backend  *tenanttest.MemoryBackend[*warehouses.Warehouse]
	observer *tenanttest.RecordingObserver
	service  *warehouses.Service
	events   *captured
}

func newFixture() *fixture {
	backend := tenanttest.NewMemoryBackend(warehouses.Entity, warehouses.Clone).
		WithSearch(func(w *warehouses.Warehouse, q string) bool {
			q = strings.ToLower(q)
			return strings.Contains(strings.ToLower(w.Code), q) || strings.Contains(strings.ToLower(w.Name), q)
		})
	observer := &tenanttest.RecordingObserver{}
	repo := tenant.NewRepository[*warehouses.Warehouse](warehouses.Entity, backend, tenant.NewEnforcer(nil, observer), tenant.WithActor(auth.Actor))
	dispatcher := events.NewDispatcher(nil)
	c := &captured{}
	dispatcher.Subscribe("", c)
	return &fixture{
		backend:  backend,
		observer: observer,
		service:  warehouses.NewService(repo, events.NewLocal(dispatcher), nil),
		events:   c,
	}
}

func actingAs(t *testing.T, tenantID uuid.UUID) (context.Context, uuid.UUID) {
	t.Helper()
	ctx, end := tenant.Begin(context.Background())
	t.Cleanup(end)
	require.NoError(t, tenant.Set(ctx, tenantID))
	user := uuid.New()
	return auth.WithPrincipal(ctx, &auth.Principal{UserID: user, TenantID: tenantID, Enabled: true}), user
}

func TestCreateStampsTenantAndEmitsEvent(t *testing.T) {
	f := newFixture()
	tenantA := uuid.New()
	ctx, user := actingAs(t, tenantA)

	w, err := f.service.Create(ctx, warehouses.CreateInput{Code: " main ", Name: "Main DC"})
	require.NoError(t, err)
	require.Equal(t, "MAIN", w.Code)
	require.True(t, w.Active)
	require.Equal(t, tenantA, w.TenantID)
	require.EqualValues(t, 1, w.Version)
	require.Equal(t, user, w.CreatedBy.UUID)

	stored, ok := f.backend.Stored(w.ID)
	require.True(t, ok)
	require.Equal(t, tenantA, stored.TenantID)

	require.Equal(t, []string{warehouses.EventCreated}, f.events.types())
	require.Equal(t, tenantA, f.events.events[0].TenantID)
	require.Equal(t, user, f.events.events[0].TriggeredBy.UUID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	ctx, _ := actingAs(t, uuid.New())

	_, err := f.service.Create(ctx, warehouses.CreateInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, shared.Fields(err), 2)

	_, err = f.service.Create(ctx, warehouses.CreateInput{Code: "A1", Name: "A"})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, warehouses.CreateInput{Code: "a1", Name: "Again"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "DUPLICATE", shared.Fields(err)[0].Code)

	ctxB, _ := actingAs(t, uuid.New())
	_, err = f.service.Create(ctxB, warehouses.CreateInput{Code: "A1", Name: "Other tenant may reuse"})
	require.NoError(t, err)
}

func TestOtherTenantCannotSeeOrChange(t *testing.T) {
	f := newFixture()
	ctxA, _ := actingAs(t, uuid.New())
	ctxB, _ := actingAs(t, uuid.New())

	w, err := f.service.Create(ctxA, warehouses.CreateInput{Code: "A", Name: "Tenant A"})
	require.NoError(t, err)

	_, err = f.service.Get(ctxB, w.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.service.Update(ctxB, w.ID, warehouses.UpdateInput{Version: 1, Code: "A", Name: "hijack"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, f.service.Delete(ctxB, w.ID), shared.ErrNotFound)

	items, err := f.service.List(ctxB, warehouses.ListFilters{})
	require.NoError(t, err)
	require.Empty(t, items)

	stored, _ := f.backend.Stored(w.ID)
	require.Equal(t, "Tenant A", stored.Name)
}

func TestUpdateUsesOptimisticVersion(t *testing.T) {
	f := newFixture()
	ctx, _ := actingAs(t, uuid.New())
	w, err := f.service.Create(ctx, warehouses.CreateInput{Code: "A", Name: "First"})
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, w.ID, warehouses.UpdateInput{Version: 1, Code: "A", Name: "Second", Active: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Version)

	_, err = f.service.Update(ctx, w.ID, warehouses.UpdateInput{Version: 1, Code: "A", Name: "Stale", Active: true})
	require.ErrorIs(t, err, shared.ErrConflict)

	got, err := f.service.Get(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, "Second", got.Name)
	require.Equal(t, []string{warehouses.EventCreated, warehouses.EventUpdated}, f.events.types())
}

func TestDeleteRequiresInactive(t *testing.T) {
	f := newFixture()
	ctx, user := actingAs(t, uuid.New())
	w, err := f.service.Create(ctx, warehouses.CreateInput{Code: "A", Name: "First"})
	require.NoError(t, err)

	err = f.service.Delete(ctx, w.ID)
	require.ErrorIs(t, err, shared.ErrBusinessRule)

	_, err = f.service.Update(ctx, w.ID, warehouses.UpdateInput{Version: 1, Code: "A", Name: "First", Active: false})
	require.NoError(t, err)
	require.NoError(t, f.service.Delete(ctx, w.ID))

	_, err = f.service.Get(ctx, w.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	stored, ok := f.backend.Stored(w.ID)
	require.True(t, ok)
	require.True(t, stored.Deleted)
	require.Equal(t, user, stored.DeletedBy.UUID)
	require.Equal(t, warehouses.EventDeleted, f.events.types()[2])
}

func TestListSearchAndPaging(t *testing.T) {
	f := newFixture()
	ctx, _ := actingAs(t, uuid.New())
	for _, code := range []string{"NORTH", "SOUTH", "EAST", "WEST"} {
		_, err := f.service.Create(ctx, warehouses.CreateInput{Code: code, Name: code + " hub"})
		require.NoError(t, err)
	}

	items, err := f.service.List(ctx, warehouses.ListFilters{Search: "th"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = f.service.List(ctx, warehouses.ListFilters{Page: 2, Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestNoTenantContext(t *testing.T) {
	f := newFixture()
	_, err := f.service.Create(context.Background(), warehouses.CreateInput{Code: "A", Name: "A"})
	require.ErrorIs(t, err, shared.ErrNoTenantContext)
}
