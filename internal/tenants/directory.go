package tenants

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// Directory answers "is this a known tenant" from a short-lived cache in front of a Store.
// Concurrent misses for the same key share one store round trip.
type Directory struct {
	store  Store
	byID   *lru.LRU[uuid.UUID, Tenant]
	bySlug *lru.LRU[string, uuid.UUID]
	group  singleflight.Group
}

// NewDirectory constructs a Directory. size bounds the number of cached tenants.
func NewDirectory(store Store, size int, ttl time.Duration) *Directory {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{
		store:  store,
		byID:   lru.NewLRU[uuid.UUID, Tenant](size, nil, ttl),
		bySlug: lru.NewLRU[string, uuid.UUID](size, nil, ttl),
	}
}

// Lookup returns the tenant with id.
func (d *Directory) Lookup(ctx context.Context, id uuid.UUID) (Tenant, error) {
	if t, ok := d.byID.Get(id); ok {
		return t, nil
	}
	return d.load(ctx, "id:"+id.String(), func(ctx context.Context) (Tenant, error) {
		return d.store.Get(ctx, id)
	})
}

// Resolve returns the tenant with slug.
func (d *Directory) Resolve(ctx context.Context, slug string) (Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Tenant{}, shared.NotFound("Tenant", slug)
	}
	if id, ok := d.bySlug.Get(slug); ok {
		if t, ok := d.byID.Get(id); ok {
			return t, nil
		}
	}
	return d.load(ctx, "slug:"+slug, func(ctx context.Context) (Tenant, error) {
		return d.store.FindBySlug(ctx, slug)
	})
}

// Exists implements tenant.Directory.
func (d *Directory) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := d.Lookup(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Invalidate drops id from the cache.
func (d *Directory) Invalidate(id uuid.UUID) {
	if t, ok := d.byID.Peek(id); ok {
		d.bySlug.Remove(t.Slug)
	}
	d.byID.Remove(id)
}

func (d *Directory) load(ctx context.Context, key string, fetch func(context.Context) (Tenant, error)) (Tenant, error) {
	ch := d.group.DoChan(key, func() (interface{}, error) {
		t, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return Tenant{}, err
		}
		d.byID.Add(t.ID, t)
		d.bySlug.Add(t.Slug, t.ID)
		return t, nil
	})
	select {
	case <-ctx.Done():
		return Tenant{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Tenant{}, res.Err
		}
		return res.Val.(Tenant), nil
	}
}
