package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// Query narrows a list read. Filtering by tenant is never part of it.
type Query struct {
	Limit          int
	Offset         int
	Search         string
	IncludeDeleted bool
}

// Backend is the persistence boundary for one entity type. Every method receives the filter
// it must apply; Update and Delete must also match on tenant and report a missing or filtered
// row as shared.ErrNotFound.
type Backend[E Entity] interface {
	Insert(ctx context.Context, e E) error
	Update(ctx context.Context, f Filter, e E, expectedVersion int64) error
	Delete(ctx context.Context, f Filter, id uuid.UUID) error
	Get(ctx context.Context, f Filter, id uuid.UUID) (E, error)
	List(ctx context.Context, f Filter, q Query) ([]E, error)
}

// Directory answers whether a tenant id is known to the platform.
type Directory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ActorFunc resolves the user performing the current unit of work.
type ActorFunc func(ctx context.Context) (uuid.UUID, bool)

type repositoryOptions struct {
	directory Directory
	actor     ActorFunc
	now       func() time.Time
	newID     func() uuid.UUID
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryOptions)

// WithDirectory verifies rows read under an unrestricted filter against known tenants.
func WithDirectory(d Directory) RepositoryOption {
	return func(o *repositoryOptions) { o.directory = d }
}

// WithActor sets the resolver used for created/updated/deleted by columns.
func WithActor(fn ActorFunc) RepositoryOption {
	return func(o *repositoryOptions) { o.actor = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RepositoryOption {
	return func(o *repositoryOptions) { o.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() uuid.UUID) RepositoryOption {
	return func(o *repositoryOptions) { o.newID = fn }
}

// Repository is the only sanctioned access path to tenant-scoped records: every write is
// checked by the Enforcer before it reaches the Backend and every read is filtered and
// verified.
type Repository[E Entity] struct {
	entity   string
	backend  Backend[E]
	enforcer *Enforcer
	opts     repositoryOptions
}

// NewRepository wires a Backend behind the enforcement gateway. entity names the resource in
// errors and logs.
func NewRepository[E Entity](entity string, backend Backend[E], enforcer *Enforcer, opts ...RepositoryOption) *Repository[E] {
	o := repositoryOptions{now: time.Now, newID: uuid.New}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[E]{entity: entity, backend: backend, enforcer: enforcer, opts: o}
}

// Create stamps and persists a new record.
func (r *Repository[E]) Create(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	if err := r.enforcer.BeforeCreate(ctx, r.entity, rec); err != nil {
		return err
	}
	if rec.ID == uuid.Nil {
		rec.ID = r.opts.newID()
	}
	now := r.opts.now().UTC()
	actor := r.actor(ctx)
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CreatedBy, rec.UpdatedBy = actor, actor
	rec.Version = 1
	if err := r.backend.Insert(ctx, e); err != nil {
		return fmt.Errorf("tenant: insert %s: %w", r.entity, err)
	}
	return nil
}

// Update persists changes to e. A stale Version fails with shared.ErrConflict.
func (r *Repository[E]) Update(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	if err := r.enforcer.BeforeUpdate(ctx, r.entity, rec); err != nil {
		return err
	}
	return r.write(ctx, e)
}

// Delete soft deletes e.
func (r *Repository[E]) Delete(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	if err := r.enforcer.BeforeDelete(ctx, r.entity, rec); err != nil {
		return err
	}
	if rec.Deleted {
		return shared.NotFound(r.entity, rec.ID)
	}
	prev := *rec
	rec.MarkDeleted(r.actor(ctx), r.opts.now().UTC())
	if err := r.write(ctx, e); err != nil {
		*rec = prev
		return err
	}
	return nil
}

// DeleteByID loads the visible record with id and soft deletes it.
func (r *Repository[E]) DeleteByID(ctx context.Context, id uuid.UUID) (E, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return e, err
	}
	return e, r.Delete(ctx, e)
}

// Purge removes e from storage permanently.
func (r *Repository[E]) Purge(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	if err := r.enforcer.BeforeDelete(ctx, r.entity, rec); err != nil {
		return err
	}
	f, err := writeFilter(ctx)
	if err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, f, rec.ID); err != nil {
		return r.wrap("delete", err)
	}
	return nil
}

// Get returns the visible, non-deleted record with id. Rows of other tenants are reported as
// not found.
func (r *Repository[E]) Get(ctx context.Context, id uuid.UUID) (E, error) {
	var zero E
	f, err := FilterFor(ctx)
	if err != nil {
		return zero, err
	}
	e, err := r.backend.Get(ctx, f, id)
	if err != nil {
		return zero, r.wrap("get", err)
	}
	if err := r.verify(ctx, f, e); err != nil {
		return zero, err
	}
	if e.TenantRecord().Deleted {
		return zero, shared.NotFound(r.entity, id)
	}
	return e, nil
}

// List returns the visible records matching q.
func (r *Repository[E]) List(ctx context.Context, q Query) ([]E, error) {
	f, err := FilterFor(ctx)
	if err != nil {
		return nil, err
	}
	items, err := r.backend.List(ctx, f, q)
	if err != nil {
		return nil, r.wrap("list", err)
	}
	out := items[:0]
	for _, e := range items {
		if err := r.verify(ctx, f, e); err != nil {
			return nil, err
		}
		if e.TenantRecord().Deleted && !q.IncludeDeleted {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Repository[E]) write(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	f, err := writeFilter(ctx)
	if err != nil {
		return err
	}
	expected := rec.Version
	prevAt, prevBy := rec.UpdatedAt, rec.UpdatedBy
	rec.Version++
	rec.UpdatedAt = r.opts.now().UTC()
	rec.UpdatedBy = r.actor(ctx)
	if err := r.backend.Update(ctx, f, e, expected); err != nil {
		rec.Version, rec.UpdatedAt, rec.UpdatedBy = expected, prevAt, prevBy
		return r.wrap("update", err)
	}
	return nil
}

// verify rejects rows the backend should never have produced for f.
func (r *Repository[E]) verify(ctx context.Context, f Filter, e E) error {
	rec := e.TenantRecord()
	switch {
	case rec.TenantID == uuid.Nil:
		return r.enforcer.IntegrityFault(ctx, r.entity, rec, "row has no owning tenant")
	case !f.Allows(rec.TenantID):
		return r.enforcer.IntegrityFault(ctx, r.entity, rec, "row outside the active tenant filter")
	}
	if f.Unrestricted() && r.opts.directory != nil {
		known, err := r.opts.directory.Exists(ctx, rec.TenantID)
		if err != nil {
			return fmt.Errorf("tenant: verify owner of %s %s: %w", r.entity, rec.ID, err)
		}
		if !known {
			return r.enforcer.IntegrityFault(ctx, r.entity, rec, "row owned by an unknown tenant")
		}
	}
	return nil
}

func (r *Repository[E]) actor(ctx context.Context) uuid.NullUUID {
	if r.opts.actor == nil {
		return uuid.NullUUID{}
	}
	id, ok := r.opts.actor(ctx)
	return uuid.NullUUID{UUID: id, Valid: ok}
}

func (r *Repository[E]) wrap(op string, err error) error {
	return fmt.Errorf("tenant: %s %s: %w", op, r.entity, err)
}
