// Package tenanttest provides an in-memory tenant.Backend for tests.
package tenanttest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// MemoryBackend stores cloned entities in a map and applies filters the way a database would.
type MemoryBackend[E tenant.Entity] struct {
	mu        sync.Mutex
	entity    string
	rows      map[uuid.UUID]E
	clone     func(E) E
	matches   func(E, string) bool
	mutations int

	// IgnoreFilter makes reads return rows of every tenant, simulating a broken backend.
	IgnoreFilter bool
}

// NewMemoryBackend constructs a backend. clone must deep-copy an entity.
func NewMemoryBackend[E tenant.Entity](entity string, clone func(E) E) *MemoryBackend[E] {
	return &MemoryBackend[E]{entity: entity, rows: make(map[uuid.UUID]E), clone: clone}
}

// WithSearch sets the predicate List uses for Query.Search.
func (b *MemoryBackend[E]) WithSearch(fn func(E, string) bool) *MemoryBackend[E] {
	b.matches = fn
	return b
}

// Seed stores e as-is, bypassing every check.
func (b *MemoryBackend[E]) Seed(e E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[e.TenantRecord().ID] = b.clone(e)
}

// Stored returns a copy of the raw row, ignoring filters.
func (b *MemoryBackend[E]) Stored(id uuid.UUID) (E, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.rows[id]
	if !ok {
		return e, false
	}
	return b.clone(e), true
}

// Mutations counts successful inserts, updates and deletes.
func (b *MemoryBackend[E]) Mutations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mutations
}

func (b *MemoryBackend[E]) Insert(_ context.Context, e E) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := e.TenantRecord().ID
	if _, exists := b.rows[id]; exists {
		return shared.NewValidationError(shared.FieldError{Field: "id", Code: "DUPLICATE", Message: "id is already used"})
	}
	b.rows[id] = b.clone(e)
	b.mutations++
	return nil
}

func (b *MemoryBackend[E]) Update(_ context.Context, f tenant.Filter, e E, expectedVersion int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := e.TenantRecord().ID
	row, ok := b.rows[id]
	if !ok || !f.Allows(row.TenantRecord().TenantID) {
		return shared.NotFound(b.entity, id)
	}
	if row.TenantRecord().Version != expectedVersion {
		return shared.Conflict(b.entity, id)
	}
	b.rows[id] = b.clone(e)
	b.mutations++
	return nil
}

func (b *MemoryBackend[E]) Delete(_ context.Context, f tenant.Filter, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[id]
	if !ok || !f.Allows(row.TenantRecord().TenantID) {
		return shared.NotFound(b.entity, id)
	}
	delete(b.rows, id)
	b.mutations++
	return nil
}

func (b *MemoryBackend[E]) Get(_ context.Context, f tenant.Filter, id uuid.UUID) (E, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero E
	row, ok := b.rows[id]
	if !ok || !b.visible(f, row) {
		return zero, shared.NotFound(b.entity, id)
	}
	return b.clone(row), nil
}

func (b *MemoryBackend[E]) List(_ context.Context, f tenant.Filter, q tenant.Query) ([]E, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]E, 0, len(b.rows))
	for _, row := range b.rows {
		if !b.visible(f, row) {
			continue
		}
		if row.TenantRecord().Deleted && !q.IncludeDeleted {
			continue
		}
		if q.Search != "" && b.matches != nil && !b.matches(row, q.Search) {
			continue
		}
		out = append(out, b.clone(row))
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].TenantRecord(), out[j].TenantRecord()
		if !a.CreatedAt.Equal(c.CreatedAt) {
			return a.CreatedAt.Before(c.CreatedAt)
		}
		return a.ID.String() < c.ID.String()
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []E{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (b *MemoryBackend[E]) visible(f tenant.Filter, row E) bool {
	return b.IgnoreFilter || f.Allows(row.TenantRecord().TenantID)
}

// StaticDirectory is a fixed set of known tenants.
type StaticDirectory map[uuid.UUID]bool

// Exists implements tenant.Directory.
func (d StaticDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return d[id], nil
}

// RecordingObserver captures enforcer events.
type RecordingObserver struct {
	mu         sync.Mutex
	Violations []tenant.Violation
	Bypasses   []tenant.Justification
}

func (o *RecordingObserver) TenantViolation(_ context.Context, v tenant.Violation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Violations = append(o.Violations, v)
}

func (o *RecordingObserver) CrossTenantRead(_ context.Context, j tenant.Justification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Bypasses = append(o.Bypasses, j)
}
