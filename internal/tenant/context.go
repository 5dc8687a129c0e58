// Package tenant binds the owning tenant to a unit of work and enforces it on every read and
// write of tenant-scoped records.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// ErrNoUnitOfWork is returned by Set when ctx was not opened with Begin.
var ErrNoUnitOfWork = fmt.Errorf("tenant: context has no unit of work: %w", shared.ErrNoTenantContext)

// scope is the binding cell of one unit of work. Goroutines fanned out inside the same unit
// of work share it, hence the lock.
type scope struct {
	mu  sync.RWMutex
	id  uuid.UUID
	set bool
}

type scopeKey struct{}

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger receiving binding changes at DEBUG. nil restores slog.Default.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func debugLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func scopeFrom(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// Begin opens a unit of work with an empty binding. Bindings of enclosing units of work are
// never inherited. The returned func clears the binding and may be called more than once.
func Begin(ctx context.Context) (context.Context, func()) {
	s := &scope{}
	return context.WithValue(ctx, scopeKey{}, s), func() { s.clear(ctx) }
}

// Set binds id to the unit of work carried by ctx, replacing any previous binding.
func Set(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return shared.InvalidArgument("tenant id must not be empty")
	}
	s := scopeFrom(ctx)
	if s == nil {
		return ErrNoUnitOfWork
	}
	s.mu.Lock()
	s.id, s.set = id, true
	s.mu.Unlock()
	debugLogger().DebugContext(ctx, "tenant context set", slog.String("tenant_id", id.String()))
	return nil
}

// Get returns the bound tenant. It fails with shared.ErrNoTenantContext when nothing is bound.
func Get(ctx context.Context) (uuid.UUID, error) {
	id, ok := Lookup(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("tenant: %w", shared.ErrNoTenantContext)
	}
	return id, nil
}

// Lookup returns the bound tenant and whether one is bound.
func Lookup(ctx context.Context) (uuid.UUID, bool) {
	s := scopeFrom(ctx)
	if s == nil {
		return uuid.Nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set
}

// IsSet reports whether a tenant is bound.
func IsSet(ctx context.Context) bool {
	_, ok := Lookup(ctx)
	return ok
}

// Clear unbinds the tenant. Clearing an unbound or absent scope is a no-op.
func Clear(ctx context.Context) {
	if s := scopeFrom(ctx); s != nil {
		s.clear(ctx)
	}
}

func (s *scope) clear(ctx context.Context) {
	s.mu.Lock()
	id, wasSet := s.id, s.set
	s.id, s.set = uuid.Nil, false
	s.mu.Unlock()
	if wasSet {
		debugLogger().DebugContext(ctx, "tenant context cleared", slog.String("tenant_id", id.String()))
	}
}

// Run executes fn in a child unit of work bound to id. The caller's binding is never touched,
// so it is intact on every exit path, including panics; the child binding is cleared when fn
// returns.
func Run(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	if id == uuid.Nil {
		return shared.InvalidArgument("tenant id must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	child, end := Begin(ctx)
	defer end()
	if err := Set(child, id); err != nil {
		return err
	}
	return fn(child)
}

// Middleware opens a unit of work for every request and clears it when the handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, end := Begin(r.Context())
		defer end()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
