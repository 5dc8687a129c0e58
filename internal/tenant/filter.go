package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnjustifiedBypass is returned when a cross-tenant read is requested without an actor and
// reason. It signals a programming error and is never surfaced with detail.
var ErrUnjustifiedBypass = errors.New("tenant: cross-tenant read requires an administrative justification")

// Justification records who lifts the read filter and why.
type Justification struct {
	Actor  uuid.UUID
	Reason string
}

func (j Justification) validate() error {
	if j.Actor == uuid.Nil {
		return fmt.Errorf("%w: missing actor", ErrUnjustifiedBypass)
	}
	if strings.TrimSpace(j.Reason) == "" {
		return fmt.Errorf("%w: missing reason", ErrUnjustifiedBypass)
	}
	return nil
}

type bypassKey struct{}

// Filter is the read-time row predicate of a unit of work. The zero value matches nothing.
type Filter struct {
	tenantID      uuid.UUID
	unrestricted  bool
	justification *Justification
}

// FilterFor returns the read filter of ctx. It is armed to the bound tenant unless ctx was
// produced by Enforcer.CrossTenantRead.
func FilterFor(ctx context.Context) (Filter, error) {
	if j, ok := ctx.Value(bypassKey{}).(*Justification); ok && j != nil {
		return Filter{unrestricted: true, justification: j}, nil
	}
	id, err := Get(ctx)
	if err != nil {
		return Filter{}, err
	}
	return Filter{tenantID: id}, nil
}

// writeFilter is always armed; the bypass only ever covers reads.
func writeFilter(ctx context.Context) (Filter, error) {
	id, err := Get(ctx)
	if err != nil {
		return Filter{}, err
	}
	return Filter{tenantID: id}, nil
}

// ForTenant returns a filter armed to id.
func ForTenant(id uuid.UUID) Filter { return Filter{tenantID: id} }

// TenantID returns the tenant the filter is armed to. ok is false for an unrestricted filter.
func (f Filter) TenantID() (uuid.UUID, bool) {
	if f.unrestricted || f.tenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return f.tenantID, true
}

// Unrestricted reports whether the filter was lifted for an administrative read.
func (f Filter) Unrestricted() bool { return f.unrestricted }

// Justification returns the reason an unrestricted filter was granted.
func (f Filter) Justification() (Justification, bool) {
	if f.justification == nil {
		return Justification{}, false
	}
	return *f.justification, true
}

// Allows reports whether a row owned by id passes the filter.
func (f Filter) Allows(id uuid.UUID) bool {
	if f.unrestricted {
		return true
	}
	return f.tenantID != uuid.Nil && f.tenantID == id
}
