package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// Operation names the storage action a check runs for.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpRead   Operation = "read"
)

// Violation describes a rejected write or an integrity fault observed on read.
type Violation struct {
	Op            Operation
	Entity        string
	RecordID      uuid.UUID
	RecordTenant  uuid.UUID
	ContextTenant uuid.UUID
}

// Observer receives security events raised by the Enforcer.
type Observer interface {
	TenantViolation(ctx context.Context, v Violation)
	CrossTenantRead(ctx context.Context, j Justification)
}

// Enforcer stamps and checks record ownership before writes and lifts the read filter for
// justified administrative reads.
type Enforcer struct {
	logger    *slog.Logger
	observers []Observer
}

// NewEnforcer constructs an Enforcer.
func NewEnforcer(logger *slog.Logger, observers ...Observer) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{logger: logger, observers: observers}
}

// BeforeCreate assigns the bound tenant to a record without one and rejects a record owned by
// another tenant.
func (e *Enforcer) BeforeCreate(ctx context.Context, entity string, rec *Record) error {
	current, err := e.current(ctx, OpCreate, entity)
	if err != nil {
		return err
	}
	if rec.TenantID == uuid.Nil {
		rec.TenantID = current
		return nil
	}
	return e.check(ctx, OpCreate, entity, rec, current)
}

// BeforeUpdate rejects an update of a record not owned by the bound tenant.
func (e *Enforcer) BeforeUpdate(ctx context.Context, entity string, rec *Record) error {
	current, err := e.current(ctx, OpUpdate, entity)
	if err != nil {
		return err
	}
	return e.check(ctx, OpUpdate, entity, rec, current)
}

// BeforeDelete rejects a delete of a record not owned by the bound tenant.
func (e *Enforcer) BeforeDelete(ctx context.Context, entity string, rec *Record) error {
	current, err := e.current(ctx, OpDelete, entity)
	if err != nil {
		return err
	}
	return e.check(ctx, OpDelete, entity, rec, current)
}

// CrossTenantRead runs fn with the read filter lifted. Writes inside fn stay bound to the
// caller's tenant.
func (e *Enforcer) CrossTenantRead(ctx context.Context, j Justification, fn func(ctx context.Context) error) error {
	if err := j.validate(); err != nil {
		e.logger.ErrorContext(ctx, "cross-tenant read refused",
			slog.String("event", "tenant_bypass_refused"),
			slog.Any("error", err),
		)
		return err
	}
	e.logger.WarnContext(ctx, "cross-tenant read",
		slog.String("event", "tenant_bypass"),
		slog.String("actor", j.Actor.String()),
		slog.String("reason", j.Reason),
	)
	for _, o := range e.observers {
		o.CrossTenantRead(ctx, j)
	}
	return fn(context.WithValue(ctx, bypassKey{}, &j))
}

// IntegrityFault reports a row whose owner breaks the read filter or names no known tenant.
func (e *Enforcer) IntegrityFault(ctx context.Context, entity string, rec *Record, reason string) error {
	current, _ := Lookup(ctx)
	v := Violation{Op: OpRead, Entity: entity, RecordID: rec.ID, RecordTenant: rec.TenantID, ContextTenant: current}
	e.logger.ErrorContext(ctx, "tenant integrity fault",
		slog.String("event", "tenant_integrity"),
		slog.String("entity", entity),
		slog.String("record_id", rec.ID.String()),
		slog.String("record_tenant", rec.TenantID.String()),
		slog.String("reason", reason),
	)
	e.notify(ctx, v)
	return shared.DataIntegrity("%s %s: %s", entity, rec.ID, reason)
}

func (e *Enforcer) current(ctx context.Context, op Operation, entity string) (uuid.UUID, error) {
	id, err := Get(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "tenant context missing on write",
			slog.String("event", "tenant_context_missing"),
			slog.String("operation", string(op)),
			slog.String("entity", entity),
		)
		return uuid.Nil, err
	}
	return id, nil
}

func (e *Enforcer) check(ctx context.Context, op Operation, entity string, rec *Record, current uuid.UUID) error {
	if rec.TenantID == current {
		return nil
	}
	v := Violation{Op: op, Entity: entity, RecordID: rec.ID, RecordTenant: rec.TenantID, ContextTenant: current}
	e.logger.ErrorContext(ctx, "tenant isolation violation",
		slog.String("event", "tenant_violation"),
		slog.String("operation", string(op)),
		slog.String("entity", entity),
		slog.String("record_id", rec.ID.String()),
		slog.String("record_tenant", rec.TenantID.String()),
		slog.String("context_tenant", current.String()),
	)
	e.notify(ctx, v)
	return shared.TenantMismatch(rec.TenantID, current)
}

func (e *Enforcer) notify(ctx context.Context, v Violation) {
	for _, o := range e.observers {
		o.TenantViolation(ctx, v)
	}
}
