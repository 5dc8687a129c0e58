package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/events"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Recorder turns enforcer notifications and domain events into audit entries. Write failures
// are logged, never propagated into the operation that triggered them.
type Recorder struct {
	writer Writer
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(writer Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: writer, logger: logger}
}

// TenantViolation implements tenant.Observer.
func (r *Recorder) TenantViolation(ctx context.Context, v tenant.Violation) {
	action := "tenant.violation"
	if v.Op == tenant.OpRead {
		action = "tenant.integrity_fault"
	}
	r.record(ctx, Entry{
		TenantID: nullable(v.ContextTenant),
		Action:   action,
		Entity:   v.Entity,
		EntityID: v.RecordID.String(),
		Severity: SeverityCritical,
		Meta: map[string]any{
			"operation":     string(v.Op),
			"record_tenant": v.RecordTenant.String(),
		},
	})
}

// CrossTenantRead implements tenant.Observer.
func (r *Recorder) CrossTenantRead(ctx context.Context, j tenant.Justification) {
	current, _ := tenant.Lookup(ctx)
	r.record(ctx, Entry{
		TenantID: nullable(current),
		ActorID:  nullable(j.Actor),
		Action:   "tenant.cross_read",
		Entity:   "tenant",
		Severity: SeverityWarning,
		Meta:     map[string]any{"reason": j.Reason},
	})
}

// HandleEvent implements events.Subscriber.
func (r *Recorder) HandleEvent(ctx context.Context, e events.Event) error {
	entry := Entry{
		TenantID: nullable(e.TenantID),
		ActorID:  e.TriggeredBy,
		Action:   e.Type,
		Entity:   entityOf(e.Type),
		EntityID: e.AggregateID,
		Severity: SeverityInfo,
		Meta:     map[string]any{"event_id": e.ID.String()},
		At:       e.OccurredAt,
	}
	return r.writer.Record(ctx, entry)
}

func (r *Recorder) record(ctx context.Context, e Entry) {
	if r.writer == nil {
		return
	}
	if err := r.writer.Record(ctx, e); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed", slog.String("action", e.Action), slog.Any("error", err))
	}
}

func entityOf(eventType string) string {
	for i := 0; i < len(eventType); i++ {
		if eventType[i] == '.' {
			return eventType[:i]
		}
	}
	return eventType
}

func nullable(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
