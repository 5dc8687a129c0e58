// Package audit persists security and domain audit trails and serves them back per tenant.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/platform/db"
)

// Severity classifies an entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Entry represents a record stored in audit_logs.
type Entry struct {
	TenantID uuid.NullUUID
	ActorID  uuid.NullUUID
	Action   string
	Entity   string
	EntityID string
	Severity Severity
	Meta     map[string]any
	At       time.Time
}

// Writer persists entries.
type Writer interface {
	Record(ctx context.Context, e Entry) error
}

// Logger writes entries into audit_logs.
type Logger struct {
	q db.Querier
}

// NewLogger returns a new Logger.
func NewLogger(q db.Querier) *Logger {
	return &Logger{q: q}
}

// Record persists the entry.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	if l == nil || l.q == nil {
		return errors.New("audit: logger not initialised")
	}
	if e.Action == "" || e.Entity == "" {
		return errors.New("audit: entry requires action and entity")
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !e.At.IsZero() {
		at = &e.At
	}
	_, err = l.q.Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, severity, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		e.TenantID, e.ActorID, e.Action, e.Entity, e.EntityID, string(e.Severity), metaJSON, at)
	return err
}
