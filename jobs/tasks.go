package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/stocksaas/stocksaas/internal/jobs"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEventPublish delivers a committed domain event to its subscribers.
	TaskEventPublish = "event:publish"
)

// TenantPayload is the envelope of every tenant-scoped task. Body is the task specific payload.
type TenantPayload struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Body     json.RawMessage `json:"body"`
}

// NewTenantTask constructs a task that will run bound to tenantID.
func NewTenantTask(taskType string, tenantID uuid.UUID, body any, opts ...asynq.Option) (*asynq.Task, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("jobs: %s: tenant id required", taskType)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s body: %w", taskType, err)
	}
	data, err := json.Marshal(TenantPayload{TenantID: tenantID, Body: raw})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, opts...), nil
}

// TenantScoped runs next inside tenant.Run for the tenant named by the task envelope. next
// receives a task whose payload is the envelope body. Tasks without a tenant are dropped
// without retry.
func TenantScoped(next asynq.Handler, metrics *jobmetrics.Metrics) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var payload TenantPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			metrics.Rejected(t.Type(), "malformed")
			return fmt.Errorf("jobs: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if payload.TenantID == uuid.Nil {
			metrics.Rejected(t.Type(), "missing_tenant")
			return fmt.Errorf("jobs: %s carries no tenant: %w", t.Type(), asynq.SkipRetry)
		}
		tracker := metrics.Track(t.Type())
		err := tenant.Run(ctx, payload.TenantID, func(ctx context.Context) error {
			return next.ProcessTask(ctx, asynq.NewTask(t.Type(), payload.Body))
		})
		return tracker.End(err)
	})
}
