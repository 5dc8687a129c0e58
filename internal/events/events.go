// Package events carries domain events from a committed write to their subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/jobs"
)

// Event is an immutable fact about a tenant-scoped aggregate.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	TenantID    uuid.UUID       `json:"tenantId"`
	TriggeredBy uuid.NullUUID   `json:"triggeredBy"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

var now = time.Now

// New builds an event owned by the tenant bound to ctx.
func New(ctx context.Context, eventType, aggregateID string, actor uuid.NullUUID, payload any) (Event, error) {
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return Event{}, err
	}
	var raw json.RawMessage
	if payload != nil {
		if raw, err = json.Marshal(payload); err != nil {
			return Event{}, fmt.Errorf("events: encode %s payload: %w", eventType, err)
		}
	}
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		TenantID:    tenantID,
		TriggeredBy: actor,
		AggregateID: aggregateID,
		OccurredAt:  now().UTC(),
		Payload:     raw,
	}, nil
}

// Publisher hands events to their transport. Publish must only be called after the write the
// event describes has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber reacts to delivered events.
type Subscriber interface {
	HandleEvent(ctx context.Context, e Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e Event) error

func (f SubscriberFunc) HandleEvent(ctx context.Context, e Event) error { return f(ctx, e) }

// Enqueuer is satisfied by *jobs.Client.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuePublisher delivers events through the background queue.
type QueuePublisher struct {
	queue Enqueuer
}

// NewQueuePublisher constructs a QueuePublisher.
func NewQueuePublisher(queue Enqueuer) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

func (p *QueuePublisher) Publish(ctx context.Context, e Event) error {
	task, err := jobs.NewTenantTask(jobs.TaskEventPublish, e.TenantID, e, asynq.TaskID(e.ID.String()))
	if err != nil {
		return err
	}
	if _, err := p.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("events: enqueue %s: %w", e.Type, err)
	}
	return nil
}

// LogPublisher writes events to the log. Used when no queue is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "domain event",
		slog.String("type", e.Type),
		slog.String("event_id", e.ID.String()),
		slog.String("tenant_id", e.TenantID.String()),
		slog.String("aggregate_id", e.AggregateID),
	)
	return nil
}

// Dispatcher fans events out to subscribers. It is the asynq handler of jobs.TaskEventPublish
// and must run inside jobs.TenantScoped.
type Dispatcher struct {
	logger *slog.Logger
	byType map[string][]Subscriber
	all    []Subscriber
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, byType: make(map[string][]Subscriber)}
}

// Subscribe registers s for events of eventType, or for all events when eventType is "".
func (d *Dispatcher) Subscribe(eventType string, s Subscriber) {
	if eventType == "" {
		d.all = append(d.all, s)
		return
	}
	d.byType[eventType] = append(d.byType[eventType], s)
}

// Dispatch delivers e to every matching subscriber. The event must belong to the tenant bound
// to ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	current, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	if current != e.TenantID {
		d.logger.ErrorContext(ctx, "event tenant mismatch",
			slog.String("event", "tenant_violation"),
			slog.String("type", e.Type),
			slog.String("event_id", e.ID.String()),
		)
		return shared.TenantMismatch(e.TenantID, current)
	}
	var errs []error
	for _, s := range append(append([]Subscriber{}, d.byType[e.Type]...), d.all...) {
		if err := s.HandleEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessTask implements asynq.Handler.
func (d *Dispatcher) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var e Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("events: decode: %v: %w", err, asynq.SkipRetry)
	}
	err := d.Dispatch(ctx, e)
	if errors.Is(err, shared.ErrTenantMismatch) || errors.Is(err, shared.ErrNoTenantContext) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// Local delivers events synchronously to a Dispatcher in a fresh unit of work bound to the
// event's tenant.
type Local struct {
	dispatcher *Dispatcher
}

// NewLocal constructs an in-process publisher.
func NewLocal(d *Dispatcher) *Local { return &Local{dispatcher: d} }

func (l *Local) Publish(ctx context.Context, e Event) error {
	return tenant.Run(ctx, e.TenantID, func(ctx context.Context) error {
		return l.dispatcher.Dispatch(ctx, e)
	})
}
