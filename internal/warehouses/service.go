package warehouses

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/events"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Event types emitted after a warehouse write succeeds.
const (
	EventCreated = "warehouse.created"
	EventUpdated = "warehouse.updated"
	EventDeleted = "warehouse.deleted"
)

// Store is the tenant-enforced storage of warehouses; *tenant.Repository[*Warehouse] implements it.
type Store interface {
	Create(ctx context.Context, w *Warehouse) error
	Update(ctx context.Context, w *Warehouse) error
	Delete(ctx context.Context, w *Warehouse) error
	Get(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	List(ctx context.Context, q tenant.Query) ([]*Warehouse, error)
}

// ListFilters narrows a listing.
type ListFilters struct {
	Page   int
	Limit  int
	Search string
}

type Service struct {
	store     Store
	publisher events.Publisher
	validator *validator.Validate
	logger    *slog.Logger
}

func NewService(store Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, publisher: publisher, validator: shared.NewValidator(), logger: logger}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]*Warehouse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 20
	}
	return s.store.List(ctx, tenant.Query{
		Limit:  filters.Limit,
		Offset: (filters.Page - 1) * filters.Limit,
		Search: strings.TrimSpace(filters.Search),
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Warehouse, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Warehouse, error) {
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return nil, err
	}
	w := &Warehouse{
		Code:    normalizeCode(in.Code),
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
		Active:  in.Active == nil || *in.Active,
	}
	if err := s.ensureUniqueCode(ctx, w.Code, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, w); err != nil {
		return nil, err
	}
	s.publish(ctx, EventCreated, w)
	return w, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Warehouse, error) {
	if err := shared.ValidateStruct(s.validator, in); err != nil {
		return nil, err
	}
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Version != in.Version {
		return nil, shared.Conflict(Entity, id)
	}
	code := normalizeCode(in.Code)
	if code != w.Code {
		if err := s.ensureUniqueCode(ctx, code, w.ID); err != nil {
			return nil, err
		}
	}
	w.Code = code
	w.Name = strings.TrimSpace(in.Name)
	w.Address = strings.TrimSpace(in.Address)
	w.Active = in.Active
	if err := s.store.Update(ctx, w); err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdated, w)
	return w, nil
}

// Delete soft deletes a warehouse. Active warehouses must be deactivated first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if w.Active {
		return shared.BusinessRule("warehouse %s is active; deactivate it before deleting", w.Code)
	}
	if err := s.store.Delete(ctx, w); err != nil {
		return err
	}
	s.publish(ctx, EventDeleted, w)
	return nil
}

func (s *Service) ensureUniqueCode(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.store.List(ctx, tenant.Query{Search: code})
	if err != nil {
		return err
	}
	for _, w := range existing {
		if w.Code == code && w.ID != self {
			return shared.NewValidationError(shared.FieldError{
				Field:         "code",
				Code:          "DUPLICATE",
				Message:       "code is already used by another warehouse",
				RejectedValue: code,
			})
		}
	}
	return nil
}

// publish runs after the write committed; a lost event is logged, never rolled back.
func (s *Service) publish(ctx context.Context, eventType string, w *Warehouse) {
	if s.publisher == nil {
		return
	}
	actor, ok := auth.CurrentUserID(ctx)
	e, err := events.New(ctx, eventType, w.ID.String(), uuid.NullUUID{UUID: actor, Valid: ok}, map[string]any{
		"code":    w.Code,
		"name":    w.Name,
		"version": w.Version,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "publish warehouse event", slog.String("type", eventType), slog.String("warehouse_id", w.ID.String()), slog.Any("error", err))
	}
}
