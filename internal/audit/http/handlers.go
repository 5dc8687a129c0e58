// Package audithttp serves the audit timeline of the caller's tenant.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/audit"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 90 * 24
)

// TimelineService exposes the audit timeline operations.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
}

// Handler wires the audit timeline endpoint.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the audit HTTP handler.
func NewHandler(logger *slog.Logger, service TimelineService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "", result.Rows, map[string]any{
		"page":     result.Paging.Page,
		"pageSize": result.Paging.PageSize,
		"hasNext":  result.Paging.HasNext,
		"from":     filters.From.Format("2006-01-02"),
		"to":       filters.To.Format("2006-01-02"),
	})
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("to", "INVALID_DATE", "to must be a date (YYYY-MM-DD)", toStr)
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return audit.TimelineFilters{}, invalid("from", "INVALID_DATE", "from must be a date (YYYY-MM-DD)", fromStr)
	}
	if fromTime.After(toTime) || toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, invalid("from", "INVALID_RANGE", "date range must be ordered and at most 90 days", fromStr)
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalid("page", "MIN", "page must be a positive integer", v)
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, invalid("page_size", "MIN", "page_size must be a positive integer", v)
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}

	var actor uuid.NullUUID
	if v := strings.TrimSpace(q.Get("actor")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return audit.TimelineFilters{}, invalid("actor", "INVALID_UUID", "actor must be a UUID", v)
		}
		actor = uuid.NullUUID{UUID: id, Valid: true}
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Actor:    actor,
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func invalid(field, code, message string, value any) error {
	return shared.NewValidationError(shared.FieldError{Field: field, Code: code, Message: message, RejectedValue: value})
}
