package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Repository reads audit rows visible through a tenant filter.
type Repository interface {
	Window(ctx context.Context, f tenant.Filter, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// Service serves the audit timeline of the bound tenant.
type Service struct {
	repo Repository
}

// NewService creates a new audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit rows.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	f, err := tenant.FilterFor(ctx)
	if err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.Window(ctx, f, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// PgRepository reads audit_logs with pgx.
type PgRepository struct {
	q db.Querier
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

func (r *PgRepository) Window(ctx context.Context, f tenant.Filter, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, severity, meta FROM audit_logs WHERE 1=1`
	args := []any{}
	argCount := 0

	if !f.Unrestricted() {
		id, ok := f.TenantID()
		if !ok {
			return nil, nil
		}
		argCount++
		query += ` AND tenant_id = $` + strconv.Itoa(argCount)
		args = append(args, id)
	}
	if !filters.From.IsZero() {
		argCount++
		query += ` AND occurred_at >= $` + strconv.Itoa(argCount)
		args = append(args, filters.From)
	}
	if !filters.To.IsZero() {
		argCount++
		query += ` AND occurred_at < $` + strconv.Itoa(argCount)
		args = append(args, filters.To.Add(24*time.Hour))
	}
	if filters.Actor.Valid {
		argCount++
		query += ` AND actor_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.Actor.UUID)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		argCount++
		query += ` AND entity = $` + strconv.Itoa(argCount)
		args = append(args, v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		argCount++
		query += ` AND action = $` + strconv.Itoa(argCount)
		args = append(args, v)
	}
	query += ` ORDER BY occurred_at DESC, id DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var (
			row      TimelineRow
			severity string
			meta     []byte
		)
		if err := rows.Scan(&row.At, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &severity, &meta); err != nil {
			return nil, fmt.Errorf("audit: scan timeline: %w", err)
		}
		row.Severity = Severity(severity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta of %s %s: %w", row.Entity, row.EntityID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
