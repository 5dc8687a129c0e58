package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// baseColumns are shared by every tenant-scoped table, in this order.
var baseColumns = []string{
	"id", "tenant_id", "created_at", "updated_at", "created_by", "updated_by",
	"version", "deleted", "deleted_at", "deleted_by",
}

// Schema maps an entity onto its table. Columns excludes the base columns.
type Schema[E tenant.Entity] struct {
	Table         string
	Columns       []string
	SearchColumns []string
	New           func() E
	Values        func(E) []any
	Targets       func(E) []any
	// Unique maps unique index names onto the request field they guard.
	Unique        map[string]string
}

// Table is a tenant.Backend over one PostgreSQL table. Every statement carries the tenant
// predicate of the filter it is given.
type Table[E tenant.Entity] struct {
	q        Querier
	resource string
	schema   Schema[E]
}

// NewTable constructs a Table. resource names the entity in not-found and conflict errors.
func NewTable[E tenant.Entity](q Querier, resource string, schema Schema[E]) *Table[E] {
	return &Table[E]{q: q, resource: resource, schema: schema}
}

func (t *Table[E]) columns() []string {
	return append(append([]string{}, baseColumns...), t.schema.Columns...)
}

func (t *Table[E]) Insert(ctx context.Context, e E) error {
	rec := e.TenantRecord()
	args := append([]any{
		rec.ID, rec.TenantID, rec.CreatedAt, rec.UpdatedAt, rec.CreatedBy, rec.UpdatedBy,
		rec.Version, rec.Deleted, rec.DeletedAt, rec.DeletedBy,
	}, t.schema.Values(e)...)
	cols := t.columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	query := `INSERT INTO ` + t.schema.Table + ` (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(placeholders, ", ") + `)`
	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		if dup := t.duplicate(err); dup != nil {
			return dup
		}
		return fmt.Errorf("platform/db: insert %s: %w", t.schema.Table, err)
	}
	return nil
}

func (t *Table[E]) Update(ctx context.Context, f tenant.Filter, e E, expectedVersion int64) error {
	rec := e.TenantRecord()
	sets := []string{"updated_at", "updated_by", "version", "deleted", "deleted_at", "deleted_by"}
	args := []any{rec.UpdatedAt, rec.UpdatedBy, rec.Version, rec.Deleted, rec.DeletedAt, rec.DeletedBy}
	sets = append(sets, t.schema.Columns...)
	args = append(args, t.schema.Values(e)...)

	assignments := make([]string, len(sets))
	for i, col := range sets {
		assignments[i] = col + ` = $` + strconv.Itoa(i+1)
	}
	argCount := len(args)

	argCount++
	where := ` WHERE id = $` + strconv.Itoa(argCount)
	args = append(args, rec.ID)
	argCount++
	where += ` AND version = $` + strconv.Itoa(argCount)
	args = append(args, expectedVersion)
	where, args = tenantPredicate(f, where, args, &argCount)

	query := `UPDATE ` + t.schema.Table + ` SET ` + strings.Join(assignments, ", ") + where
	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		if dup := t.duplicate(err); dup != nil {
			return dup
		}
		return fmt.Errorf("platform/db: update %s: %w", t.schema.Table, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return t.classifyMiss(ctx, f, rec.ID)
}

// duplicate turns a unique violation into a DUPLICATE field error. Retrying the same write
// cannot succeed, so it is never reported as a conflict.
func (t *Table[E]) duplicate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	field, ok := t.schema.Unique[pgErr.ConstraintName]
	if !ok {
		field = "id"
	}
	return shared.NewValidationError(shared.FieldError{
		Field:   field,
		Code:    "DUPLICATE",
		Message: fmt.Sprintf("%s is already used by another %s", field, strings.ToLower(t.resource)),
	})
}

// classifyMiss tells a stale version apart from a row the filter cannot see.
func (t *Table[E]) classifyMiss(ctx context.Context, f tenant.Filter, id uuid.UUID) error {
	argCount := 1
	where := ` WHERE id = $1`
	args := []any{id}
	where, args = tenantPredicate(f, where, args, &argCount)
	var version int64
	err := t.q.QueryRow(ctx, `SELECT version FROM `+t.schema.Table+where, args...).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFound(t.resource, id)
	}
	if err != nil {
		return fmt.Errorf("platform/db: check version %s: %w", t.schema.Table, err)
	}
	return shared.Conflict(t.resource, id)
}

func (t *Table[E]) Delete(ctx context.Context, f tenant.Filter, id uuid.UUID) error {
	argCount := 1
	where := ` WHERE id = $1`
	args := []any{id}
	where, args = tenantPredicate(f, where, args, &argCount)
	tag, err := t.q.Exec(ctx, `DELETE FROM `+t.schema.Table+where, args...)
	if err != nil {
		return fmt.Errorf("platform/db: delete %s: %w", t.schema.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(t.resource, id)
	}
	return nil
}

func (t *Table[E]) Get(ctx context.Context, f tenant.Filter, id uuid.UUID) (E, error) {
	var zero E
	argCount := 1
	where := ` WHERE id = $1`
	args := []any{id}
	where, args = tenantPredicate(f, where, args, &argCount)
	query := `SELECT ` + strings.Join(t.columns(), ", ") + ` FROM ` + t.schema.Table + where

	e := t.schema.New()
	if err := t.q.QueryRow(ctx, query, args...).Scan(t.targets(e)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, shared.NotFound(t.resource, id)
		}
		return zero, fmt.Errorf("platform/db: get %s: %w", t.schema.Table, err)
	}
	return e, nil
}

// List uses a dynamic query; the tenant predicate is always the first condition.
func (t *Table[E]) List(ctx context.Context, f tenant.Filter, q tenant.Query) ([]E, error) {
	query := `SELECT ` + strings.Join(t.columns(), ", ") + ` FROM ` + t.schema.Table + ` WHERE 1=1`
	args := []any{}
	argCount := 0

	query, args = tenantPredicate(f, query, args, &argCount)

	if !q.IncludeDeleted {
		query += ` AND deleted = false`
	}

	if q.Search != "" && len(t.schema.SearchColumns) > 0 {
		argCount++
		n := strconv.Itoa(argCount)
		conds := make([]string, len(t.schema.SearchColumns))
		for i, col := range t.schema.SearchColumns {
			conds[i] = col + ` ILIKE $` + n
		}
		query += ` AND (` + strings.Join(conds, " OR ") + `)`
		args = append(args, "%"+q.Search+"%")
	}

	query += ` ORDER BY created_at ASC, id ASC`

	if q.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, q.Offset)
	}

	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("platform/db: list %s: %w", t.schema.Table, err)
	}
	defer rows.Close()

	var items []E
	for rows.Next() {
		e := t.schema.New()
		if err := rows.Scan(t.targets(e)...); err != nil {
			return nil, fmt.Errorf("platform/db: scan %s: %w", t.schema.Table, err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (t *Table[E]) targets(e E) []any {
	rec := e.TenantRecord()
	return append([]any{
		&rec.ID, &rec.TenantID, &rec.CreatedAt, &rec.UpdatedAt, &rec.CreatedBy, &rec.UpdatedBy,
		&rec.Version, &rec.Deleted, &rec.DeletedAt, &rec.DeletedBy,
	}, t.schema.Targets(e)...)
}

// tenantPredicate appends "AND tenant_id = $n" unless the filter was lifted. A filter armed to
// no tenant matches nothing.
func tenantPredicate(f tenant.Filter, where string, args []any, argCount *int) (string, []any) {
	if f.Unrestricted() {
		return where, args
	}
	id, ok := f.TenantID()
	if !ok {
		return where + ` AND false`, args
	}
	*argCount++
	return where + ` AND tenant_id = $` + strconv.Itoa(*argCount), append(args, id)
}
