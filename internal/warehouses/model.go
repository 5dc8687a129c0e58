// Package warehouses manages the storage locations of a tenant.
package warehouses

import (
	"github.com/stocksaas/stocksaas/internal/platform/db"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Entity names the record type in errors, logs and audit rows.
const Entity = "Warehouse"

// Warehouse represents a warehouse entity.
type Warehouse struct {
	tenant.Record
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// Schema maps Warehouse onto the warehouses table.
var Schema = db.Schema[*Warehouse]{
	Table:         "warehouses",
	Columns:       []string{"code", "name", "address", "active"},
	SearchColumns: []string{"code", "name"},
	Unique:        map[string]string{"warehouses_tenant_code_idx": "code"},
	New:           func() *Warehouse { return &Warehouse{} },
	Values: func(w *Warehouse) []any {
		return []any{w.Code, w.Name, w.Address, w.Active}
	},
	Targets: func(w *Warehouse) []any {
		return []any{&w.Code, &w.Name, &w.Address, &w.Active}
	},
}

// Clone returns a deep copy of w.
func Clone(w *Warehouse) *Warehouse {
	c := *w
	if w.DeletedAt != nil {
		at := *w.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

// NewTable returns the PostgreSQL backend for warehouses.
func NewTable(q db.Querier) *db.Table[*Warehouse] {
	return db.NewTable(q, Entity, Schema)
}
