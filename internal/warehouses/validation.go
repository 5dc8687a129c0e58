package warehouses

import "strings"

// CreateInput is the payload for a new warehouse.
type CreateInput struct {
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=128"`
	Address string `json:"address" validate:"max=512"`
	Active  *bool  `json:"active"`
}

// UpdateInput replaces the mutable fields of a warehouse. Version must match the stored one.
type UpdateInput struct {
	Version int64  `json:"version" validate:"required,min=1"`
	Code    string `json:"code" validate:"required,max=32"`
	Name    string `json:"name" validate:"required,max=128"`
	Address string `json:"address" validate:"max=512"`
	Active  bool   `json:"active"`
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
