package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Record holds the columns every tenant-scoped entity carries. TenantID is assigned once on
// create and never changes afterwards.
type Record struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  uuid.UUID     `json:"tenantId"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	CreatedBy uuid.NullUUID `json:"createdBy"`
	UpdatedBy uuid.NullUUID `json:"updatedBy"`
	Version   int64         `json:"version"`
	Deleted   bool          `json:"deleted"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
	DeletedBy uuid.NullUUID `json:"deletedBy"`
}

// TenantRecord gives the gateway access to the embedded record.
func (r *Record) TenantRecord() *Record { return r }

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool { return r.Version == 0 }

// MarkDeleted flags the record as soft deleted.
func (r *Record) MarkDeleted(actor uuid.NullUUID, at time.Time) {
	r.Deleted = true
	r.DeletedAt = &at
	r.DeletedBy = actor
}

// Entity is implemented by pointers to structs embedding Record.
type Entity interface {
	TenantRecord() *Record
}
