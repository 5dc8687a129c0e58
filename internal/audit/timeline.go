package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    uuid.NullUUID
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one row of the audit timeline.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  uuid.NullUUID  `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Severity Severity       `json:"severity"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo holds simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}
