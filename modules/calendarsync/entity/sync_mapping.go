package entity

import (
	"time"

	"github.com/google/uuid"
)

// Mapping directions: which side a correspondence originated from.
const (
	LocalOriginated    = "local_originated"
	ExternalOriginated = "external_originated"
)

// SyncMapping is the durable correspondence between one local record and
// one external calendar event. At most one live mapping per
// (user, local id, local type, calendar) and per (external event, calendar);
// recreated on change, never repointed.
type SyncMapping struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"user_id"`
	LocalID         uuid.UUID `db:"local_id" json:"local_id"`
	LocalType       string    `db:"local_type" json:"local_type"`
	ExternalEventID string    `db:"external_event_id" json:"external_event_id"`
	CalendarID      string    `db:"calendar_id" json:"calendar_id"`
	Direction       string    `db:"direction" json:"direction"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

func (SyncMapping) TableName() string {
	return "calendar_sync_mappings"
}
