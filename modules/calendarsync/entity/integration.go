package entity

import (
	"time"

	"github.com/google/uuid"

	"musobuddy/core/entity"
)

// Sync direction preferences.
const (
	DirectionExport        = "export"
	DirectionImport        = "import"
	DirectionBidirectional = "bidirectional"
)

// Integration is the per-user calendar connection: OAuth credentials,
// sync preferences, the incremental sync cursor and webhook channel state.
type Integration struct {
	entity.BaseEntity
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Provider       string    `db:"provider" json:"provider"`
	CalendarID     string    `db:"calendar_id" json:"calendar_id"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	AccessToken    string    `db:"access_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"-"`

	SyncEnabled      bool   `db:"sync_enabled" json:"sync_enabled"`
	NeedsReconnect   bool   `db:"needs_reconnect" json:"needs_reconnect"`
	AutoSyncBookings bool   `db:"auto_sync_bookings" json:"auto_sync_bookings"`
	AutoImportEvents bool   `db:"auto_import_events" json:"auto_import_events"`
	SyncDirection    string `db:"sync_direction" json:"sync_direction"`

	LastSyncedAt *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	SyncToken    *string    `db:"sync_token" json:"-"`

	ChannelID         *string    `db:"channel_id" json:"-"`
	ChannelResourceID *string    `db:"channel_resource_id" json:"-"`
	ChannelExpiresAt  *time.Time `db:"channel_expires_at" json:"-"`
}

func (Integration) TableName() string {
	return "calendar_integrations"
}

// DirectionIncludesExport reports whether a pass in the given direction
// pushes local bookings out.
func DirectionIncludesExport(direction string) bool {
	return direction == DirectionExport || direction == DirectionBidirectional
}

// DirectionIncludesImport reports whether a pass in the given direction
// pulls foreign events in.
func DirectionIncludesImport(direction string) bool {
	return direction == DirectionImport || direction == DirectionBidirectional
}
