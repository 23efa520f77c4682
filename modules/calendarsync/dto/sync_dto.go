package dto

import "time"

// ConnectResponse carries the provider consent URL the frontend should
// redirect the user to.
type ConnectResponse struct {
	AuthURL string `json:"auth_url"`
}

// StatusResponse summarises the user's calendar connection.
type StatusResponse struct {
	Connected        bool       `json:"connected"`
	Provider         string     `json:"provider,omitempty"`
	CalendarID       string     `json:"calendar_id,omitempty"`
	SyncEnabled      bool       `json:"sync_enabled"`
	NeedsReconnect   bool       `json:"needs_reconnect"`
	AutoSyncBookings bool       `json:"auto_sync_bookings"`
	AutoImportEvents bool       `json:"auto_import_events"`
	SyncDirection    string     `json:"sync_direction,omitempty"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	WebhookActive    bool       `json:"webhook_active"`
}

// UpdateSettingsRequest carries partial preference updates; nil fields
// are untouched.
type UpdateSettingsRequest struct {
	SyncEnabled      *bool   `json:"sync_enabled,omitempty"`
	AutoSyncBookings *bool   `json:"auto_sync_bookings,omitempty"`
	AutoImportEvents *bool   `json:"auto_import_events,omitempty"`
	SyncDirection    *string `json:"sync_direction,omitempty" validate:"omitempty,oneof=export import bidirectional"`
}

// SyncRequest triggers a manual pass, optionally overriding direction.
type SyncRequest struct {
	Direction *string `json:"direction,omitempty" validate:"omitempty,oneof=export import bidirectional"`
}

// SyncResponse reports the outcome of a manual pass.
type SyncResponse struct {
	Direction string   `json:"direction"`
	Exported  int      `json:"exported"`
	Imported  int      `json:"imported"`
	Deleted   int      `json:"deleted"`
	Errors    []string `json:"errors,omitempty"`
}
