package constants

import "time"

// Database pool settings
const (
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"
)

// Timeouts
const (
	DefaultTimeout     = 10 * time.Second
	HTTPClientTimeout  = 30 * time.Second
	ShutdownTimeout    = 15 * time.Second
	OAuthStateLifetime = 10 * time.Minute

	// SyncPassTimeout bounds one whole sync pass; provider calls can hang.
	SyncPassTimeout = 2 * time.Minute
)

// Redis key prefixes
const (
	RedisKeyTokenBlacklist = "auth:blacklist:"
	RedisKeyWebhookChannel = "calendar:channel:"
)

// Calendar sync tuning
const (
	// TokenRefreshMargin refreshes access tokens this long before expiry.
	TokenRefreshMargin = 5 * time.Minute

	// ChannelRenewalMargin: channels observed to live ~6 days; renew
	// anything expiring within this window, never after the fact.
	ChannelRenewalMargin = 24 * time.Hour

	// ChannelLookupTTL caches channel->user resolution in redis.
	ChannelLookupTTL = 7 * 24 * time.Hour

	SyncProvenanceMarker = "Synced from MusoBuddy"
	ExtPropIDKey         = "musobuddyId"
	ExtPropTypeKey       = "musobuddyType"
	LocalTypeBooking     = "booking"
)
