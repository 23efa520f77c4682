package entity

import (
	"time"

	"github.com/google/uuid"

	"musobuddy/core/entity"
)

// OAuthState is a one-time CSRF state token for the consent flow, bound to
// the user who initiated it so the public callback can attribute the grant.
type OAuthState struct {
	State     string    `db:"state"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	entity.BaseEntity
}
