package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/database"
	"musobuddy/core/logger"
	"musobuddy/modules/calendarsync/entity"
)

// OAuthStateRepository persists one-time CSRF state tokens for the
// consent flow.
type OAuthStateRepository interface {
	Save(ctx context.Context, state string, userID uuid.UUID, expiresAt time.Time) error
	Get(ctx context.Context, state string) (*entity.OAuthState, error)
	Delete(ctx context.Context, state string) error
	CleanupExpired(ctx context.Context) error
}

type oauthStateRepository struct {
	db database.IDatabase
}

func NewOAuthStateRepository(db database.IDatabase) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Save(ctx context.Context, state string, userID uuid.UUID, expiresAt time.Time) error {
	query := `
		INSERT INTO oauth_states (id, state, user_id, expires_at, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		ON CONFLICT (state)
		DO UPDATE SET user_id = $2, expires_at = $3, updated_at = NOW()
	`
	if err := r.db.ExecContext(ctx, query, state, userID, expiresAt); err != nil {
		logger.Error("OAuthStateRepository:Save:Error", "error", err, "state", state)
		return err
	}
	return nil
}

func (r *oauthStateRepository) Get(ctx context.Context, state string) (*entity.OAuthState, error) {
	var oauthState entity.OAuthState
	query := `
		SELECT id, state, user_id, expires_at, created_at, updated_at
		FROM oauth_states
		WHERE state = $1 AND expires_at > NOW()
	`
	err := r.db.GetContext(ctx, &oauthState, query, state)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("OAuthStateRepository:Get:Error", "error", err, "state", state)
		return nil, err
	}
	return &oauthState, nil
}

func (r *oauthStateRepository) Delete(ctx context.Context, state string) error {
	if err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = $1`, state); err != nil {
		logger.Error("OAuthStateRepository:Delete:Error", "error", err, "state", state)
		return err
	}
	return nil
}

func (r *oauthStateRepository) CleanupExpired(ctx context.Context) error {
	if err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`); err != nil {
		logger.Error("OAuthStateRepository:CleanupExpired:Error", "error", err)
		return err
	}
	return nil
}
