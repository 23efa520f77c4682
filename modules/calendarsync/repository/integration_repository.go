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

// IntegrationRepository is the credential store: OAuth tokens, sync
// preferences, the incremental cursor and webhook channel metadata.
// Plain persistence boundary, no retries here.
type IntegrationRepository interface {
	Save(ctx context.Context, integ *entity.Integration) (*entity.Integration, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.Integration, error)
	GetByChannelID(ctx context.Context, channelID string) (*entity.Integration, error)
	ListSyncEnabled(ctx context.Context) ([]entity.Integration, error)
	ListExpiringChannels(ctx context.Context, before time.Time) ([]entity.Integration, error)

	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken string, expiresAt time.Time) error
	UpdateSyncMeta(ctx context.Context, userID uuid.UUID, syncToken *string, syncedAt time.Time) error
	UpdateWebhookChannel(ctx context.Context, userID uuid.UUID, channelID, resourceID string, expiresAt time.Time) error
	UpdateSettings(ctx context.Context, integ *entity.Integration) error
	SetSyncEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error

	// MarkReconnectRequired disables sync and flags the integration for
	// the status endpoint; set when the refresh token is revoked.
	MarkReconnectRequired(ctx context.Context, userID uuid.UUID) error

	// Delete removes the integration and cascades deletion of every
	// sync mapping for the user, in one transaction.
	Delete(ctx context.Context, userID uuid.UUID) error
}

type integrationRepository struct {
	db database.IDatabase
}

func NewIntegrationRepository(db database.IDatabase) IntegrationRepository {
	return &integrationRepository{db: db}
}

const integrationColumns = `
	id, user_id, provider, calendar_id, refresh_token, access_token, token_expires_at,
	sync_enabled, needs_reconnect, auto_sync_bookings, auto_import_events, sync_direction,
	last_synced_at, sync_token, channel_id, channel_resource_id, channel_expires_at,
	created_at, updated_at`

// Save upserts by user; reconnecting replaces tokens and preferences but
// keeps the row identity.
func (r *integrationRepository) Save(ctx context.Context, integ *entity.Integration) (*entity.Integration, error) {
	query := `
		INSERT INTO calendar_integrations (
			user_id, provider, calendar_id, refresh_token, access_token, token_expires_at,
			sync_enabled, auto_sync_bookings, auto_import_events, sync_direction
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			calendar_id = EXCLUDED.calendar_id,
			refresh_token = EXCLUDED.refresh_token,
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			sync_enabled = EXCLUDED.sync_enabled,
			needs_reconnect = false,
			auto_sync_bookings = EXCLUDED.auto_sync_bookings,
			auto_import_events = EXCLUDED.auto_import_events,
			sync_direction = EXCLUDED.sync_direction,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		integ.UserID, integ.Provider, integ.CalendarID, integ.RefreshToken,
		integ.AccessToken, integ.TokenExpiresAt, integ.SyncEnabled,
		integ.AutoSyncBookings, integ.AutoImportEvents, integ.SyncDirection,
	).Scan(&integ.ID, &integ.CreatedAt, &integ.UpdatedAt)
	if err != nil {
		logger.Error("IntegrationRepository:Save:Error", "error", err, "user_id", integ.UserID)
		return nil, err
	}
	return integ, nil
}

func (r *integrationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.Integration, error) {
	var integ entity.Integration
	query := `SELECT ` + integrationColumns + ` FROM calendar_integrations WHERE user_id = $1`
	err := r.db.GetContext(ctx, &integ, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("IntegrationRepository:GetByUserID:Error", "error", err, "user_id", userID)
		return nil, err
	}
	return &integ, nil
}

func (r *integrationRepository) GetByChannelID(ctx context.Context, channelID string) (*entity.Integration, error) {
	var integ entity.Integration
	query := `SELECT ` + integrationColumns + ` FROM calendar_integrations WHERE channel_id = $1`
	err := r.db.GetContext(ctx, &integ, query, channelID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("IntegrationRepository:GetByChannelID:Error", "error", err, "channel_id", channelID)
		return nil, err
	}
	return &integ, nil
}

func (r *integrationRepository) ListSyncEnabled(ctx context.Context) ([]entity.Integration, error) {
	var integs []entity.Integration
	query := `SELECT ` + integrationColumns + ` FROM calendar_integrations WHERE sync_enabled = true`
	if err := r.db.SelectContext(ctx, &integs, query); err != nil {
		logger.Error("IntegrationRepository:ListSyncEnabled:Error", "error", err)
		return nil, err
	}
	return integs, nil
}

func (r *integrationRepository) ListExpiringChannels(ctx context.Context, before time.Time) ([]entity.Integration, error) {
	var integs []entity.Integration
	query := `
		SELECT ` + integrationColumns + `
		FROM calendar_integrations
		WHERE sync_enabled = true
		AND channel_id IS NOT NULL
		AND channel_expires_at < $1
	`
	if err := r.db.SelectContext(ctx, &integs, query, before); err != nil {
		logger.Error("IntegrationRepository:ListExpiringChannels:Error", "error", err)
		return nil, err
	}
	return integs, nil
}

func (r *integrationRepository) UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE calendar_integrations
		SET access_token = $1, token_expires_at = $2, updated_at = NOW()
		WHERE user_id = $3
	`
	if err := r.db.ExecContext(ctx, query, accessToken, expiresAt, userID); err != nil {
		logger.Error("IntegrationRepository:UpdateTokens:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *integrationRepository) UpdateSyncMeta(ctx context.Context, userID uuid.UUID, syncToken *string, syncedAt time.Time) error {
	query := `
		UPDATE calendar_integrations
		SET sync_token = $1, last_synced_at = $2, updated_at = NOW()
		WHERE user_id = $3
	`
	if err := r.db.ExecContext(ctx, query, syncToken, syncedAt, userID); err != nil {
		logger.Error("IntegrationRepository:UpdateSyncMeta:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *integrationRepository) UpdateWebhookChannel(ctx context.Context, userID uuid.UUID, channelID, resourceID string, expiresAt time.Time) error {
	query := `
		UPDATE calendar_integrations
		SET channel_id = $1, channel_resource_id = $2, channel_expires_at = $3, updated_at = NOW()
		WHERE user_id = $4
	`
	if err := r.db.ExecContext(ctx, query, channelID, resourceID, expiresAt, userID); err != nil {
		logger.Error("IntegrationRepository:UpdateWebhookChannel:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *integrationRepository) UpdateSettings(ctx context.Context, integ *entity.Integration) error {
	query := `
		UPDATE calendar_integrations
		SET sync_enabled = $1, auto_sync_bookings = $2, auto_import_events = $3,
			sync_direction = $4, updated_at = NOW()
		WHERE user_id = $5
	`
	if err := r.db.ExecContext(ctx, query,
		integ.SyncEnabled, integ.AutoSyncBookings, integ.AutoImportEvents,
		integ.SyncDirection, integ.UserID,
	); err != nil {
		logger.Error("IntegrationRepository:UpdateSettings:Error", "error", err, "user_id", integ.UserID)
		return err
	}
	return nil
}

func (r *integrationRepository) SetSyncEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	query := `UPDATE calendar_integrations SET sync_enabled = $1, updated_at = NOW() WHERE user_id = $2`
	if err := r.db.ExecContext(ctx, query, enabled, userID); err != nil {
		logger.Error("IntegrationRepository:SetSyncEnabled:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *integrationRepository) MarkReconnectRequired(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE calendar_integrations
		SET sync_enabled = false, needs_reconnect = true, updated_at = NOW()
		WHERE user_id = $1
	`
	if err := r.db.ExecContext(ctx, query, userID); err != nil {
		logger.Error("IntegrationRepository:MarkReconnectRequired:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *integrationRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx)
	if err != nil {
		logger.Error("IntegrationRepository:Delete:Begin:Error", "error", err, "user_id", userID)
		return err
	}
	defer tx.Rollback()

	// Mappings must go with the integration or they become orphaned
	// correspondences pointing at credentials that no longer exist.
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_sync_mappings WHERE user_id = $1`, userID); err != nil {
		logger.Error("IntegrationRepository:Delete:Mappings:Error", "error", err, "user_id", userID)
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_integrations WHERE user_id = $1`, userID); err != nil {
		logger.Error("IntegrationRepository:Delete:Integration:Error", "error", err, "user_id", userID)
		return err
	}
	return tx.Commit()
}
