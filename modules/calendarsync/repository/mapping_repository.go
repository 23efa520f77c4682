package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"musobuddy/core/database"
	"musobuddy/core/logger"
	"musobuddy/modules/calendarsync/entity"
)

// MappingRepository is the dedup/idempotency backbone. Inserts are
// insert-if-absent: unique indexes on (user, local id, local type, calendar)
// and (external event, calendar) hold the correspondence invariant under
// concurrent export and import of the same record.
type MappingRepository interface {
	// Insert returns (created=false, nil) when a mapping already holds
	// either uniqueness slot.
	Insert(ctx context.Context, m *entity.SyncMapping) (bool, error)
	GetByLocalID(ctx context.Context, userID, localID uuid.UUID, localType, calendarID string) (*entity.SyncMapping, error)
	GetByExternalID(ctx context.Context, externalEventID, calendarID string) (*entity.SyncMapping, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.SyncMapping, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type mappingRepository struct {
	db database.IDatabase
}

func NewMappingRepository(db database.IDatabase) MappingRepository {
	return &mappingRepository{db: db}
}

const mappingColumns = `id, user_id, local_id, local_type, external_event_id, calendar_id, direction, created_at`

func (r *mappingRepository) Insert(ctx context.Context, m *entity.SyncMapping) (bool, error) {
	query := `
		INSERT INTO calendar_sync_mappings (user_id, local_id, local_type, external_event_id, calendar_id, direction)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.UserID, m.LocalID, m.LocalType, m.ExternalEventID, m.CalendarID, m.Direction,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict: another writer holds the slot. Not an error.
			return false, nil
		}
		logger.Error("MappingRepository:Insert:Error", "error", err, "local_id", m.LocalID)
		return false, err
	}
	return true, nil
}

func (r *mappingRepository) GetByLocalID(ctx context.Context, userID, localID uuid.UUID, localType, calendarID string) (*entity.SyncMapping, error) {
	var m entity.SyncMapping
	query := `
		SELECT ` + mappingColumns + `
		FROM calendar_sync_mappings
		WHERE user_id = $1 AND local_id = $2 AND local_type = $3 AND calendar_id = $4
	`
	err := r.db.GetContext(ctx, &m, query, userID, localID, localType, calendarID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("MappingRepository:GetByLocalID:Error", "error", err, "local_id", localID)
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepository) GetByExternalID(ctx context.Context, externalEventID, calendarID string) (*entity.SyncMapping, error) {
	var m entity.SyncMapping
	query := `
		SELECT ` + mappingColumns + `
		FROM calendar_sync_mappings
		WHERE external_event_id = $1 AND calendar_id = $2
	`
	err := r.db.GetContext(ctx, &m, query, externalEventID, calendarID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("MappingRepository:GetByExternalID:Error", "error", err, "external_event_id", externalEventID)
		return nil, err
	}
	return &m, nil
}

func (r *mappingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.SyncMapping, error) {
	var mappings []entity.SyncMapping
	query := `SELECT ` + mappingColumns + ` FROM calendar_sync_mappings WHERE user_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &mappings, query, userID); err != nil {
		logger.Error("MappingRepository:ListByUser:Error", "error", err, "user_id", userID)
		return nil, err
	}
	return mappings, nil
}

func (r *mappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.ExecContext(ctx, `DELETE FROM calendar_sync_mappings WHERE id = $1`, id); err != nil {
		logger.Error("MappingRepository:Delete:Error", "error", err, "id", id)
		return err
	}
	return nil
}

func (r *mappingRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if err := r.db.ExecContext(ctx, `DELETE FROM calendar_sync_mappings WHERE user_id = $1`, userID); err != nil {
		logger.Error("MappingRepository:DeleteByUser:Error", "error", err, "user_id", userID)
		return err
	}
	return nil
}
