package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"musobuddy/core/database"
	"musobuddy/core/logger"
	"musobuddy/modules/booking/entity"
)

type BookingRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	Create(ctx context.Context, b *entity.Booking) (*entity.Booking, error)
	Update(ctx context.Context, b *entity.Booking) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type bookingRepository struct {
	db database.IDatabase
}

func NewBookingRepository(db database.IDatabase) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `
	id, user_id, title, client_name, client_phone, client_email,
	event_date, event_time, event_end_time, venue, venue_address,
	fee, notes, status, created_at, updated_at`

func (r *bookingRepository) List(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error) {
	var bookings []entity.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY event_date NULLS LAST, created_at`
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		logger.Error("BookingRepository:List:Error", "error", err, "user_id", userID)
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	var b entity.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	err := r.db.GetContext(ctx, &b, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("BookingRepository:GetByID:Error", "error", err, "id", id)
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *entity.Booking) (*entity.Booking, error) {
	query := `
		INSERT INTO bookings (
			user_id, title, client_name, client_phone, client_email,
			event_date, event_time, event_end_time, venue, venue_address,
			fee, notes, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		b.UserID, b.Title, b.ClientName, b.ClientPhone, b.ClientEmail,
		b.EventDate, b.EventTime, b.EventEndTime, b.Venue, b.VenueAddress,
		b.Fee, b.Notes, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		logger.Error("BookingRepository:Create:Error", "error", err, "user_id", b.UserID)
		return nil, err
	}
	return b, nil
}

func (r *bookingRepository) Update(ctx context.Context, b *entity.Booking) error {
	query := `
		UPDATE bookings
		SET title = $1, client_name = $2, client_phone = $3, client_email = $4,
			event_date = $5, event_time = $6, event_end_time = $7,
			venue = $8, venue_address = $9, fee = $10, notes = $11, status = $12,
			updated_at = NOW()
		WHERE id = $13
	`
	if err := r.db.ExecContext(ctx, query,
		b.Title, b.ClientName, b.ClientPhone, b.ClientEmail,
		b.EventDate, b.EventTime, b.EventEndTime,
		b.Venue, b.VenueAddress, b.Fee, b.Notes, b.Status,
		b.ID,
	); err != nil {
		logger.Error("BookingRepository:Update:Error", "error", err, "id", b.ID)
		return err
	}
	return nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		logger.Error("BookingRepository:Delete:Error", "error", err, "id", id)
		return err
	}
	return nil
}
