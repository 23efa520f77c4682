package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/errors"
	"musobuddy/core/logger"
	"musobuddy/modules/booking/dto"
	"musobuddy/modules/booking/entity"
	"musobuddy/modules/booking/repository"
)

// DeletionObserver is notified after a user-initiated booking deletion so
// interested parties (the calendar sync engine) can reconcile external
// state. Kept as a callback so module dependencies stay one-directional.
type DeletionObserver interface {
	BookingDeleted(ctx context.Context, userID, bookingID uuid.UUID)
}

type BookingService interface {
	List(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	Create(ctx context.Context, userID uuid.UUID, req *dto.CreateBookingRequest) (*entity.Booking, error)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdateBookingRequest) (*entity.Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// CreateRecord and DeleteRecord are the collaborator surface used by
	// the sync engine's import phase. They bypass the deletion observer;
	// a sync-initiated delete must not feed back into the sync engine.
	CreateRecord(ctx context.Context, b *entity.Booking) (*entity.Booking, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error

	SetDeletionObserver(obs DeletionObserver)
}

type bookingService struct {
	repo     repository.BookingRepository
	observer DeletionObserver
}

func NewBookingService(repo repository.BookingRepository) BookingService {
	return &bookingService{repo: repo}
}

func (s *bookingService) SetDeletionObserver(obs DeletionObserver) {
	s.observer = obs
}

func (s *bookingService) List(ctx context.Context, userID uuid.UUID) ([]entity.Booking, error) {
	return s.repo.List(ctx, userID)
}

func (s *bookingService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to load booking", err)
	}
	if b == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "booking not found", nil)
	}
	return b, nil
}

func (s *bookingService) Create(ctx context.Context, userID uuid.UUID, req *dto.CreateBookingRequest) (*entity.Booking, error) {
	if req.ClientName == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "client_name is required", nil)
	}

	b := &entity.Booking{
		UserID:       userID,
		Title:        req.Title,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		ClientEmail:  req.ClientEmail,
		EventTime:    req.EventTime,
		EventEndTime: req.EventEndTime,
		Venue:        req.Venue,
		VenueAddress: req.VenueAddress,
		Notes:        req.Notes,
		Status:       entity.StatusPending,
	}
	if req.Fee != nil {
		b.Fee = *req.Fee
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid status", nil)
		}
		b.Status = *req.Status
	}
	if req.EventDate != nil {
		d, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "event_date must be YYYY-MM-DD", err)
		}
		b.EventDate = &d
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to create booking", err)
	}
	return created, nil
}

func (s *bookingService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateBookingRequest) (*entity.Booking, error) {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		b.Title = req.Title
	}
	if req.ClientName != nil {
		b.ClientName = *req.ClientName
	}
	if req.ClientPhone != nil {
		b.ClientPhone = req.ClientPhone
	}
	if req.ClientEmail != nil {
		b.ClientEmail = req.ClientEmail
	}
	if req.EventDate != nil {
		d, err := time.Parse("2006-01-02", *req.EventDate)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "event_date must be YYYY-MM-DD", err)
		}
		b.EventDate = &d
	}
	if req.EventTime != nil {
		b.EventTime = req.EventTime
	}
	if req.EventEndTime != nil {
		b.EventEndTime = req.EventEndTime
	}
	if req.Venue != nil {
		b.Venue = *req.Venue
	}
	if req.VenueAddress != nil {
		b.VenueAddress = req.VenueAddress
	}
	if req.Fee != nil {
		b.Fee = *req.Fee
	}
	if req.Notes != nil {
		b.Notes = req.Notes
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid status", nil)
		}
		b.Status = *req.Status
	}

	if err := s.repo.Update(ctx, b); err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to update booking", err)
	}
	return b, nil
}

func (s *bookingService) Delete(ctx context.Context, id uuid.UUID) error {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to delete booking", err)
	}

	if s.observer != nil {
		s.observer.BookingDeleted(ctx, b.UserID, id)
	}

	logger.Info("BookingService:Delete:Success", "id", id, "user_id", b.UserID)
	return nil
}

func (s *bookingService) CreateRecord(ctx context.Context, b *entity.Booking) (*entity.Booking, error) {
	return s.repo.Create(ctx, b)
}

func (s *bookingService) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func validStatus(status string) bool {
	switch status {
	case entity.StatusPending, entity.StatusConfirmed, entity.StatusCancelled:
		return true
	}
	return false
}
