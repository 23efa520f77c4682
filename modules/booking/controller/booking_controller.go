package controller

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	coreController "musobuddy/core/controller"
	"musobuddy/core/errors"
	"musobuddy/core/middleware"
	"musobuddy/modules/booking/dto"
	"musobuddy/modules/booking/service"
)

type BookingController struct {
	coreController.BaseController
	service service.BookingService
}

func NewBookingController(svc service.BookingService) *BookingController {
	return &BookingController{
		BaseController: coreController.NewBaseController(),
		service:        svc,
	}
}

// ListBookings returns all bookings for the current user
// GET /api/v1/private/bookings
func (c *BookingController) ListBookings(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	bookings, err := c.service.List(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, bookings, "Success")
}

// GetBooking returns one booking
// GET /api/v1/private/bookings/:id
func (c *BookingController) GetBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid booking id", err))
	}

	booking, err := c.service.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, booking, "Success")
}

// CreateBooking creates a booking
// POST /api/v1/private/bookings
func (c *BookingController) CreateBooking(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	var req dto.CreateBookingRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	booking, err := c.service.Create(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, booking, "Booking created")
}

// UpdateBooking applies a partial update
// PATCH /api/v1/private/bookings/:id
func (c *BookingController) UpdateBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid booking id", err))
	}

	var req dto.UpdateBookingRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	booking, err := c.service.Update(ctx.Request().Context(), id, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, booking, "Booking updated")
}

// DeleteBooking deletes a booking
// DELETE /api/v1/private/bookings/:id
func (c *BookingController) DeleteBooking(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid booking id", err))
	}

	if err := c.service.Delete(ctx.Request().Context(), id); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Booking deleted")
}
