package router

import (
	"github.com/labstack/echo/v4"

	"musobuddy/core/middleware"
	"musobuddy/modules/booking/controller"
)

type BookingRouter struct {
	controller *controller.BookingController
}

func NewBookingRouter(controller *controller.BookingController) *BookingRouter {
	return &BookingRouter{controller: controller}
}

func (r *BookingRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	bookingRoutes := v1.Group("/private/bookings")
	bookingRoutes.Use(mw.AuthMiddleware())

	bookingRoutes.GET("", r.controller.ListBookings)
	bookingRoutes.POST("", r.controller.CreateBooking)
	bookingRoutes.GET("/:id", r.controller.GetBooking)
	bookingRoutes.PATCH("/:id", r.controller.UpdateBooking)
	bookingRoutes.DELETE("/:id", r.controller.DeleteBooking)
}
