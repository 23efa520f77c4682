package booking

import (
	"github.com/labstack/echo/v4"

	"musobuddy/core/cache"
	"musobuddy/core/database"
	"musobuddy/core/middleware"
	"musobuddy/modules/booking/controller"
	"musobuddy/modules/booking/repository"
	"musobuddy/modules/booking/router"
	"musobuddy/modules/booking/service"
)

// Init wires the booking module and returns its service so the calendar
// sync module can consume it as the booking collaborator.
func Init(e *echo.Echo, db database.IDatabase, c cache.Cache) service.BookingService {
	repo := repository.NewBookingRepository(db)
	svc := service.NewBookingService(repo)
	ctrl := controller.NewBookingController(svc)

	mw := middleware.NewMiddleware(c)
	router.NewBookingRouter(ctrl).Setup(e, mw)

	return svc
}
