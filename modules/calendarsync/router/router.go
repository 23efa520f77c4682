package router

import (
	"github.com/labstack/echo/v4"

	"musobuddy/core/middleware"
	"musobuddy/modules/calendarsync/controller"
)

type SyncRouter struct {
	controller *controller.SyncController
}

func NewSyncRouter(controller *controller.SyncController) *SyncRouter {
	return &SyncRouter{controller: controller}
}

func (r *SyncRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Google reaches these directly; no session middleware.
	public := v1.Group("/public/calendar/google")
	public.GET("/connect", r.controller.Connect)
	public.GET("/callback", r.controller.Callback)
	public.POST("/webhook", r.controller.Webhook)

	private := v1.Group("/private/calendar")
	private.Use(mw.AuthMiddleware())
	private.GET("/status", r.controller.Status)
	private.PATCH("/settings", r.controller.UpdateSettings)
	private.POST("/sync", r.controller.TriggerSync)
	private.DELETE("/disconnect", r.controller.Disconnect)
}
