package router

import (
	"coach-sync-api/core/middleware"
	"coach-sync-api/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	controller *controller.CalendarController
}

func NewCalendarRouter(controller *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{
		controller: controller,
	}
}

func (r *CalendarRouter) Register(api *echo.Group, mw *middleware.Middleware) {
	// Provider redirects land here without a bearer token
	public := api.Group("/public/calendar")
	public.GET("/:provider/callback", r.controller.Callback)

	private := api.Group("/private/calendar")
	private.Use(mw.AuthMiddleware())

	private.GET("/:provider/connect", r.controller.Connect)

	private.GET("/connections", r.controller.GetConnections)
	private.PUT("/connections/:id/settings", r.controller.UpdateSettings)
	private.DELETE("/connections/:id", r.controller.Disconnect)
	private.POST("/connections/:id/full-sync", r.controller.FullSync)
	private.GET("/connections/:id/events", r.controller.GetEvents)

	private.POST("/cleanup-duplicates", r.controller.CleanupDuplicates)
}
