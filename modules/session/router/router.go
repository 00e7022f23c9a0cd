package router

import (
	"coach-sync-api/core/middleware"
	"coach-sync-api/modules/session/controller"

	"github.com/labstack/echo/v4"
)

type SessionRouter struct {
	controller *controller.SessionController
}

func NewSessionRouter(controller *controller.SessionController) *SessionRouter {
	return &SessionRouter{controller: controller}
}

func (r *SessionRouter) Register(api *echo.Group, mw *middleware.Middleware) {
	sessions := api.Group("/private/sessions", mw.AuthMiddleware())
	sessions.POST("/:id/sync", r.controller.Sync)
}
