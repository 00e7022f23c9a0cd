package router

import (
	"coach-sync-api/core/middleware"
	"coach-sync-api/modules/message/controller"

	"github.com/labstack/echo/v4"
)

type MessageRouter struct {
	controller *controller.MessageController
}

func NewMessageRouter(controller *controller.MessageController) *MessageRouter {
	return &MessageRouter{controller: controller}
}

func (r *MessageRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	group := e.Group("/private/messages", mw.AuthMiddleware())
	group.GET("", r.controller.GetThread)
}
