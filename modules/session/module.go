package session

import (
	"coach-sync-api/core/middleware"
	"coach-sync-api/modules/session/controller"
	"coach-sync-api/modules/session/repository"
	"coach-sync-api/modules/session/router"
	"coach-sync-api/modules/session/service"

	"github.com/labstack/echo/v4"
)

func Init(api *echo.Group, sessions repository.SessionRepository, queue service.SyncQueuer, reminders service.ReminderManager, mw *middleware.Middleware) *service.Hooks {
	hooks := service.NewHooks(sessions, queue, reminders)
	ctrl := controller.NewSessionController(hooks)
	router.NewSessionRouter(ctrl).Register(api, mw)
	return hooks
}
