package message

import (
	"coach-sync-api/core/database"
	"coach-sync-api/core/middleware"
	"coach-sync-api/modules/message/controller"
	"coach-sync-api/modules/message/repository"
	"coach-sync-api/modules/message/router"
	"coach-sync-api/modules/message/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db database.IDatabase, mw *middleware.Middleware) *service.MessageService {
	repo := repository.NewMessageRepository(db)
	svc := service.NewMessageService(repo)
	ctrl := controller.NewMessageController(svc)

	router.NewMessageRouter(ctrl).Register(e, mw)

	return svc
}
