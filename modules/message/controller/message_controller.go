package controller

import (
	"coach-sync-api/core/controller"
	"coach-sync-api/core/errors"
	"coach-sync-api/modules/message/dto"
	"coach-sync-api/modules/message/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type MessageController struct {
	service *service.MessageService
	controller.BaseController
}

func NewMessageController(service *service.MessageService) *MessageController {
	return &MessageController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// GetThread lists the conversation with another user.
// GET /api/v1/private/messages?with=<user_id>&page=1&page_size=20
func (c *MessageController) GetThread(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	var q dto.ThreadQuery
	if err := ctx.Bind(&q); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid query")
	}
	if err := ctx.Validate(&q); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	otherID, err := uuid.Parse(q.With)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "with must be a user id")
	}

	items, err := c.service.GetThread(ctx.Request().Context(), userID, otherID, q.Page, q.PageSize)
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "Failed to load messages", err))
	}

	return c.SuccessResponse(ctx, dto.ThreadResponse{Items: items, Page: q.Page, PageSize: q.PageSize}, "Messages retrieved successfully")
}
