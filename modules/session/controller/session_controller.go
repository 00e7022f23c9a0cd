package controller

import (
	"coach-sync-api/core/controller"
	"coach-sync-api/core/errors"
	"coach-sync-api/modules/session/dto"
	"coach-sync-api/modules/session/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SessionController struct {
	hooks *service.Hooks
	controller.BaseController
}

func NewSessionController(hooks *service.Hooks) *SessionController {
	return &SessionController{
		hooks:          hooks,
		BaseController: controller.NewBaseController(),
	}
}

// Sync notifies the calendar and reminder pipelines about a session change.
// POST /api/v1/private/sessions/:id/sync
func (c *SessionController) Sync(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	sessionID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid session id")
	}

	var req dto.SyncSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return c.ErrorResponse(ctx, err)
	}

	res, err := c.hooks.Dispatch(ctx.Request().Context(), userID, sessionID, req.Event)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, res, "Session sync queued")
}
