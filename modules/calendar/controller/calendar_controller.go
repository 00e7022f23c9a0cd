package controller

import (
	"net/http"
	"net/url"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/controller"
	"coach-sync-api/core/errors"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/dto"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	connections    *service.ConnectionService
	reconciliation *service.ReconciliationService
	controller.BaseController
}

func NewCalendarController(connections *service.ConnectionService, reconciliation *service.ReconciliationService) *CalendarController {
	return &CalendarController{
		connections:    connections,
		reconciliation: reconciliation,
		BaseController: controller.NewBaseController(),
	}
}

func (c *CalendarController) connectionID(ctx echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, c.BadRequest(errors.ErrInvalidInput, "Invalid connection id")
	}
	return id, nil
}

// Connect returns the provider consent URL.
// GET /api/v1/private/calendar/:provider/connect
func (c *CalendarController) Connect(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	name := ctx.Param("provider")
	if !provider.IsSupported(name) {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid provider")
	}

	authURL, err := c.connections.GetAuthURL(ctx.Request().Context(), userID, name)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.OAuthURLResponse{URL: authURL}, "Authorization URL created")
}

// Callback finishes the OAuth flow and redirects to the frontend.
// GET /api/v1/public/calendar/:provider/callback?code=...&state=...
func (c *CalendarController) Callback(ctx echo.Context) error {
	name := ctx.Param("provider")
	code := ctx.QueryParam("code")
	state := ctx.QueryParam("state")

	if oauthErr := ctx.QueryParam("error"); oauthErr != "" {
		logger.Warn("CalendarController:Callback:Denied", "provider", name, "error", oauthErr)
		return c.redirect(ctx, name, "denied")
	}
	if code == "" || state == "" {
		return c.BadRequest(errors.ErrInvalidInput, "code and state are required")
	}

	if _, err := c.connections.HandleCallback(ctx.Request().Context(), name, code, state); err != nil {
		logger.Error("CalendarController:Callback:Error", "provider", name, "error", err)
		return c.redirect(ctx, name, "error")
	}
	return c.redirect(ctx, name, "connected")
}

func (c *CalendarController) redirect(ctx echo.Context, providerName, status string) error {
	cfg, ok := config.GetSafe()
	if !ok || cfg.Server.FrontendURL == "" {
		return ctx.JSON(http.StatusOK, map[string]string{"provider": providerName, "status": status})
	}
	q := url.Values{}
	q.Set("provider", providerName)
	q.Set("status", status)
	return ctx.Redirect(http.StatusFound, cfg.Server.FrontendURL+"/settings/calendar?"+q.Encode())
}

// GetConnections lists the caller's connections.
// GET /api/v1/private/calendar/connections
func (c *CalendarController) GetConnections(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	conns, err := c.connections.ListConnections(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ConnectionListResponse{Connections: conns}, "Connections retrieved successfully")
}

// UpdateSettings PUT /api/v1/private/calendar/connections/:id/settings
func (c *CalendarController) UpdateSettings(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	id, err := c.connectionID(ctx)
	if err != nil {
		return err
	}
	var req dto.UpdateSettingsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return c.ErrorResponse(ctx, err)
	}

	res, err := c.connections.UpdateSettings(ctx.Request().Context(), userID, id, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, res, "Settings updated successfully")
}

// Disconnect DELETE /api/v1/private/calendar/connections/:id
func (c *CalendarController) Disconnect(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	id, err := c.connectionID(ctx)
	if err != nil {
		return err
	}
	if err := c.connections.Disconnect(ctx.Request().Context(), userID, id); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Disconnected successfully")
}

// FullSync POST /api/v1/private/calendar/connections/:id/full-sync
func (c *CalendarController) FullSync(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	id, err := c.connectionID(ctx)
	if err != nil {
		return err
	}
	jobID, err := c.connections.TriggerFullSync(ctx.Request().Context(), userID, id)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	res := dto.FullSyncResponse{}
	if jobID != nil {
		s := jobID.String()
		res.JobID = &s
	}
	return c.SuccessResponse(ctx, res, "Full sync queued")
}

// GetEvents GET /api/v1/private/calendar/connections/:id/events?start_time=...&end_time=...
func (c *CalendarController) GetEvents(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	id, err := c.connectionID(ctx)
	if err != nil {
		return err
	}

	start, err := time.Parse(time.RFC3339, ctx.QueryParam("start_time"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid start_time format")
	}
	end, err := time.Parse(time.RFC3339, ctx.QueryParam("end_time"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid end_time format")
	}

	events, err := c.connections.GetEvents(ctx.Request().Context(), userID, id, start, end)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, events, "Events retrieved successfully")
}

// CleanupDuplicates removes duplicate events for one session or for all of the caller's sessions.
// POST /api/v1/private/calendar/cleanup-duplicates
func (c *CalendarController) CleanupDuplicates(ctx echo.Context) error {
	userID, err := c.CurrentUserID(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	var req dto.CleanupDuplicatesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return c.ErrorResponse(ctx, err)
	}

	var result *service.CleanupResult
	if req.SessionID != nil && *req.SessionID != "" {
		sessionID, err := uuid.Parse(*req.SessionID)
		if err != nil {
			return c.BadRequest(errors.ErrInvalidInput, "Invalid session_id")
		}
		result, err = c.reconciliation.CleanupDuplicateEvents(ctx.Request().Context(), sessionID)
		if err != nil {
			return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "Cleanup failed", err))
		}
	} else {
		result, err = c.reconciliation.CleanupAllDuplicateEvents(ctx.Request().Context(), userID)
		if err != nil {
			return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "Cleanup failed", err))
		}
	}
	return c.SuccessResponse(ctx, result, "Duplicate cleanup finished")
}
