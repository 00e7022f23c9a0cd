package middleware

import (
	"strings"

	"coach-sync-api/core/constants"
	"coach-sync-api/core/controller"
	"coach-sync-api/core/errors"
	"coach-sync-api/core/logger"
	"coach-sync-api/core/utils"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	controller.BaseController
}

func NewMiddleware() *Middleware {
	return &Middleware{BaseController: controller.NewBaseController()}
}

// AuthMiddleware validates the bearer token and stores the caller's id under "user_id".
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return m.Unauthorized(errors.ErrMissingAuthorizationHeader, "Missing authorization header")
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return m.Unauthorized(errors.ErrInvalidTokenFormat, "Invalid authorization header format")
			}

			data, err := utils.ValidateAndParseToken(token)
			if err != nil {
				logger.Warn("Middleware:Auth:InvalidToken", "path", c.Path(), "error", err)
				return m.Unauthorized(errors.ErrUnauthorized, "Invalid or expired token")
			}

			c.Set(constants.ContextKeyUserID, data.UserID)
			return next(c)
		}
	}
}
