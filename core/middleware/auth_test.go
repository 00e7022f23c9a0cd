package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/constants"
	"coach-sync-api/core/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	config.Set(&config.Config{JWT: config.JWTConfig{Secret: "test-secret"}})

	e := echo.New()
	handler := NewMiddleware().AuthMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(constants.ContextKeyUserID).(uuid.UUID).String())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		err := handler(e.NewContext(req, httptest.NewRecorder()))
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		userID := uuid.New()
		token, err := utils.GenerateToken(userID, "coach", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		require.NoError(t, handler(e.NewContext(req, rec)))
		require.Equal(t, userID.String(), rec.Body.String())
	})
}
