package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

const userKey = "user_id"

// requireUser rejects requests without a user id and stores it on the context
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := strings.TrimSpace(c.Request().Header.Get(UserHeader))
		if userID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
				"error":   "missing_user",
				"message": "X-User-ID header is required",
			})
		}
		c.Set(userKey, userID)
		return next(c)
	}
}

func userFrom(c echo.Context) string {
	id, _ := c.Get(userKey).(string)
	return id
}
