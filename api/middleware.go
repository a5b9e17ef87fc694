package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const userIDContextKey = "userID"

// requireAuth rejects requests without a valid token.
func requireAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authenticate(auth, c.Request())
			if err != nil {
				setErrorStage(c, "auth")
				return writeError(c, http.StatusUnauthorized, msgUnauthorized)
			}
			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

func authenticate(auth Authenticator, r *http.Request) (string, error) {
	token, err := requestToken(r)
	if err != nil {
		return "", err
	}
	return auth.UserIDFromToken(token)
}

// UserID returns the authenticated user for the request, if any.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}
