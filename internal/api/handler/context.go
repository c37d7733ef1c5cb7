package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxIdentity extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - every caller needs a user_id; a token without one cannot be billed.
func ctxIdentity(c echo.Context) (userID, role string, err error) {
	role, _ = c.Get("role").(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	userID, _ = c.Get("user_id").(string)
	if userID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token missing user identity")
	}

	return userID, role, nil
}
