package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
)

const (
	AccessLevelHeader = "X-Access-Level"
	AccessLevelClaim  = "access_level"
)

// AccessMiddleware resolves the caller's access level. With a token key
// configured it comes from the access_level claim of the bearer token,
// otherwise from the X-Access-Level header. Anonymous callers are public.
func AccessMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)

		raw := ""
		if ac.App.Key != nil {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader != "" {
				token, ok := strings.CutPrefix(authHeader, "Bearer ")
				if !ok {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				parsed, err := jwt.Parse(token, ac.App.Key)
				if err != nil || !parsed.Valid {
					logger.Debug("[Server] Rejected bearer token", "request_id", ac.RequestID, "err", err)
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				claims, ok := parsed.Claims.(jwt.MapClaims)
				if !ok {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				if claim, ok := claims[AccessLevelClaim].(string); ok {
					raw = claim
				}
			}
		} else {
			raw = c.Request().Header.Get(AccessLevelHeader)
		}

		if strings.TrimSpace(raw) == "" {
			ac.Level = common.AccessPublic
			return next(c)
		}
		level, err := common.ParseAccessLevel(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		ac.Level = level
		return next(c)
	}
}
