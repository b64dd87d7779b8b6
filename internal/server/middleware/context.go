package middleware

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/engine"
)

// App holds the process-wide dependencies handlers need.
type App struct {
	Engine *engine.Engine
	// Key verifies bearer tokens. When nil the access level is taken
	// from the X-Access-Level header.
	Key jwt.Keyfunc
}

type AppContext struct {
	echo.Context
	App       *App
	Level     common.AccessLevel
	RequestID string
}

// AppContextMiddleware wraps every request in an AppContext and assigns
// it a request id, reusing a well-formed incoming X-Request-ID.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := util.RequestID(c.Request().Header.Get(echo.HeaderXRequestID))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			cc := &AppContext{Context: c, App: app, Level: common.AccessPublic, RequestID: id}
			return next(cc)
		}
	}
}
