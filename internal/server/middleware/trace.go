package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/query"
)

// TraceMiddleware collects the atoms and relationships a request touched
// and logs them at debug level once the handler returns.
func TraceMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tr := query.NewQueryTrace()
			req := c.Request()
			c.SetRequest(req.WithContext(query.WithTrace(req.Context(), tr)))

			err := next(c)

			snap := tr.Snapshot()
			logger.Debug("[Server] Request trace",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", req.Method,
				"route", c.Path(),
				"queried_atoms", snap.QueriedAtomIDs,
				"queried_relationships", snap.QueriedRelationshipIDs,
				"queried_types", snap.QueriedAtomTypes,
				"considered", snap.ConsideredAtomIDs,
				"returned", snap.ReturnedAtomIDs,
				"search_paths", snap.SearchPaths,
			)
			return err
		}
	}
}
