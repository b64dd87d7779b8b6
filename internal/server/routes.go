package server

import (
	"net/http"

	"github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AccessMiddleware)

	// Atom reads
	apiRoutes.GET("/atoms/:id", routes.GetAtomHandler)
	apiRoutes.GET("/atoms/:id/navigate", routes.NavigateHandler)
	apiRoutes.GET("/atoms/:id/path/:target", routes.FindPathHandler)
	apiRoutes.GET("/atoms/:id/explain", routes.ExplainHandler)
	apiRoutes.GET("/atoms/:id/similar", routes.SimilarHandler)
	apiRoutes.GET("/atoms/:id/parameters/:name/check", routes.CheckParameterHandler)

	// Atom writes
	apiRoutes.PATCH("/atoms/:id/threshold", routes.PatchThresholdHandler)
	apiRoutes.PATCH("/atoms/:id/why-it-works", routes.PatchWhyItWorksHandler)

	apiRoutes.POST("/search", routes.SearchHandler)
	apiRoutes.POST("/compatibility", routes.CompatibilityHandler)
}
