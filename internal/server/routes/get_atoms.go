package routes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/pkg/graph"
	"github.com/jade-labs/atomgraph/pkg/query"
)

// DefaultNavigateDepth is used when the depth query parameter is absent.
const DefaultNavigateDepth = 3

// DefaultSimilarLimit is used when the limit query parameter is absent.
const DefaultSimilarLimit = 10

func GetAtomHandler(c echo.Context) error {
	type getAtomData struct {
		ID string `param:"id" validate:"required"`
	}

	data := new(getAtomData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request params")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request params")
	}

	ac := c.(*middleware.AppContext)
	details, err := ac.App.Engine.AtomDetails(c.Request().Context(), data.ID, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func NavigateHandler(c echo.Context) error {
	type navigateResponse struct {
		Nodes []graph.Node `json:"nodes"`
	}

	direction := ""
	depth := DefaultNavigateDepth
	err := echo.QueryParamsBinder(c).
		String("direction", &direction).
		Int("depth", &depth).
		BindError()
	if err != nil {
		return badRequest(c, "Invalid query params")
	}
	dir, err := graph.ParseDirection(direction)
	if err != nil {
		return respondError(c, err)
	}

	ac := c.(*middleware.AppContext)
	nodes, err := ac.App.Engine.Navigate(c.Request().Context(), c.Param("id"), dir, depth, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, navigateResponse{Nodes: nodes})
}

func FindPathHandler(c echo.Context) error {
	type findPathData struct {
		ID     string `param:"id" validate:"required"`
		Target string `param:"target" validate:"required"`
	}

	type findPathResponse struct {
		Found bool             `json:"found"`
		Path  []graph.PathStep `json:"path"`
	}

	data := new(findPathData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request params")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request params")
	}

	ac := c.(*middleware.AppContext)
	path, err := ac.App.Engine.FindPath(c.Request().Context(), data.ID, data.Target, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	if path == nil {
		path = []graph.PathStep{}
	}
	return c.JSON(http.StatusOK, findPathResponse{Found: len(path) > 0, Path: path})
}

func ExplainHandler(c echo.Context) error {
	ac := c.(*middleware.AppContext)
	target := strings.TrimSpace(c.QueryParam("target"))

	exp, err := ac.App.Engine.Explain(c.Request().Context(), c.Param("id"), target, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

func SimilarHandler(c echo.Context) error {
	type similarResponse struct {
		Results []query.SearchResult `json:"results"`
	}

	limit := DefaultSimilarLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return badRequest(c, "Invalid query params")
	}

	ac := c.(*middleware.AppContext)
	results, err := ac.App.Engine.FindSimilarByTensor(c.Request().Context(), c.Param("id"), limit, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	if results == nil {
		results = []query.SearchResult{}
	}
	return c.JSON(http.StatusOK, similarResponse{Results: results})
}

func CheckParameterHandler(c echo.Context) error {
	raw := c.QueryParam("value")
	if raw == "" {
		return badRequest(c, "Missing value")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return badRequest(c, "Invalid value")
	}

	ac := c.(*middleware.AppContext)
	check, err := ac.App.Engine.CheckParameter(c.Request().Context(), c.Param("id"), c.Param("name"), value, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, check)
}
