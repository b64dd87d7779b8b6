package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/query"
)

func SearchHandler(c echo.Context) error {
	type searchData struct {
		Query          string                        `json:"query" validate:"max=2000"`
		Limit          int                           `json:"limit" validate:"gte=0"`
		AtomTypes      []string                      `json:"atom_types"`
		Thresholds     []string                      `json:"thresholds"`
		Concerns       []string                      `json:"concerns"`
		TensorRanges   map[string]common.TensorRange `json:"tensor_ranges"`
		TensorTarget   map[string]float64            `json:"tensor_target"`
		SemanticWeight *float64                      `json:"semantic_weight"`
		TensorWeight   *float64                      `json:"tensor_weight"`
	}

	data := new(searchData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	req := query.SearchRequest{
		Query:          data.Query,
		Limit:          data.Limit,
		Concerns:       data.Concerns,
		SemanticWeight: data.SemanticWeight,
		TensorWeight:   data.TensorWeight,
	}
	for _, t := range data.AtomTypes {
		req.AtomTypes = append(req.AtomTypes, common.AtomType(t))
	}
	for _, t := range data.Thresholds {
		req.Thresholds = append(req.Thresholds, common.KnowledgeThreshold(t))
	}
	if len(data.TensorRanges) > 0 {
		req.TensorRanges = make(map[common.TensorDimension]common.TensorRange, len(data.TensorRanges))
		for name, r := range data.TensorRanges {
			d, err := common.ParseTensorDimension(name)
			if err != nil {
				return respondError(c, err)
			}
			req.TensorRanges[d] = r
		}
	}
	if len(data.TensorTarget) > 0 {
		req.TensorTarget = make(map[common.TensorDimension]float64, len(data.TensorTarget))
		for name, v := range data.TensorTarget {
			d, err := common.ParseTensorDimension(name)
			if err != nil {
				return respondError(c, err)
			}
			req.TensorTarget[d] = v
		}
	}

	ac := c.(*middleware.AppContext)
	resp, err := ac.App.Engine.Search(c.Request().Context(), req, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func CompatibilityHandler(c echo.Context) error {
	type compatibilityData struct {
		AtomIDs []string `json:"atom_ids" validate:"required,min=1,dive,required"`
	}

	data := new(compatibilityData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ac := c.(*middleware.AppContext)
	res, err := ac.App.Engine.Analyze(c.Request().Context(), data.AtomIDs, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
