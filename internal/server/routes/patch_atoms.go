package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/pkg/common"
)

type patchAtomResponse struct {
	Message string       `json:"message"`
	Atom    *common.Atom `json:"atom,omitempty"`
}

func PatchThresholdHandler(c echo.Context) error {
	type patchThresholdData struct {
		ID        string `param:"id" validate:"required"`
		Threshold string `json:"threshold" validate:"required"`
	}

	data := new(patchThresholdData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	threshold, err := common.ParseKnowledgeThreshold(data.Threshold)
	if err != nil {
		return respondError(c, err)
	}

	ac := c.(*middleware.AppContext)
	atom, err := ac.App.Engine.SetThreshold(c.Request().Context(), data.ID, threshold, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, patchAtomResponse{Message: "Threshold updated", Atom: atom})
}

func PatchWhyItWorksHandler(c echo.Context) error {
	type patchWhyItWorksData struct {
		ID         string `param:"id" validate:"required"`
		WhyItWorks string `json:"why_it_works" validate:"required"`
	}

	data := new(patchWhyItWorksData)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ac := c.(*middleware.AppContext)
	atom, err := ac.App.Engine.SetWhyItWorks(c.Request().Context(), data.ID, data.WhyItWorks, ac.Level)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, patchAtomResponse{Message: "Why it works updated", Atom: atom})
}
