package routes

import (
	"fmt"
	"net/http"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/flow"

	"github.com/labstack/echo/v4"
)

type pairQuery struct {
	A string `query:"a" validate:"required"`
	B string `query:"b" validate:"required"`
}

// GetCompareHandler builds the comparison flow of two prescriptions.
func GetCompareHandler(c echo.Context) error {
	type compareQuery struct {
		A      string `query:"a" validate:"required"`
		B      string `query:"b" validate:"required"`
		Levels string `query:"levels"`
	}

	type compareResponse struct {
		Title     string             `json:"title"`
		Version   string             `json:"version"`
		Structure common.Structure   `json:"structure"`
		Sankey    flow.SankeyPayload `json:"sankey"`
		Insights  common.Insights    `json:"insights"`
	}

	data := new(compareQuery)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid query")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Parameters a and b are required")
	}
	levels, err := parseLevels(data.Levels)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	d, err := currentDataset(c)
	if err != nil {
		return datasetUnavailable(c, err)
	}
	analyzer, err := newAnalyzer(d, data.A, data.B)
	if err != nil {
		return analyzerFailed(c, err)
	}

	title := fmt.Sprintf("%s vs %s Comparison", data.A, data.B)
	structure := analyzer.Comparison(levels...)
	return c.JSON(http.StatusOK, compareResponse{
		Title:     title,
		Version:   d.Version,
		Structure: structure,
		Sankey:    flow.Sankey(title, structure),
		Insights:  analyzer.CommonInsights(),
	})
}

// GetInsightsHandler returns the targets and actions two prescriptions share.
func GetInsightsHandler(c echo.Context) error {
	data := new(pairQuery)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid query")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Parameters a and b are required")
	}

	d, err := currentDataset(c)
	if err != nil {
		return datasetUnavailable(c, err)
	}
	analyzer, err := newAnalyzer(d, data.A, data.B)
	if err != nil {
		return analyzerFailed(c, err)
	}

	return c.JSON(http.StatusOK, analyzer.CommonInsights())
}
