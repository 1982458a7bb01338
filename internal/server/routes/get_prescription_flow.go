package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/flow"

	"github.com/labstack/echo/v4"
)

// GetPrescriptionFlowHandler builds the single-prescription flow. An
// unknown name yields an empty structure.
func GetPrescriptionFlowHandler(c echo.Context) error {
	type flowQuery struct {
		Mode string `query:"mode" validate:"omitempty,oneof=deep condensed"`
	}

	type flowResponse struct {
		Title     string             `json:"title"`
		Mode      string             `json:"mode"`
		Version   string             `json:"version"`
		Structure common.Structure   `json:"structure"`
		Sankey    flow.SankeyPayload `json:"sankey"`
	}

	data := new(flowQuery)
	if err := c.Bind(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid query")
	}
	if err := c.Validate(data); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Mode must be deep or condensed")
	}
	mode, err := flow.ParseMode(data.Mode)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	name := prescriptionParam(c)
	d, err := currentDataset(c)
	if err != nil {
		return datasetUnavailable(c, err)
	}
	analyzer, err := newAnalyzer(d, name, name)
	if err != nil {
		return analyzerFailed(c, err)
	}

	title := name + " Mechanism Flow"
	structure := analyzer.Single(name, mode)
	return c.JSON(http.StatusOK, flowResponse{
		Title:     title,
		Mode:      mode.String(),
		Version:   d.Version,
		Structure: structure,
		Sankey:    flow.Sankey(title, structure),
	})
}
