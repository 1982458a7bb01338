package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/flow"

	"github.com/labstack/echo/v4"
)

// GetPrescriptionMechanismsHandler returns the per-herb mechanism table and
// the clinical scripts of one prescription.
func GetPrescriptionMechanismsHandler(c echo.Context) error {
	type mechanismsResponse struct {
		Prescription string                `json:"prescription"`
		Herbs        []flow.HerbMechanisms `json:"herbs"`
		Scripts      []common.ScriptRecord `json:"scripts"`
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

	return c.JSON(http.StatusOK, mechanismsResponse{
		Prescription: name,
		Herbs:        analyzer.Mechanisms(name),
		Scripts:      d.ScriptsFor(name),
	})
}
