package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetPrescriptionsHandler lists the distinct prescription names, sorted.
func GetPrescriptionsHandler(c echo.Context) error {
	d, err := currentDataset(c)
	if err != nil {
		return datasetUnavailable(c, err)
	}

	return c.JSON(http.StatusOK, map[string][]string{
		"prescriptions": d.Prescriptions(),
	})
}
