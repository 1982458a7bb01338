package routes

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetDatasetHandler describes the currently served dataset.
func GetDatasetHandler(c echo.Context) error {
	type table struct {
		Name    string   `json:"name"`
		Columns []string `json:"columns"`
		Rows    int      `json:"rows"`
	}

	type datasetResponse struct {
		Version       string    `json:"version"`
		LoadID        string    `json:"load_id"`
		LoadedAt      time.Time `json:"loaded_at"`
		Topology      string    `json:"topology"`
		Prescriptions int       `json:"prescriptions"`
		Tables        []table   `json:"tables"`
	}

	d, err := currentDataset(c)
	if err != nil {
		return datasetUnavailable(c, err)
	}

	tables := []table{
		{Name: d.Allocations.Name, Columns: d.Allocations.Columns, Rows: len(d.Allocations.Rows)},
		{Name: d.Herbs.Name, Columns: d.Herbs.Columns, Rows: len(d.Herbs.Rows)},
	}
	if d.Pathology != nil {
		tables = append(tables, table{Name: d.Pathology.Name, Columns: d.Pathology.Columns, Rows: len(d.Pathology.Rows)})
	}
	tables = append(tables, table{Name: common.TableScripts, Columns: d.Scripts.Columns, Rows: len(d.Scripts.Rows)})

	return c.JSON(http.StatusOK, datasetResponse{
		Version:       d.Version,
		LoadID:        d.LoadID,
		LoadedAt:      d.LoadedAt,
		Topology:      d.Topology(),
		Prescriptions: len(d.Prescriptions()),
		Tables:        tables,
	})
}
