package routes

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/OFFIS-RIT/herbflow/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/flow"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// currentDataset returns the cached dataset, loading it on first use.
func currentDataset(c echo.Context) (*common.Dataset, error) {
	app := c.(*middleware.AppContext).App
	d, err := app.Datasets.Get(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Dataset unavailable", "err", err)
		return nil, err
	}
	return d, nil
}

func datasetUnavailable(c echo.Context, err error) error {
	return errorJSON(c, http.StatusServiceUnavailable, "Dataset unavailable: "+err.Error())
}

func newAnalyzer(d *common.Dataset, a, b string) (*flow.Analyzer, error) {
	return flow.NewAnalyzer(flow.NewAnalyzerParams{
		Dataset:       d,
		PrescriptionA: a,
		PrescriptionB: b,
	})
}

// analyzerFailed maps schema problems to 422.
func analyzerFailed(c echo.Context, err error) error {
	if errors.Is(err, common.ErrMissingColumn) {
		return errorJSON(c, http.StatusUnprocessableEntity, err.Error())
	}
	return errorJSON(c, http.StatusInternalServerError, err.Error())
}

// parseLevels reads a comma separated level list. Empty means the default.
func parseLevels(raw string) ([]common.Level, error) {
	var levels []common.Level
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		l, err := common.ParseLevel(part)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// prescriptionParam returns the unescaped :name path parameter.
func prescriptionParam(c echo.Context) string {
	raw := c.Param("name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
