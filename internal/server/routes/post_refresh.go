package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/herbflow/backend/internal/queue"
	"github.com/OFFIS-RIT/herbflow/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostRefreshHandler reloads the dataset now and, when a broker is
// configured, tells the other replicas to drop their cache.
func PostRefreshHandler(c echo.Context) error {
	type refreshResponse struct {
		Version   string `json:"version"`
		LoadID    string `json:"load_id"`
		Changed   bool   `json:"changed"`
		Published bool   `json:"published"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User

	prev, _ := app.Datasets.Peek()
	d, err := app.Datasets.Reload(ctx)
	if err != nil {
		logger.Error("[Server] Manual refresh failed", "err", err)
		return errorJSON(c, http.StatusBadGateway, "Failed to reload dataset: "+err.Error())
	}
	changed := prev == nil || prev.Version != d.Version

	published := false
	if app.Queue != nil {
		msg, err := queue.NewRefreshMsg(d.Version, "manual")
		if err == nil {
			err = queue.PublishRefresh(ctx, app.Queue, msg)
		}
		if err != nil {
			logger.Error("[Server] Failed to publish refresh", "err", err)
		} else {
			published = true
		}
	}

	logger.Info("[Server] Dataset refreshed", "user_id", user.UserID, "version", d.Version, "changed", changed)
	return c.JSON(http.StatusOK, refreshResponse{
		Version:   d.Version,
		LoadID:    d.LoadID,
		Changed:   changed,
		Published: published,
	})
}
