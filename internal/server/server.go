package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/internal/queue"
	mid "github.com/OFFIS-RIT/herbflow/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/herbflow/backend/internal/storage"
	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New creates the echo instance with middlewares and routes bound to app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)
	return e
}

// invalidateOnRefresh drops the cached dataset unless it already has the
// announced version.
func invalidateOnRefresh(cache *store.DatasetCache) func(queue.RefreshMsg) {
	return func(msg queue.RefreshMsg) {
		if current, ok := cache.Peek(); ok && msg.Version != "" && current.Version == msg.Version {
			logger.Debug("[Server] Refresh already applied", "version", msg.Version)
			return
		}
		logger.Info("[Server] Refresh event received", "id", msg.ID, "reason", msg.Reason)
		cache.Invalidate()
	}
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := storage.OpenSource(ctx)
	if err != nil {
		logger.Fatal("Failed to configure data source", "err", err)
	}
	defer src.Close()

	cache, err := store.NewDatasetCache(store.NewDatasetCacheParams{
		Source:      src.Source,
		TTL:         util.GetEnvDuration("CACHE_TTL", store.DefaultTTL),
		LoadTimeout: util.GetEnvDuration("CACHE_LOAD_TIMEOUT", store.DefaultLoadTimeout),
	})
	if err != nil {
		logger.Fatal("Failed to create dataset cache", "err", err)
	}

	app := &mid.App{
		Datasets:       cache,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   int64(util.GetEnvInt("MASTER_USER_ID", 0)),
		MasterUserRole: util.GetEnvString("MASTER_USER_ROLE", "admin"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = k
	}

	if queue.Enabled() {
		que := queue.Init()
		defer que.Close()

		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupRefreshExchange(ch); err != nil {
			logger.Fatal("Failed to set up refresh exchange", "err", err)
		}
		app.Queue = ch

		consumerCh, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open consumer channel", "err", err)
		}
		defer consumerCh.Close()
		go func() {
			if err := queue.ConsumeRefresh(ctx, consumerCh, invalidateOnRefresh(cache)); err != nil {
				logger.Error("Refresh consumer stopped", "err", err)
			}
		}()
	}

	// Warm the cache.
	go func() {
		if _, err := cache.Get(ctx); err != nil {
			logger.Warn("Initial dataset load failed", "err", err)
		}
	}()

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
