package middleware

import (
	"context"

	"github.com/OFFIS-RIT/herbflow/backend/internal/queue"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Datasets is the dataset cache as seen by the handlers.
type Datasets interface {
	Get(ctx context.Context) (*common.Dataset, error)
	Reload(ctx context.Context) (*common.Dataset, error)
	Peek() (*common.Dataset, bool)
}

// KeySource resolves the verification key of a JWT. keyfunc.Keyfunc
// implements it.
type KeySource interface {
	Keyfunc(token *jwt.Token) (any, error)
}

// App holds the process-wide dependencies. Queue and Key are nil when no
// broker or identity provider is configured.
type App struct {
	Datasets       Datasets
	Queue          queue.Publisher
	Key            KeySource
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
