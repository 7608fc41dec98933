package middleware

import (
	"github.com/entlink/entlink/pkg/cache"
	"github.com/entlink/entlink/pkg/extract"
	"github.com/entlink/entlink/pkg/resolve"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App carries the shared service dependencies every handler needs.
type App struct {
	Resolve        *resolve.Client
	Cache          cache.Store
	Extractor      extract.Extractor
	Queue          *amqp091.Channel
	Key            *keyfunc.Keyfunc
	S3             *s3.Client
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware wraps every request context with the shared App.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
