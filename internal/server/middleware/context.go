package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"mosaic/internal/storage"
	"mosaic/pkg/ai"
	"mosaic/pkg/graph"
	"mosaic/pkg/pipeline"
	"mosaic/pkg/projection"
	"mosaic/pkg/store"
)

// AppUser is the authenticated caller.
type AppUser struct {
	UserID string
}

// App bundles every shared dependency the route handlers need.
type App struct {
	Store      store.Storage
	Queue      *amqp091.Channel
	Key        *keyfunc.Keyfunc
	Files      *storage.FileStore
	AIClient   ai.NoteAIClient
	Runner     *pipeline.Runner
	Graph      *graph.Engine
	Projection *projection.Engine

	MasterAPIKey string
	MasterUserID string
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
