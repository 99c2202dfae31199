// Package api exposes the planner over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ahplanner/planner-server/internal/planner/config"
	"github.com/ahplanner/planner-server/internal/planner/db"
	"github.com/ahplanner/planner-server/internal/planner/engine"
)

// Stores bundles the database stores the handlers read and write.
type Stores struct {
	Recipes *db.RecipeStore
	Items   *db.ItemStore
	Prices  *db.PriceStore
	Realms  *db.RealmStore
	Owned   *db.OwnedStore
}

// NewStores creates the store bundle over one database.
func NewStores(database *db.DB) Stores {
	return Stores{
		Recipes: db.NewRecipeStore(database),
		Items:   db.NewItemStore(database),
		Prices:  db.NewPriceStore(database),
		Realms:  db.NewRealmStore(database),
		Owned:   db.NewOwnedStore(database),
	}
}

// New assembles the Echo HTTP server with routes and dependencies.
func New(cfg config.Config, logger *slog.Logger, planEngine *engine.Engine, stores Stores) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	handler := &Handler{
		engine:           planEngine,
		stores:           stores,
		defaultPriceMode: cfg.Planner.DefaultPriceMode,
	}

	registerRoutes(e, handler)

	return e
}

// NewHTTPServer creates a net/http server with the configured timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}
