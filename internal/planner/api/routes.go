package api

import "github.com/labstack/echo/v4"

func registerRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", Health)

	api := e.Group("/api")

	meta := api.Group("/meta")
	meta.GET("/gameversions", h.GameVersions)
	meta.GET("/regions", h.Regions)

	api.GET("/realms", h.Realms)
	api.GET("/professions", h.Professions)
	api.GET("/recipes", h.Recipes)

	api.POST("/plan", h.Plan)

	api.GET("/prices", h.Prices)
	api.POST("/prices/upload", h.UploadSnapshot)

	api.GET("/exclusions", h.GetExclusions)
	api.PUT("/exclusions", h.PutExclusions)

	api.GET("/owned", h.GetOwned)
	api.PUT("/owned", h.PutOwned)
}
