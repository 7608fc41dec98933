package routes

import (
	"net/http"
	"slices"

	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InvalidateCacheHandler drops every cache entry of one source.
func InvalidateCacheHandler(c echo.Context) error {
	type invalidateParams struct {
		Source string `param:"source" validate:"required"`
	}

	type invalidateResponse struct {
		Message string `json:"message"`
	}

	params := new(invalidateParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, invalidateResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, invalidateResponse{
			Message: "Invalid request params",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	app := c.(*middleware.AppContext).App
	if !slices.Contains(app.Resolve.SourceNames(), params.Source) {
		return c.JSON(http.StatusNotFound, invalidateResponse{
			Message: "Unknown source",
		})
	}

	ctx := c.Request().Context()
	if err := app.Cache.Invalidate(ctx, params.Source); err != nil {
		logger.Error("Failed to invalidate cache", "source", params.Source, "err", err)
		return c.JSON(http.StatusInternalServerError, invalidateResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, invalidateResponse{
		Message: "Cache invalidated",
	})
}
