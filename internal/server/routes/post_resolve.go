package routes

import (
	"errors"
	"net/http"

	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/logger"
	"github.com/entlink/entlink/pkg/resolve"

	"github.com/labstack/echo/v4"
)

// ResolveBatchHandler resolves a batch of mentions synchronously against the
// configured sources and returns the merged per-source records.
func ResolveBatchHandler(c echo.Context) error {
	type resolveRequest struct {
		Mentions []string `json:"mentions" validate:"required,min=1,dive,required"`
		Sources  []string `json:"sources"`
	}

	type resolveResponse struct {
		Message string                          `json:"message"`
		Results map[string]*common.MergedRecord `json:"results,omitempty"`
	}

	data := new(resolveRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, resolveResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, resolveResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	client := c.(*middleware.AppContext).App.Resolve

	results, err := client.ResolveBatch(ctx, data.Mentions, resolve.BatchOptions{
		Sources: data.Sources,
	})
	if err != nil {
		if errors.Is(err, resolve.ErrNoSources) {
			return c.JSON(http.StatusBadRequest, resolveResponse{
				Message: "No sources available",
			})
		}
		logger.Error("Failed to resolve batch", "err", err)
		return c.JSON(http.StatusBadRequest, resolveResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, resolveResponse{
		Message: "Batch resolved",
		Results: results,
	})
}
