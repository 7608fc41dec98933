package routes

import (
	"net/http"

	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/internal/storage"
	"github.com/entlink/entlink/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteGraphHandler removes a stored graph artifact.
func DeleteGraphHandler(c echo.Context) error {
	type deleteGraphParams struct {
		ID string `param:"id" validate:"required"`
	}

	type deleteGraphResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteGraphResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteGraphResponse{
			Message: "Invalid request params",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3

	if err := storage.DeleteGraph(ctx, s3Client, params.ID); err != nil {
		logger.Error("Failed to delete graph", "id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteGraphResponse{
		Message: "Graph deleted",
	})
}
