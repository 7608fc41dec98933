package routes

import (
	"net/http"

	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/internal/storage"
	"github.com/entlink/entlink/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetGraphHandler fetches a stored graph artifact by its ID.
func GetGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getGraphResponse struct {
		Message    string                    `json:"message"`
		Graph      *common.Graph             `json:"graph,omitempty"`
		Unresolved []common.UnresolvedTriple `json:"unresolved,omitempty"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request params",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	s3Client := c.(*middleware.AppContext).App.S3

	graph, unresolved, err := storage.GetGraph(ctx, s3Client, params.ID)
	if err != nil {
		return c.JSON(http.StatusNotFound, getGraphResponse{
			Message: "Graph not found",
		})
	}

	return c.JSON(http.StatusOK, getGraphResponse{
		Message:    "Graph found",
		Graph:      graph,
		Unresolved: unresolved,
	})
}
