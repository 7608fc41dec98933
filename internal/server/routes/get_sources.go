package routes

import (
	"net/http"

	"github.com/entlink/entlink/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetSourcesHandler lists the configured sources in preference order.
func GetSourcesHandler(c echo.Context) error {
	type sourcesResponse struct {
		Message string   `json:"message"`
		Sources []string `json:"sources"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	client := c.(*middleware.AppContext).App.Resolve
	return c.JSON(http.StatusOK, sourcesResponse{
		Message: "Sources listed",
		Sources: client.SourceNames(),
	})
}
