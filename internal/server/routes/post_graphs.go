package routes

import (
	"encoding/json"
	"net/http"

	"github.com/entlink/entlink/internal/queue"
	"github.com/entlink/entlink/internal/server/middleware"
	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateGraphHandler enqueues an asynchronous assembly job. The worker
// resolves the mentions, attaches the triples and stores the finished graph
// under the returned job ID.
func CreateGraphHandler(c echo.Context) error {
	type createGraphRequest struct {
		Mentions []string        `json:"mentions" validate:"required,min=1,dive,required"`
		Triples  []common.Triple `json:"triples"`
		Sources  []string        `json:"sources"`
	}

	type createGraphResponse struct {
		Message string `json:"message"`
		JobID   string `json:"job_id,omitempty"`
	}

	data := new(createGraphRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	jobID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.QueueAssembleMsg{
		Message:  "Graph assembly requested",
		JobID:    jobID,
		Mentions: data.Mentions,
		Triples:  data.Triples,
		Sources:  data.Sources,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.AssembleQueue, msgBytes); err != nil {
		logger.Error("Failed to publish assemble job", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createGraphResponse{
		Message: "Graph assembly queued",
		JobID:   jobID,
	})
}
