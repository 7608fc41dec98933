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

// ExtractHandler extracts entity mentions and relationship triples from free
// text. With assemble set, the extraction is immediately queued as a graph
// assembly job and the job ID is returned alongside the extraction.
func ExtractHandler(c echo.Context) error {
	type extractRequest struct {
		Text     string `json:"text" validate:"required"`
		Assemble bool   `json:"assemble"`
	}

	type extractResponse struct {
		Message  string          `json:"message"`
		Mentions []string        `json:"mentions,omitempty"`
		Triples  []common.Triple `json:"triples,omitempty"`
		JobID    string          `json:"job_id,omitempty"`
	}

	data := new(extractRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, extractResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, extractResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	extractor := c.(*middleware.AppContext).App.Extractor

	extraction, err := extractor.Extract(ctx, data.Text)
	if err != nil {
		logger.Error("Failed to extract entities", "err", err)
		return c.JSON(http.StatusInternalServerError, extractResponse{
			Message: "Internal server error",
		})
	}

	resp := extractResponse{
		Message:  "Extraction complete",
		Mentions: extraction.Mentions,
		Triples:  extraction.Triples,
	}

	if data.Assemble && len(extraction.Mentions) > 0 {
		jobID, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, extractResponse{
				Message: "Internal server error",
			})
		}

		msgBytes, err := json.Marshal(queue.QueueAssembleMsg{
			Message:  "Graph assembly from extraction",
			JobID:    jobID,
			Mentions: extraction.Mentions,
			Triples:  extraction.Triples,
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, extractResponse{
				Message: "Internal server error",
			})
		}

		ch := c.(*middleware.AppContext).App.Queue
		if err := queue.PublishFIFO(ch, queue.AssembleQueue, msgBytes); err != nil {
			logger.Error("Failed to publish assemble job", "job_id", jobID, "err", err)
			return c.JSON(http.StatusInternalServerError, extractResponse{
				Message: "Internal server error",
			})
		}

		resp.Message = "Extraction complete, graph assembly queued"
		resp.JobID = jobID
	}

	return c.JSON(http.StatusOK, resp)
}
