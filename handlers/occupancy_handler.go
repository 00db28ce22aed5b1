package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iRail/occupancy-api/services"
)

// OccupancyIngestor is implemented by services.FeedbackIngestor.
type OccupancyIngestor interface {
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestResult, error)
}

// OccupancyHandler accepts crowd-sourced occupancy reports.
type OccupancyHandler struct {
	ingestor     OccupancyIngestor
	maxBodyBytes int64
}

func NewOccupancyHandler(ingestor OccupancyIngestor, maxBodyBytes int64) *OccupancyHandler {
	return &OccupancyHandler{
		ingestor:     ingestor,
		maxBodyBytes: maxBodyBytes,
	}
}

// SubmitFeedbackHandler handles every method on the occupancy route so that
// rejected methods are audited like any other failed submission.
// On success it answers 201 with an empty body and a Location header
// pointing at the reported vehicle.
func (h *OccupancyHandler) SubmitFeedbackHandler(c *gin.Context) {
	body := c.Request.Body
	if h.maxBodyBytes > 0 && body != nil {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), services.IngestRequest{
		Method:    c.Request.Method,
		Body:      body,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Request-Method", "POST, OPTIONS")
	c.Header("Access-Control-Request-Headers", "Content-Type")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Header("Location", result.Location)
	c.Status(http.StatusCreated)
}
