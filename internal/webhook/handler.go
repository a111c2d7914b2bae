package webhook

import (
	"net/http"

	"presales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const maxEventBytes = 1 << 20 // 1 MiB

// Handler exposes the call event ingestion endpoint.
type Handler struct {
	svc *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandleCallEvent receives a raw gateway webhook delivery. The gateway
// retries on 5xx, so classification problems inside a well-formed event
// return 200 with the action taken.
func (h *Handler) HandleCallEvent(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBytes)
	payload, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "could not read event payload", nil)
		return
	}

	action, err := h.svc.ProcessEvent(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": action})
}
