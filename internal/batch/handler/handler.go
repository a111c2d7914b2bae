// Package handler exposes the batch HTTP endpoints.
package handler

import (
	"net/http"
	"time"

	"presales_backend/internal/batch/service"
	"presales_backend/internal/batch/transport"
	"presales_backend/platform/httpkit"
	"presales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Submit)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/cancel", h.Cancel)
}

func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), service.SubmitParams{
		Name:         req.Name,
		LeadIDs:      req.LeadIDs,
		StartAt:      req.StartAt,
		WaveSize:     req.WaveSize,
		WaveInterval: time.Duration(req.WaveIntervalSeconds) * time.Second,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToJobResponse(job))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	failed, err := h.svc.FailedLeads(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobDetailResponse(job, failed))
}

func (h *Handler) List(c *gin.Context) {
	jobs, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"batches": transport.ToJobResponses(jobs)})
}

// Cancel stops a scheduled or running batch. Waves already dispatched
// are not recalled.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	job, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}
