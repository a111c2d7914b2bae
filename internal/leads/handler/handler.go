// Package handler exposes the leads HTTP endpoints.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"presales_backend/internal/leads/repository"
	"presales_backend/internal/leads/service"
	"presales_backend/internal/leads/transport"
	"presales_backend/platform/httpkit"
	"presales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// CallTrigger starts an immediate engagement for one lead. The orchestrator
// implements this.
type CallTrigger interface {
	CallNow(ctx context.Context, leadID uuid.UUID) error
}

type Handler struct {
	svc    *service.Service
	caller CallTrigger
	val    *validator.Validator
}

func New(svc *service.Service, caller CallTrigger, val *validator.Validator) *Handler {
	return &Handler{svc: svc, caller: caller, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/stats", h.Stats)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/call", h.CallNow)
}

// Stats reports how many leads sit in each engagement state.
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.svc.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"states": counts})
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), repository.CreateParams{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Source: req.Source,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := h.svc.List(c.Request.Context(), c.Query("state"), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leads": transport.ToLeadResponses(results)})
}

// CallNow triggers an immediate engagement for a single lead.
func (h *Handler) CallNow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.caller.CallNow(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "dialing", "leadId": id})
}
