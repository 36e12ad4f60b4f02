package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cowork/backend/internal/middleware"
	"cowork/backend/internal/model"
	"cowork/backend/internal/service"
)

type TemplateHandler struct {
	templateService *service.TemplateService
}

func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

type templateRequest struct {
	Title      string                 `json:"title"`
	Schedule   []phaseRequest         `json:"schedule"`
	Activation model.ActivationPolicy `json:"activation"`
	Recurrence string                 `json:"recurrence"`
	Color      string                 `json:"color"`
}

func (r templateRequest) toInput() service.TemplateInput {
	return service.TemplateInput{
		Title:      r.Title,
		Schedule:   toSchedule(r.Schedule),
		Activation: r.Activation,
		Recurrence: r.Recurrence,
		Color:      r.Color,
	}
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	view, apiErr := h.templateService.Create(c.Request.Context(), middleware.UserID(c), req.toInput())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": view})
}

func (h *TemplateHandler) List(c *gin.Context) {
	views, apiErr := h.templateService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": views})
}

func (h *TemplateHandler) Get(c *gin.Context) {
	view, apiErr := h.templateService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": view})
}

func (h *TemplateHandler) Update(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	view, apiErr := h.templateService.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.toInput())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": view})
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	if apiErr := h.templateService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
