package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/service"
)

func (h *Handler) createWorkOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var input service.CreateWorkOrderInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal

	wo, err := h.services.WorkOrders.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (h *Handler) listWorkOrders(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	filter, err := workOrderFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	orders, err := h.services.WorkOrders.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": orders, "count": len(orders)})
}

func (h *Handler) exportWorkOrders(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	filter, err := workOrderFilter(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := h.services.WorkOrders.Export(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	attachment(c, contentTypeXLSX, result.FileName, result.Content)
}

func (h *Handler) getWorkOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	wo, err := h.services.WorkOrders.Get(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateWorkOrderStatus(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	wo, err := h.services.WorkOrders.UpdateStatus(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")), model.WorkOrderStatus(req.Status))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

type assignTechnicianRequest struct {
	TechnicianID string `json:"technician_id" binding:"required"`
	Append       bool   `json:"append"`
}

func (h *Handler) assignTechnician(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req assignTechnicianRequest
	if !h.bindJSON(c, &req) {
		return
	}

	wo, err := h.services.WorkOrders.AssignTechnician(c.Request.Context(), principal, strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.TechnicianID), req.Append)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *Handler) dashboard(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	dashboard, err := h.services.WorkOrders.Dashboard(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) technicians(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	technicians, err := h.services.WorkOrders.Technicians(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": technicians})
}
