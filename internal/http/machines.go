package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/service"
)

func (h *Handler) listMachines(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	machines, err := h.services.Machines.List(c.Request.Context(), principal, model.MachineFilter{
		ClientID: c.Query("client_id"),
		Search:   c.Query("q"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": machines})
}

func (h *Handler) getMachine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	machine, err := h.services.Machines.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

func (h *Handler) createMachine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var input service.MachineInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal
	machine, err := h.services.Machines.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, machine)
}

func (h *Handler) updateMachine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var input service.MachineInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal
	machine, err := h.services.Machines.Update(c.Request.Context(), id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

func (h *Handler) listCustomers(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	customers, err := h.services.Profiles.Customers(c.Request.Context(), principal, c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": customers})
}
