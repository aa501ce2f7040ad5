package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/service"
)

type sessionResponse struct {
	model.Session
	DurationMinutes int    `json:"duration_minutes"`
	Duration        string `json:"duration"`
}

func (h *Handler) sessionBody(session model.Session) sessionResponse {
	minutes, formatted := h.services.Sessions.Duration(session)
	return sessionResponse{Session: session, DurationMinutes: minutes, Duration: formatted}
}

func (h *Handler) startSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var input service.StartSessionInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal

	result, err := h.services.Sessions.Start(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	paused := make([]sessionResponse, 0, len(result.Paused))
	for _, s := range result.Paused {
		paused = append(paused, h.sessionBody(s))
	}
	c.JSON(http.StatusCreated, gin.H{"session": h.sessionBody(result.Session), "paused": paused})
}

func (h *Handler) listSessions(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	sessions, err := h.services.Sessions.List(c.Request.Context(), principal, service.SessionFilter{
		TechnicianID: strings.TrimSpace(c.Query("technician_id")),
		WorkOrderID:  strings.TrimSpace(c.Query("work_order_id")),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, h.sessionBody(s))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) activeSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	session, err := h.services.Sessions.Active(c.Request.Context(), principal, c.Query("technician_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionBody(*session))
}

func (h *Handler) getSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.services.Sessions.Get(c.Request.Context(), principal, id)
	h.respondSession(c, session, err)
}

func (h *Handler) pauseSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.services.Sessions.Pause(c.Request.Context(), principal, id)
	h.respondSession(c, session, err)
}

func (h *Handler) resumeSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	session, err := h.services.Sessions.Resume(c.Request.Context(), principal, id)
	h.respondSession(c, session, err)
}

type finishSessionRequest struct {
	service.FinishSessionInput
	CompleteWorkOrder bool `json:"complete_work_order"`
}

// finishSession closes the session and, on request, marks the work order done
// as a second step.
func (h *Handler) finishSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req finishSessionRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	session, err := h.services.Sessions.Finish(c.Request.Context(), principal, id, req.FinishSessionInput)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if req.CompleteWorkOrder {
		if _, err := h.services.WorkOrders.UpdateStatus(c.Request.Context(), principal, session.WorkOrderID, model.WorkOrderStatusDone); err != nil {
			h.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.sessionBody(*session))
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) updateSessionNotes(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.services.Sessions.UpdateNotes(c.Request.Context(), principal, id, req.Notes)
	h.respondSession(c, session, err)
}

type photoRequest struct {
	Photo string `json:"photo"`
}

func (h *Handler) addSessionPhoto(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req photoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.services.Sessions.AddPhoto(c.Request.Context(), principal, id, req.Photo)
	h.respondSession(c, session, err)
}

func (h *Handler) addSessionPart(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.PartLineInput
	if !h.bindJSON(c, &req) {
		return
	}
	session, err := h.services.Sessions.AddPart(c.Request.Context(), principal, id, req)
	h.respondSession(c, session, err)
}

func (h *Handler) respondSession(c *gin.Context, session *model.Session, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionBody(*session))
}
