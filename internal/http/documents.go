package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/cnc-service/internal/service"
)

func (h *Handler) createDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var input service.CreateDocumentInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal

	doc, err := h.services.Documents.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	docs, err := h.services.Documents.ListByWorkOrder(c.Request.Context(), principal, c.Query("work_order_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs})
}

func (h *Handler) getDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.services.Documents.Get(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) renderDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.services.Documents.Render(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	attachment(c, contentTypePDF, result.FileName, result.Content)
}

func (h *Handler) submitDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.services.Documents.Submit(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) purchaseOrderFromQuote(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.services.Documents.CreatePurchaseOrderFromQuote(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

type signRequest struct {
	Signature string `json:"signature" binding:"required"`
	SignedBy  string `json:"signed_by"`
}

func (h *Handler) signDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req signRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.services.Documents.Sign(c.Request.Context(), principal, id, req.Signature, req.SignedBy)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectDocument(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.services.Documents.Reject(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) portalView(c *gin.Context) {
	view, err := h.services.Portal.View(c.Request.Context(), strings.TrimSpace(c.Param("publicKey")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) portalSign(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req signRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.services.Portal.Sign(c.Request.Context(), strings.TrimSpace(c.Param("publicKey")), id, req.Signature, req.SignedBy)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) listParts(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}
	parts, err := h.services.Parts.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": parts})
}

func (h *Handler) createPart(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var input service.CreatePartInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Principal = principal
	part, err := h.services.Parts.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, part)
}

func (h *Handler) syncAccounting(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	result, err := h.services.Accounting.Sync(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
