package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/http/middleware"
	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// Services is everything the handler dispatches to.
type Services struct {
	WorkOrders *service.WorkOrderService
	Sessions   *service.SessionService
	Documents  *service.DocumentService
	Parts      *service.PartService
	Machines   *service.MachineService
	Profiles   *service.ProfileService
	Portal     *service.PortalService
	Accounting *service.AccountingService
}

type Handler struct {
	services Services
	log      zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{services: services, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", h.health)

	portal := router.Group("/portal")
	portal.GET("/:publicKey", h.portalView)
	portal.POST("/:publicKey/documents/:id/sign", h.portalSign)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/work-orders", h.createWorkOrder)
	protected.GET("/work-orders", h.listWorkOrders)
	protected.GET("/work-orders/export", h.exportWorkOrders)
	protected.GET("/work-orders/:id", h.getWorkOrder)
	protected.PATCH("/work-orders/:id/status", h.updateWorkOrderStatus)
	protected.POST("/work-orders/:id/technicians", h.assignTechnician)
	protected.GET("/dashboard", h.dashboard)
	protected.GET("/technicians", h.technicians)

	protected.POST("/sessions", h.startSession)
	protected.GET("/sessions", h.listSessions)
	protected.GET("/sessions/active", h.activeSession)
	protected.GET("/sessions/:id", h.getSession)
	protected.POST("/sessions/:id/pause", h.pauseSession)
	protected.POST("/sessions/:id/resume", h.resumeSession)
	protected.POST("/sessions/:id/finish", h.finishSession)
	protected.PATCH("/sessions/:id/notes", h.updateSessionNotes)
	protected.POST("/sessions/:id/photos", h.addSessionPhoto)
	protected.POST("/sessions/:id/parts", h.addSessionPart)

	protected.POST("/documents", h.createDocument)
	protected.GET("/documents", h.listDocuments)
	protected.GET("/documents/:id", h.getDocument)
	protected.GET("/documents/:id/pdf", h.renderDocument)
	protected.POST("/documents/:id/submit", h.submitDocument)
	protected.POST("/documents/:id/sign", h.signDocument)
	protected.POST("/documents/:id/reject", h.rejectDocument)
	protected.POST("/documents/:id/purchase-order", h.purchaseOrderFromQuote)

	protected.GET("/parts", h.listParts)
	protected.POST("/parts", h.createPart)
	protected.GET("/machines", h.listMachines)
	protected.POST("/machines", h.createMachine)
	protected.GET("/machines/:id", h.getMachine)
	protected.PUT("/machines/:id", h.updateMachine)
	protected.GET("/customers", h.listCustomers)
	protected.POST("/accounting/sync", h.syncAccounting)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "fields": validation.Fields})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTransient):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("dependency unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) bindJSON(c *gin.Context, target interface{}) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func attachment(c *gin.Context, contentType, fileName string, content []byte) {
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, contentType, content)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

// workOrderFilter reads list filters from the query string. A date_to given
// as a bare date covers the whole day.
func workOrderFilter(c *gin.Context) (model.WorkOrderFilter, error) {
	var filter model.WorkOrderFilter
	invalid := map[string]string{}

	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseWorkOrderStatus(raw)
		if err != nil {
			invalid["status"] = "is not a known status"
		}
		filter.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		woType, err := model.ParseWorkOrderType(raw)
		if err != nil {
			invalid["type"] = "is not a known work order type"
		}
		filter.Type = &woType
	}
	if raw := c.Query("priority"); raw != "" {
		priority, err := model.ParsePriority(raw)
		if err != nil {
			invalid["priority"] = "is not a known priority"
		}
		filter.Priority = &priority
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			invalid["date_from"] = "is not a valid date"
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			invalid["date_to"] = "is not a valid date"
		}
		if len(strings.TrimSpace(raw)) == len("2006-01-02") {
			// Last instant of the day at the precision postgres stores.
			to = to.Add(24*time.Hour - time.Microsecond)
		}
		filter.DateTo = &to
	}
	filter.TechnicianID = strings.TrimSpace(c.Query("technician_id"))
	filter.ClientID = strings.TrimSpace(c.Query("client_id"))
	filter.Search = strings.TrimSpace(c.Query("q"))
	if filter.Search == "" {
		filter.Search = strings.TrimSpace(c.Query("search"))
	}

	if len(invalid) > 0 {
		return model.WorkOrderFilter{}, &service.ValidationError{Fields: invalid}
	}
	return filter, nil
}
