package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/cnc-service/internal/accounting"
	"github.com/nurpe/cnc-service/internal/activity"
	"github.com/nurpe/cnc-service/internal/config"
	httphandler "github.com/nurpe/cnc-service/internal/http"
	"github.com/nurpe/cnc-service/internal/http/middleware"
	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/repository/memory"
	"github.com/nurpe/cnc-service/internal/service"
)

var (
	adminP  = model.Principal{UserID: "admin-1", Role: model.RoleAdmin, DisplayName: "Ana Admin"}
	techP   = model.Principal{UserID: "tech-1", Role: model.RoleTechnician, DisplayName: "Tomas Tech"}
	clientP = model.Principal{UserID: "client-1", Role: model.RoleClient, DisplayName: "Acme Machining"}
)

type tokenTable map[string]model.Principal

func (t tokenTable) Parse(token string) (model.Principal, error) {
	p, ok := t[token]
	if !ok {
		return model.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

type stubExcel struct{}

func (stubExcel) Generate(model.WorkOrderReport) ([]byte, error) { return []byte("PK"), nil }

type stubPDF struct{}

func (stubPDF) Render(model.DocumentRender) ([]byte, error) { return []byte("%PDF-1.3"), nil }

type testServer struct {
	router http.Handler
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	repos := service.Repositories{
		WorkOrders: store.WorkOrders(),
		Sessions:   store.Sessions(),
		Documents:  store.Documents(),
		Parts:      store.Parts(),
		Profiles:   store.Profiles(),
		Machines:   store.Machines(),
		Activity:   activity.NewMemoryRecorder(),
	}
	log := zerolog.Nop()
	cfg := &config.Config{
		Environment: "test",
		HTTP:        config.HTTPConfig{AllowedOrigins: []string{"*"}},
		Documents:   config.DocumentsConfig{DefaultTaxRate: 0.10},
	}

	documents := service.NewDocumentService(repos, stubPDF{}, cfg, log)
	profiles := service.NewProfileService(repos.Profiles)
	services := httphandler.Services{
		WorkOrders: service.NewWorkOrderService(repos, stubExcel{}, log),
		Sessions:   service.NewSessionService(repos, log),
		Documents:  documents,
		Parts:      service.NewPartService(repos.Parts),
		Machines:   service.NewMachineService(repos),
		Profiles:   profiles,
		Portal:     service.NewPortalService(repos, documents, log),
		Accounting: service.NewAccountingService(repos, accounting.NewClient(config.AccountingConfig{}, log), log),
	}
	tokens := tokenTable{"admin": adminP, "tech": techP, "client": clientP}
	auth := middleware.Auth(tokens, profiles, log)
	router := httphandler.NewRouter(httphandler.NewHandler(services, log), auth, cfg, log)

	srv := &testServer{router: router}
	// Every caller gets a profile on its first authenticated request.
	for _, token := range []string{"admin", "tech", "client"} {
		srv.do(t, token, http.MethodGet, "/dashboard", nil)
	}
	return srv
}

func (s *testServer) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader).WithContext(context.Background())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createWorkOrder(t *testing.T) model.WorkOrder {
	t.Helper()
	rec := s.do(t, "admin", http.MethodPost, "/work-orders", map[string]interface{}{
		"title":          "Spindle noise",
		"description":    "Grinding noise",
		"type":           "immediate",
		"client_id":      clientP.UserID,
		"technician_ids": []string{techP.UserID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.WorkOrder](t, rec)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth_RejectsMissingAndUnknownTokens(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "", http.MethodGet, "/work-orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, "forged", http.MethodGet, "/work-orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkOrders_CreateListGet(t *testing.T) {
	srv := newTestServer(t)
	wo := srv.createWorkOrder(t)
	assert.Equal(t, "WO-0001", wo.ID)
	assert.Equal(t, "Acme Machining", wo.ClientName)

	rec := srv.do(t, "tech", http.MethodGet, "/work-orders?status=pending&q=spindle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []model.WorkOrder `json:"items"`
		Count int               `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)

	rec = srv.do(t, "client", http.MethodGet, "/work-orders/WO-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wo.ID, decode[model.WorkOrder](t, rec).ID)

	rec = srv.do(t, "admin", http.MethodGet, "/work-orders/WO-0999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkOrders_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "admin", http.MethodPost, "/work-orders", map[string]interface{}{"type": "welding"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Contains(t, body.Fields, "type")
	assert.Contains(t, body.Fields, "client_id")
	assert.Contains(t, body.Fields, "description")

	rec = srv.do(t, "admin", http.MethodGet, "/work-orders?status=exploded&date_from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Contains(t, body.Fields, "status")
	assert.Contains(t, body.Fields, "date_from")

	rec = srv.do(t, "admin", http.MethodPost, "/work-orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkOrders_StatusAndAssignment(t *testing.T) {
	srv := newTestServer(t)
	wo := srv.createWorkOrder(t)

	rec := srv.do(t, "client", http.MethodPatch, "/work-orders/"+wo.ID+"/status", map[string]string{"status": "done"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, "tech", http.MethodPatch, "/work-orders/"+wo.ID+"/status", map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.WorkOrderStatusInProgress, decode[model.WorkOrder](t, rec).Status)

	rec = srv.do(t, "admin", http.MethodPost, "/work-orders/"+wo.ID+"/technicians", map[string]interface{}{"technician_id": "client-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, "admin", http.MethodPost, "/work-orders/"+wo.ID+"/technicians", map[string]interface{}{"technician_id": "tech-1", "append": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tech-1"}, decode[model.WorkOrder](t, rec).AssignedTechnicians)
}

func TestDashboardAndExport(t *testing.T) {
	srv := newTestServer(t)
	srv.createWorkOrder(t)

	rec := srv.do(t, "admin", http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[model.Dashboard](t, rec)
	assert.Equal(t, 1, dashboard.KPIs.Open)
	assert.Len(t, dashboard.Technicians, 1)

	rec = srv.do(t, "admin", http.MethodGet, "/work-orders/export?date_to=2030-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "work-orders-")

	rec = srv.do(t, "client", http.MethodGet, "/work-orders/export", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, "tech", http.MethodGet, "/technicians", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type sessionBody struct {
	model.Session
	DurationMinutes int    `json:"duration_minutes"`
	Duration        string `json:"duration"`
}

func TestSessions_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	wo1 := srv.createWorkOrder(t)
	wo2 := srv.createWorkOrder(t)

	rec := srv.do(t, "tech", http.MethodPost, "/sessions", map[string]string{"work_order_id": wo1.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[struct {
		Session sessionBody   `json:"session"`
		Paused  []sessionBody `json:"paused"`
	}](t, rec)
	assert.Equal(t, model.SessionStatusActive, first.Session.Status)
	assert.Equal(t, "0m", first.Session.Duration)
	assert.Empty(t, first.Paused)

	rec = srv.do(t, "tech", http.MethodPost, "/sessions", map[string]string{"work_order_id": wo2.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[struct {
		Session sessionBody   `json:"session"`
		Paused  []sessionBody `json:"paused"`
	}](t, rec)
	require.Len(t, second.Paused, 1)
	assert.Equal(t, first.Session.ID, second.Paused[0].ID)

	rec = srv.do(t, "tech", http.MethodGet, "/sessions/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.Session.ID, decode[sessionBody](t, rec).ID)

	id := second.Session.ID.String()
	rec = srv.do(t, "tech", http.MethodPatch, "/sessions/"+id+"/notes", map[string]string{"notes": "checked"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "tech", http.MethodPost, "/sessions/"+id+"/parts", map[string]interface{}{"name": "Fuse", "quantity": 2, "estimated_cost": 1.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[sessionBody](t, rec).PartsUsed, 1)

	rec = srv.do(t, "tech", http.MethodPost, "/sessions/"+id+"/finish", map[string]interface{}{
		"photos":              []string{"https://cdn.test/1.jpg"},
		"complete_work_order": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	finished := decode[sessionBody](t, rec)
	assert.Equal(t, model.SessionStatusCompleted, finished.Status)
	assert.NotNil(t, finished.FinishedAt)
	assert.Equal(t, "checked", finished.Notes)

	rec = srv.do(t, "tech", http.MethodPost, "/sessions/"+id+"/finish", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, "admin", http.MethodGet, "/work-orders/"+wo2.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.WorkOrderStatusDone, decode[model.WorkOrder](t, rec).Status)

	rec = srv.do(t, "tech", http.MethodPost, "/sessions/"+first.Session.ID.String()+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "tech", http.MethodGet, "/sessions?work_order_id="+wo1.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[struct {
		Items []sessionBody `json:"items"`
	}](t, rec)
	assert.Len(t, items.Items, 1)

	rec = srv.do(t, "client", http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = srv.do(t, "tech", http.MethodGet, "/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentsAndPortal(t *testing.T) {
	srv := newTestServer(t)
	wo := srv.createWorkOrder(t)

	rec := srv.do(t, "admin", http.MethodPost, "/documents", map[string]interface{}{
		"work_order_id": wo.ID,
		"type":          "quote",
		"items": []map[string]interface{}{
			{"description": "Bearing", "quantity": 2, "unit_price": 250},
			{"description": "Labor", "quantity": 3, "unit_price": 100},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	quote := decode[model.Document](t, rec)
	assert.Equal(t, "QT-0001", quote.Number)
	assert.Equal(t, 880.0, quote.Total)

	rec = srv.do(t, "client", http.MethodGet, "/documents?work_order_id="+wo.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "client", http.MethodGet, "/documents/"+quote.ID.String()+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="qt-0001.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = srv.do(t, "", http.MethodGet, "/portal/"+wo.PublicKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[model.PortalView](t, rec)
	require.Len(t, view.PendingDocuments, 1)
	assert.Empty(t, view.WorkOrder.PublicKey)

	rec = srv.do(t, "", http.MethodPost, "/portal/"+wo.PublicKey+"/documents/"+quote.ID.String()+"/sign", map[string]string{"signature": "bad signature!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, "", http.MethodPost, "/portal/"+wo.PublicKey+"/documents/"+quote.ID.String()+"/sign", map[string]string{"signature": "data:image/png;base64,iVBORw0KGgo="})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.DocumentStatusSigned, decode[model.Document](t, rec).Status)

	rec = srv.do(t, "client", http.MethodPost, "/documents/"+quote.ID.String()+"/sign", map[string]string{"signature": "iVBORw0KGgo="})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, "", http.MethodGet, "/portal/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_RejectAndSubmit(t *testing.T) {
	srv := newTestServer(t)
	wo := srv.createWorkOrder(t)

	rec := srv.do(t, "admin", http.MethodPost, "/documents", map[string]interface{}{
		"work_order_id": wo.ID,
		"type":          "purchase_order",
		"draft":         true,
		"items":         []map[string]interface{}{{"description": "Encoder", "quantity": 1, "unit_price": 99}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	po := decode[model.Document](t, rec)
	assert.Equal(t, model.DocumentStatusDraft, po.Status)

	rec = srv.do(t, "admin", http.MethodPost, "/documents/"+po.ID.String()+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "client", http.MethodPost, "/documents/"+po.ID.String()+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DocumentStatusRejected, decode[model.Document](t, rec).Status)

	rec = srv.do(t, "tech", http.MethodPost, "/documents/"+po.ID.String()+"/reject", map[string]string{"reason": "no"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPartsAndAccounting(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "tech", http.MethodPost, "/parts", map[string]interface{}{"name": "Collet", "cost": 20})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, "admin", http.MethodPost, "/parts", map[string]interface{}{"name": "Collet", "cost": 20})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, "tech", http.MethodGet, "/parts?q=coll", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	parts := decode[struct {
		Items []model.Part `json:"items"`
	}](t, rec)
	assert.Len(t, parts.Items, 1)

	rec = srv.do(t, "admin", http.MethodPost, "/accounting/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[model.SyncResult](t, rec)
	assert.Equal(t, 1, result.Customers.Synced)
	assert.Equal(t, 0, result.Invoices.Synced)

	rec = srv.do(t, "client", http.MethodPost, "/accounting/sync", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMachinesAndCustomers(t *testing.T) {
	srv := newTestServer(t)
	machineBody := map[string]interface{}{
		"model":         "VF-2",
		"serial_number": "HAAS-1187",
		"manufacturer":  "Haas",
		"year":          2019,
		"client_id":     clientP.UserID,
		"location":      "Bay 3",
	}

	rec := srv.do(t, "tech", http.MethodPost, "/machines", machineBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, "admin", http.MethodPost, "/machines", map[string]interface{}{"model": "X", "year": 1980, "client_id": techP.UserID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	invalid := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Contains(t, invalid.Fields, "year")
	assert.Contains(t, invalid.Fields, "client_id")
	assert.Contains(t, invalid.Fields, "serial_number")

	rec = srv.do(t, "admin", http.MethodPost, "/machines", machineBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	machine := decode[model.Machine](t, rec)
	assert.Equal(t, model.MachineStatusOperational, machine.Status)
	assert.Equal(t, clientP.DisplayName, machine.ClientName)

	type machineList struct {
		Items []model.Machine `json:"items"`
	}
	rec = srv.do(t, "tech", http.MethodGet, "/machines", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[machineList](t, rec).Items)

	rec = srv.do(t, "admin", http.MethodPost, "/work-orders", map[string]interface{}{
		"type":           "preventive",
		"client_id":      clientP.UserID,
		"machine_id":     machine.ID.String(),
		"technician_ids": []string{techP.UserID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, "tech", http.MethodGet, "/machines?q=haas", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[machineList](t, rec).Items, 1)

	rec = srv.do(t, "client", http.MethodGet, "/machines/"+machine.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	machineBody["status"] = "maintenance"
	rec = srv.do(t, "admin", http.MethodPut, "/machines/"+machine.ID.String(), machineBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.MachineStatusMaintenance, decode[model.Machine](t, rec).Status)

	type customerList struct {
		Items []model.Profile `json:"items"`
	}
	rec = srv.do(t, "admin", http.MethodGet, "/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	customers := decode[customerList](t, rec).Items
	require.Len(t, customers, 1)
	assert.Equal(t, clientP.UserID, customers[0].ID)

	rec = srv.do(t, "client", http.MethodGet, "/customers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[customerList](t, rec).Items, 1)

	rec = srv.do(t, "tech", http.MethodGet, "/customers", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDocuments_PurchaseOrderFromQuote(t *testing.T) {
	srv := newTestServer(t)
	wo := srv.createWorkOrder(t)

	rec := srv.do(t, "admin", http.MethodPost, "/documents", map[string]interface{}{
		"work_order_id": wo.ID,
		"type":          "quote",
		"items":         []map[string]interface{}{{"description": "Ball screw", "quantity": 2, "unit_price": 150}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	quote := decode[model.Document](t, rec)

	rec = srv.do(t, "tech", http.MethodPost, "/documents/"+quote.ID.String()+"/purchase-order", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, "admin", http.MethodPost, "/documents/"+quote.ID.String()+"/purchase-order", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	po := decode[model.Document](t, rec)
	assert.Equal(t, model.DocumentTypePurchaseOrder, po.Type)
	assert.Equal(t, "PO-0001", po.Number)
	assert.Equal(t, model.DocumentStatusPendingSignature, po.Status)
	assert.Equal(t, quote.Total, po.Total)
	require.NotNil(t, po.SourceDocumentID)
	assert.Equal(t, quote.ID, *po.SourceDocumentID)

	rec = srv.do(t, "admin", http.MethodPost, "/documents/"+quote.ID.String()+"/purchase-order", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, "admin", http.MethodPost, "/documents/"+po.ID.String()+"/purchase-order", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
