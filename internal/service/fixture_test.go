package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/cnc-service/internal/activity"
	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/repository/memory"
)

var (
	admin   = model.Principal{UserID: "admin-1", Role: model.RoleAdmin, DisplayName: "Ana Admin"}
	tech    = model.Principal{UserID: "tech-1", Role: model.RoleTechnician, DisplayName: "Tomas Tech"}
	tech2   = model.Principal{UserID: "tech-2", Role: model.RoleTechnician, DisplayName: "Teo Tech"}
	client  = model.Principal{UserID: "client-1", Role: model.RoleClient, DisplayName: "Acme Machining"}
	client2 = model.Principal{UserID: "client-2", Role: model.RoleClient, DisplayName: "Other Shop"}
)

// testClock starts at a fixed instant and only moves when told to.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx      context.Context
	clock    *testClock
	store    *memory.Store
	recorder *activity.MemoryRecorder
	repos    Repositories

	workOrders *WorkOrderService
	sessions   *SessionService
	documents  *DocumentService
	portal     *PortalService
	parts      *PartService
	profiles   *ProfileService
	machines   *MachineService
	excel      *fakeExcel
}

type fakeExcel struct {
	reports []model.WorkOrderReport
}

func (f *fakeExcel) Generate(report model.WorkOrderReport) ([]byte, error) {
	f.reports = append(f.reports, report)
	return []byte("xlsx"), nil
}

type fakePDF struct {
	renders []model.DocumentRender
}

func (f *fakePDF) Render(doc model.DocumentRender) ([]byte, error) {
	f.renders = append(f.renders, doc)
	return []byte("%PDF-1.3"), nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	recorder := activity.NewMemoryRecorder()
	clock := newTestClock()
	repos := Repositories{
		WorkOrders: store.WorkOrders(),
		Sessions:   store.Sessions(),
		Documents:  store.Documents(),
		Parts:      store.Parts(),
		Profiles:   store.Profiles(),
		Machines:   store.Machines(),
		Activity:   recorder,
	}
	log := zerolog.Nop()
	cfg := &config.Config{Documents: config.DocumentsConfig{DefaultTaxRate: 0.10, PublicBaseURL: "https://cnc.test/"}}
	excel := &fakeExcel{}
	documents := NewDocumentService(repos, &fakePDF{}, cfg, log).WithClock(clock.Now)

	f := &fixture{
		ctx:        context.Background(),
		clock:      clock,
		store:      store,
		recorder:   recorder,
		repos:      repos,
		workOrders: NewWorkOrderService(repos, excel, log).WithClock(clock.Now),
		sessions:   NewSessionService(repos, log).WithClock(clock.Now),
		documents:  documents,
		portal:     NewPortalService(repos, documents, log).WithClock(clock.Now),
		parts:      NewPartService(repos.Parts),
		profiles:   NewProfileService(repos.Profiles),
		machines:   NewMachineService(repos).WithClock(clock.Now),
		excel:      excel,
	}
	for _, p := range []model.Principal{admin, tech, tech2, client, client2} {
		require.NoError(t, f.profiles.Sync(f.ctx, p))
	}
	return f
}

func (f *fixture) createWorkOrder(t *testing.T, mutate ...func(*CreateWorkOrderInput)) *model.WorkOrder {
	t.Helper()
	input := CreateWorkOrderInput{
		Title:       "Spindle noise",
		Description: "Spindle makes grinding noise above 8000 rpm",
		Type:        "immediate_service",
		ClientID:    client.UserID,
		Principal:   admin,
	}
	for _, m := range mutate {
		m(&input)
	}
	wo, err := f.workOrders.Create(f.ctx, input)
	require.NoError(t, err)
	return wo
}

func (f *fixture) createMachine(t *testing.T, clientID string, mutate ...func(*MachineInput)) *model.Machine {
	t.Helper()
	input := MachineInput{
		Model:        "VF-2",
		SerialNumber: "HAAS-1187",
		Manufacturer: "Haas",
		Year:         2019,
		ClientID:     clientID,
		Location:     "Bay 3",
		Principal:    admin,
	}
	for _, m := range mutate {
		m(&input)
	}
	machine, err := f.machines.Create(f.ctx, input)
	require.NoError(t, err)
	return machine
}

func (f *fixture) startSession(t *testing.T, workOrderID string, who model.Principal) model.Session {
	t.Helper()
	result, err := f.sessions.Start(f.ctx, StartSessionInput{WorkOrderID: workOrderID, Principal: who})
	require.NoError(t, err)
	return result.Session
}

func (f *fixture) createQuote(t *testing.T, workOrderID string) *model.Document {
	t.Helper()
	doc, err := f.documents.Create(f.ctx, CreateDocumentInput{
		WorkOrderID: workOrderID,
		Type:        "quote",
		Items: []DocumentItemInput{
			{Description: "Spindle bearing", Quantity: 2, UnitPrice: 250},
			{Description: "Labor", Quantity: 3, UnitPrice: 100},
		},
		Principal: admin,
	})
	require.NoError(t, err)
	return doc
}

func ptr[T any](v T) *T { return &v }
