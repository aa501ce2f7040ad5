package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/repository"
)

func TestWorkOrderRepository_CreateAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Profiles().Upsert(ctx, model.Profile{ID: "client-1", FullName: "Acme", Role: model.RoleClient}))

	repo := store.WorkOrders()
	created, err := repo.Create(ctx, model.WorkOrder{ClientID: "client-1", PublicKey: "pk1", AssignedTechnicians: []string{"tech-1"}})
	require.NoError(t, err)
	assert.Equal(t, "WO-0001", created.ID)
	assert.Equal(t, "Acme", created.ClientName)

	created.AssignedTechnicians[0] = "mutated"
	got, err := repo.Get(ctx, "WO-0001")
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-1"}, got.AssignedTechnicians)

	byKey, err := repo.GetByPublicKey(ctx, "pk1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)

	_, err = repo.Get(ctx, "WO-0002")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByPublicKey(ctx, "pk2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWorkOrderRepository_ListOrdersBySequence(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.WorkOrders()
	store.workOrderSeq = 9998
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, model.WorkOrder{Title: fmt.Sprintf("order %d", i)})
		require.NoError(t, err)
	}

	orders, err := repo.List(ctx, model.WorkOrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "WO-9999", orders[0].ID)
	assert.Equal(t, "WO-10000", orders[1].ID)
	assert.Equal(t, "WO-10001", orders[2].ID)

	orders, err = repo.List(ctx, model.WorkOrderFilter{Search: "order 1"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Empty(t, orders[0].AssignedTechnicians)
	assert.NotNil(t, orders[0].AssignedTechnicians)
}

func TestWorkOrderRepository_Updates(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.WorkOrders()
	created, err := repo.Create(ctx, model.WorkOrder{Status: model.WorkOrderStatusPending})
	require.NoError(t, err)
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	updated, err := repo.UpdateStatus(ctx, created.ID, model.WorkOrderStatusDone, at)
	require.NoError(t, err)
	assert.Equal(t, model.WorkOrderStatusDone, updated.Status)
	assert.Equal(t, at, updated.UpdatedAt)

	updated, err = repo.SetTechnicians(ctx, created.ID, []string{"tech-2"}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"tech-2"}, updated.AssignedTechnicians)

	_, err = repo.UpdateStatus(ctx, "WO-0404", model.WorkOrderStatusDone, at)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.SetTechnicians(ctx, "WO-0404", nil, at)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_StartPausesActive(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Sessions()
	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	first, paused, err := repo.Start(ctx, model.Session{TechnicianID: "tech-1", WorkOrderID: "WO-0001", Status: model.SessionStatusActive, StartedAt: t0}, t0)
	require.NoError(t, err)
	assert.Empty(t, paused)
	assert.NotEqual(t, uuid.Nil, first.ID)

	t1 := t0.Add(time.Hour)
	second, paused, err := repo.Start(ctx, model.Session{TechnicianID: "tech-1", WorkOrderID: "WO-0002", Status: model.SessionStatusActive, StartedAt: t1}, t1)
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, first.ID, paused[0].ID)
	assert.Equal(t, []time.Time{t1}, paused[0].PausedAt)

	active, err := repo.ActiveByTechnician(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	list, err := repo.ListByTechnician(ctx, "tech-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	byOrder, err := repo.ListByWorkOrder(ctx, "WO-0001")
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, model.SessionStatusPaused, byOrder[0].Status)

	_, err = repo.ActiveByTechnician(ctx, "tech-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_UpdateCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Sessions()
	now := time.Now().UTC()

	session, _, err := repo.Start(ctx, model.Session{TechnicianID: "tech-1", Status: model.SessionStatusActive, StartedAt: now, Photos: []string{"a"}}, now)
	require.NoError(t, err)

	session.Photos[0] = "changed"
	stored, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, stored.Photos)

	stored.Notes = "saved"
	require.NoError(t, repo.Update(ctx, *stored))
	again, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "saved", again.Notes)

	assert.ErrorIs(t, repo.Update(ctx, model.Session{ID: uuid.New()}), repository.ErrNotFound)
	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	paused, err := repo.PauseActiveByTechnician(ctx, "tech-1", now)
	require.NoError(t, err)
	assert.Len(t, paused, 1)
}

func TestSessionRepository_ListOrderIsDeterministic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Sessions()
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
	for i, id := range []uuid.UUID{low, high} {
		_, _, err := repo.Start(ctx, model.Session{
			ID:           id,
			TechnicianID: fmt.Sprintf("tech-%d", i),
			WorkOrderID:  "WO-0001",
			Status:       model.SessionStatusActive,
			StartedAt:    at,
			CreatedAt:    at,
		}, at)
		require.NoError(t, err)
	}

	for i := 0; i < 50; i++ {
		sessions, err := repo.ListByWorkOrder(ctx, "WO-0001")
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, high, sessions[0].ID)
		assert.Equal(t, low, sessions[1].ID)
	}
}

func TestDocumentRepository_NumbersPerType(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Documents()

	create := func(workOrderID string, docType model.DocumentType) *model.Document {
		doc, err := repo.Create(ctx, model.Document{WorkOrderID: workOrderID, Type: docType})
		require.NoError(t, err)
		return doc
	}
	q1 := create("WO-0001", model.DocumentTypeQuote)
	inv := create("WO-0001", model.DocumentTypeInvoice)
	q2 := create("WO-0002", model.DocumentTypeQuote)

	assert.Equal(t, "QT-0001", q1.Number)
	assert.Equal(t, "INV-0001", inv.Number)
	assert.Equal(t, "QT-0002", q2.Number)

	_, err := repo.Create(ctx, model.Document{Type: "receipt"})
	assert.Error(t, err)

	docs, err := repo.ListByWorkOrder(ctx, "WO-0001")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, q1.ID, docs[0].ID)

	quotes, err := repo.ListByType(ctx, model.DocumentTypeQuote)
	require.NoError(t, err)
	assert.Len(t, quotes, 2)

	invoiceType := model.DocumentTypeInvoice
	invoices, err := repo.ListByWorkOrders(ctx, []string{"WO-0001", "WO-0002"}, &invoiceType)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, inv.ID, invoices[0].ID)

	all, err := repo.ListByWorkOrders(ctx, []string{"WO-0002"}, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDocumentRepository_UpdateKeepsIdentity(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Documents()
	doc, err := repo.Create(ctx, model.Document{WorkOrderID: "WO-0001", Type: model.DocumentTypeQuote})
	require.NoError(t, err)

	doc.Number = "QT-9999"
	doc.Status = model.DocumentStatusSigned
	require.NoError(t, repo.Update(ctx, *doc))

	stored, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "QT-0001", stored.Number)
	assert.Equal(t, model.DocumentStatusSigned, stored.Status)

	assert.ErrorIs(t, repo.Update(ctx, model.Document{ID: uuid.New()}), repository.ErrNotFound)
}

func TestProfileAndPartRepositories(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	profiles := store.Profiles()
	require.NoError(t, profiles.Upsert(ctx, model.Profile{ID: "t2", FullName: "Zed", Role: model.RoleTechnician, CreatedAt: created}))
	require.NoError(t, profiles.Upsert(ctx, model.Profile{ID: "t1", FullName: "Ada", Role: model.RoleTechnician}))
	require.NoError(t, profiles.Upsert(ctx, model.Profile{ID: "t2", FullName: "Zed Z", Role: model.RoleTechnician, CreatedAt: time.Now()}))

	techs, err := profiles.ListByRole(ctx, model.RoleTechnician)
	require.NoError(t, err)
	require.Len(t, techs, 2)
	assert.Equal(t, "Ada", techs[0].FullName)
	assert.Equal(t, "Zed Z", techs[1].FullName)
	assert.Equal(t, created, techs[1].CreatedAt)

	_, err = profiles.Get(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	parts := store.Parts()
	part, err := parts.Create(ctx, model.Part{Name: "Spindle Belt", Cost: 42})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, part.ID)

	found, err := parts.List(ctx, "belt")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = parts.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMachineRepository(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Profiles().Upsert(ctx, model.Profile{ID: "client-1", FullName: "Acme", Role: model.RoleClient}))
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo := store.Machines()
	lathe, err := repo.Create(ctx, model.Machine{Model: "ST-10", ClientID: "client-1", CreatedAt: created})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, lathe.ID)
	assert.Equal(t, "Acme", lathe.ClientName)
	mill, err := repo.Create(ctx, model.Machine{Model: "DMU 50", ClientID: "client-2"})
	require.NoError(t, err)
	assert.Empty(t, mill.ClientName)

	all, err := repo.List(ctx, model.MachineFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, mill.ID, all[0].ID)
	assert.Equal(t, lathe.ID, all[1].ID)

	none, err := repo.List(ctx, model.MachineFilter{IDs: []uuid.UUID{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	lathe.Model = "ST-20"
	lathe.CreatedAt = time.Now()
	updated, err := repo.Update(ctx, *lathe)
	require.NoError(t, err)
	assert.Equal(t, "ST-20", updated.Model)
	assert.Equal(t, created, updated.CreatedAt)

	got, err := repo.Get(ctx, lathe.ID)
	require.NoError(t, err)
	assert.Equal(t, "ST-20", got.Model)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Update(ctx, model.Machine{ID: uuid.New()})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
