// Package memory keeps every repository in process memory. It backs the
// memory storage driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/cnc-service/internal/model"
	"github.com/nurpe/cnc-service/internal/repository"
)

// Store holds all tables behind a single lock so that multi-table operations
// stay atomic.
type Store struct {
	mu sync.RWMutex

	profiles      map[string]model.Profile
	parts         map[uuid.UUID]model.Part
	machines      map[uuid.UUID]model.Machine
	workOrders    map[string]model.WorkOrder
	workOrderSeq  int
	sessions      map[uuid.UUID]model.Session
	documents     map[uuid.UUID]model.Document
	documentSeqs  map[model.DocumentType]int
	documentOrder []uuid.UUID
}

func NewStore() *Store {
	return &Store{
		profiles:     make(map[string]model.Profile),
		parts:        make(map[uuid.UUID]model.Part),
		machines:     make(map[uuid.UUID]model.Machine),
		workOrders:   make(map[string]model.WorkOrder),
		sessions:     make(map[uuid.UUID]model.Session),
		documents:    make(map[uuid.UUID]model.Document),
		documentSeqs: make(map[model.DocumentType]int),
	}
}

func (s *Store) WorkOrders() *WorkOrderRepository { return &WorkOrderRepository{s: s} }
func (s *Store) Sessions() *SessionRepository     { return &SessionRepository{s: s} }
func (s *Store) Documents() *DocumentRepository   { return &DocumentRepository{s: s} }
func (s *Store) Parts() *PartRepository           { return &PartRepository{s: s} }
func (s *Store) Profiles() *ProfileRepository     { return &ProfileRepository{s: s} }
func (s *Store) Machines() *MachineRepository     { return &MachineRepository{s: s} }

type ProfileRepository struct{ s *Store }

func (r *ProfileRepository) Get(_ context.Context, id string) (*model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProfileRepository) ListByRole(_ context.Context, role model.Role) ([]model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Profile, 0)
	for _, p := range r.s.profiles {
		if p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *ProfileRepository) Upsert(_ context.Context, profile model.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	r.s.profiles[profile.ID] = profile
	return nil
}

type PartRepository struct{ s *Store }

func (r *PartRepository) List(_ context.Context, search string) ([]model.Part, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]model.Part, 0, len(r.s.parts))
	for _, p := range r.s.parts {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *PartRepository) Get(_ context.Context, id uuid.UUID) (*model.Part, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.parts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *PartRepository) Create(_ context.Context, part model.Part) (*model.Part, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	r.s.parts[part.ID] = part
	return &part, nil
}

type MachineRepository struct{ s *Store }

func (r *MachineRepository) List(_ context.Context, filter model.MachineFilter) ([]model.Machine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Machine, 0)
	for _, m := range r.s.machines {
		m = r.s.machineView(m)
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MachineRepository) Get(_ context.Context, id uuid.UUID) (*model.Machine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.machines[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m = r.s.machineView(m)
	return &m, nil
}

func (r *MachineRepository) Create(_ context.Context, machine model.Machine) (*model.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if machine.ID == uuid.Nil {
		machine.ID = uuid.New()
	}
	r.s.machines[machine.ID] = machine
	out := r.s.machineView(machine)
	return &out, nil
}

func (r *MachineRepository) Update(_ context.Context, machine model.Machine) (*model.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.machines[machine.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	machine.CreatedAt = existing.CreatedAt
	r.s.machines[machine.ID] = machine
	out := r.s.machineView(machine)
	return &out, nil
}

// machineView joins the client name. Callers hold the lock.
func (s *Store) machineView(m model.Machine) model.Machine {
	m.ClientName = ""
	if client, ok := s.profiles[m.ClientID]; ok {
		m.ClientName = client.FullName
	}
	return m
}

type WorkOrderRepository struct{ s *Store }

func (r *WorkOrderRepository) Create(_ context.Context, wo model.WorkOrder) (*model.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workOrderSeq++
	wo.ID = fmt.Sprintf("WO-%04d", r.s.workOrderSeq)
	wo.AssignedTechnicians = cloneSlice(wo.AssignedTechnicians)
	r.s.workOrders[wo.ID] = wo
	out := r.s.workOrderView(wo)
	return &out, nil
}

func (r *WorkOrderRepository) Get(_ context.Context, id string) (*model.WorkOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wo, ok := r.s.workOrders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := r.s.workOrderView(wo)
	return &out, nil
}

func (r *WorkOrderRepository) GetByPublicKey(_ context.Context, publicKey string) (*model.WorkOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, wo := range r.s.workOrders {
		if wo.PublicKey == publicKey {
			out := r.s.workOrderView(wo)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *WorkOrderRepository) List(_ context.Context, filter model.WorkOrderFilter) ([]model.WorkOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.WorkOrder, 0, len(r.s.workOrders))
	for _, wo := range r.s.workOrders {
		view := r.s.workOrderView(wo)
		if filter.Matches(view) {
			out = append(out, view)
		}
	}
	// Shorter IDs were issued first once the counter outgrows the padding.
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) < len(out[j].ID)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *WorkOrderRepository) UpdateStatus(_ context.Context, id string, status model.WorkOrderStatus, at time.Time) (*model.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wo, ok := r.s.workOrders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	wo.Status = status
	wo.UpdatedAt = at
	r.s.workOrders[id] = wo
	out := r.s.workOrderView(wo)
	return &out, nil
}

func (r *WorkOrderRepository) SetTechnicians(_ context.Context, id string, technicianIDs []string, at time.Time) (*model.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wo, ok := r.s.workOrders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	wo.AssignedTechnicians = cloneSlice(technicianIDs)
	wo.UpdatedAt = at
	r.s.workOrders[id] = wo
	out := r.s.workOrderView(wo)
	return &out, nil
}

// workOrderView copies a stored order and joins the client name. Callers hold the lock.
func (s *Store) workOrderView(wo model.WorkOrder) model.WorkOrder {
	wo.AssignedTechnicians = cloneSlice(wo.AssignedTechnicians)
	if wo.AssignedTechnicians == nil {
		wo.AssignedTechnicians = []string{}
	}
	if client, ok := s.profiles[wo.ClientID]; ok {
		wo.ClientName = client.FullName
	}
	return wo
}

type SessionRepository struct{ s *Store }

func (r *SessionRepository) Start(_ context.Context, session model.Session, at time.Time) (*model.Session, []model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	paused := r.s.pauseActive(session.TechnicianID, at)
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	stored := cloneSession(session)
	r.s.sessions[stored.ID] = stored
	out := cloneSession(stored)
	return &out, paused, nil
}

func (r *SessionRepository) Get(_ context.Context, id uuid.UUID) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneSession(session)
	return &out, nil
}

func (r *SessionRepository) Update(_ context.Context, session model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *SessionRepository) PauseActiveByTechnician(_ context.Context, technicianID string, at time.Time) ([]model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.pauseActive(technicianID, at), nil
}

func (r *SessionRepository) ActiveByTechnician(_ context.Context, technicianID string) (*model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	active := r.s.sessionsWhere(func(s model.Session) bool {
		return s.TechnicianID == technicianID && s.Status == model.SessionStatusActive
	})
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}
	return &active[0], nil
}

func (r *SessionRepository) ListByTechnician(_ context.Context, technicianID string) ([]model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sessionsWhere(func(s model.Session) bool { return s.TechnicianID == technicianID }), nil
}

func (r *SessionRepository) ListByWorkOrder(_ context.Context, workOrderID string) ([]model.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sessionsWhere(func(s model.Session) bool { return s.WorkOrderID == workOrderID }), nil
}

func (s *Store) pauseActive(technicianID string, at time.Time) []model.Session {
	paused := make([]model.Session, 0)
	for id, session := range s.sessions {
		if session.TechnicianID != technicianID || session.Status != model.SessionStatusActive {
			continue
		}
		session = cloneSession(session)
		session.Status = model.SessionStatusPaused
		session.PausedAt = append(session.PausedAt, at)
		s.sessions[id] = session
		paused = append(paused, cloneSession(session))
	}
	return paused
}

// sessionsWhere returns copies newest first. Callers hold the lock.
func (s *Store) sessionsWhere(match func(model.Session) bool) []model.Session {
	out := make([]model.Session, 0)
	for _, session := range s.sessions {
		if match(session) {
			out = append(out, cloneSession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.After(b.StartedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
	return out
}

type DocumentRepository struct{ s *Store }

func (r *DocumentRepository) Create(_ context.Context, doc model.Document) (*model.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	switch doc.Type {
	case model.DocumentTypeQuote, model.DocumentTypePurchaseOrder, model.DocumentTypeInvoice:
	default:
		return nil, fmt.Errorf("unknown document type %q", doc.Type)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	r.s.documentSeqs[doc.Type]++
	doc.Number = fmt.Sprintf("%s-%04d", doc.Type.NumberPrefix(), r.s.documentSeqs[doc.Type])
	stored := cloneDocument(doc)
	r.s.documents[doc.ID] = stored
	r.s.documentOrder = append(r.s.documentOrder, doc.ID)
	out := cloneDocument(stored)
	return &out, nil
}

func (r *DocumentRepository) Get(_ context.Context, id uuid.UUID) (*model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	doc, ok := r.s.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (r *DocumentRepository) Update(_ context.Context, doc model.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.documents[doc.ID]
	if !ok {
		return repository.ErrNotFound
	}
	doc.Number = existing.Number
	doc.Type = existing.Type
	doc.WorkOrderID = existing.WorkOrderID
	doc.SourceDocumentID = existing.SourceDocumentID
	r.s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (r *DocumentRepository) ListByWorkOrder(_ context.Context, workOrderID string) ([]model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.documentsWhere(func(d model.Document) bool { return d.WorkOrderID == workOrderID }), nil
}

func (r *DocumentRepository) ListByWorkOrders(_ context.Context, workOrderIDs []string, docType *model.DocumentType) ([]model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make(map[string]struct{}, len(workOrderIDs))
	for _, id := range workOrderIDs {
		ids[id] = struct{}{}
	}
	return r.s.documentsWhere(func(d model.Document) bool {
		if _, ok := ids[d.WorkOrderID]; !ok {
			return false
		}
		return docType == nil || d.Type == *docType
	}), nil
}

func (r *DocumentRepository) ListByType(_ context.Context, docType model.DocumentType) ([]model.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.documentsWhere(func(d model.Document) bool { return d.Type == docType }), nil
}

// documentsWhere returns copies in creation order. Callers hold the lock.
func (s *Store) documentsWhere(match func(model.Document) bool) []model.Document {
	out := make([]model.Document, 0)
	for _, id := range s.documentOrder {
		doc := s.documents[id]
		if match(doc) {
			out = append(out, cloneDocument(doc))
		}
	}
	return out
}

func cloneSession(s model.Session) model.Session {
	s.PausedAt = cloneSlice(s.PausedAt)
	s.Photos = cloneSlice(s.Photos)
	s.PartsUsed = cloneSlice(s.PartsUsed)
	if s.FinishedAt != nil {
		finished := *s.FinishedAt
		s.FinishedAt = &finished
	}
	return s
}

func cloneDocument(d model.Document) model.Document {
	d.Items = cloneSlice(d.Items)
	if d.SourceDocumentID != nil {
		source := *d.SourceDocumentID
		d.SourceDocumentID = &source
	}
	return d
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
