package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/model"
)

type ExcelGenerator interface {
	Generate(report model.WorkOrderReport) ([]byte, error)
}

// Repositories groups the storage collaborators shared by the services.
type Repositories struct {
	WorkOrders WorkOrderRepository
	Sessions   SessionRepository
	Documents  DocumentRepository
	Parts      PartRepository
	Profiles   ProfileRepository
	Machines   MachineRepository
	Activity   ActivityRecorder
}

type WorkOrderService struct {
	repos Repositories
	excel ExcelGenerator
	log   zerolog.Logger
	now   Clock
}

type CreateWorkOrderInput struct {
	Title                  string     `json:"title"`
	Description            string     `json:"description" validate:"required_without=MachineID"`
	Type                   string     `json:"type" validate:"required"`
	Priority               string     `json:"priority"`
	ClientID               string     `json:"client_id" validate:"required"`
	MachineID              string     `json:"machine_id"`
	EstimatedDate          *time.Time `json:"estimated_date"`
	EstimatedDurationHours *float64   `json:"estimated_duration_hours" validate:"omitempty,gt=0"`
	TechnicianIDs          []string   `json:"technician_ids"`

	Principal model.Principal `json:"-"`
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func NewWorkOrderService(repos Repositories, excel ExcelGenerator, log zerolog.Logger) *WorkOrderService {
	return &WorkOrderService{
		repos: repos,
		excel: excel,
		log:   log,
		now:   time.Now,
	}
}

// WithClock replaces the time source.
func (s *WorkOrderService) WithClock(clock Clock) *WorkOrderService {
	s.now = clock
	return s
}

func (s *WorkOrderService) Create(ctx context.Context, input CreateWorkOrderInput) (*model.WorkOrder, error) {
	if input.Principal.IsClient() {
		input.ClientID = input.Principal.UserID
	}
	input.ClientID = strings.TrimSpace(input.ClientID)
	input.MachineID = strings.TrimSpace(input.MachineID)
	input.Description = strings.TrimSpace(input.Description)

	errs := fieldErrors{}
	checkStruct(input, errs)

	var woType model.WorkOrderType
	if input.Type != "" {
		parsed, err := model.ParseWorkOrderType(input.Type)
		if err != nil {
			errs.add("type", "is not a known work order type")
		}
		woType = parsed
	}
	priority := model.PriorityNormal
	if strings.TrimSpace(input.Priority) != "" {
		parsed, err := model.ParsePriority(input.Priority)
		if err != nil {
			errs.add("priority", "is not a known priority")
		}
		priority = parsed
	}

	var client *model.Profile
	if input.ClientID != "" {
		profile, err := s.repos.Profiles.Get(ctx, input.ClientID)
		switch {
		case err == nil && profile.Role == model.RoleClient:
			client = profile
		case err == nil, storageErr(err) == ErrNotFound:
			errs.add("client_id", "does not reference a client")
		default:
			return nil, storageErr(err)
		}
	}

	if input.MachineID != "" && client != nil {
		if err := s.checkMachine(ctx, input.MachineID, client.ID); err != nil {
			if err != ErrInvalidInput {
				return nil, err
			}
			errs.add("machine_id", "does not reference a machine of this client")
		}
	}

	technicians := make([]string, 0, len(input.TechnicianIDs))
	for i, id := range input.TechnicianIDs {
		id = strings.TrimSpace(id)
		if err := s.checkTechnician(ctx, id); err != nil {
			if err == ErrInvalidInput {
				errs.add(fmt.Sprintf("technician_ids[%d]", i), "does not reference a technician")
				continue
			}
			return nil, err
		}
		technicians = appendUnique(technicians, id)
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	wo := model.WorkOrder{
		Title:                  strings.TrimSpace(input.Title),
		Description:            input.Description,
		Type:                   woType,
		Status:                 model.WorkOrderStatusPending,
		Priority:               priority,
		EstimatedDate:          input.EstimatedDate,
		EstimatedDurationHours: input.EstimatedDurationHours,
		AssignedTechnicians:    technicians,
		ClientID:               client.ID,
		ClientName:             client.FullName,
		PublicKey:              strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedBy:              input.Principal.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if input.MachineID != "" {
		wo.MachineID = &input.MachineID
	}

	saved, err := s.repos.WorkOrders.Create(ctx, wo)
	if err != nil {
		return nil, storageErr(err)
	}

	if saved.EstimatedDate != nil {
		s.record(ctx, model.ActivityEvent{
			WorkOrderID:     saved.ID,
			Type:            model.ActivityAppointmentScheduled,
			Title:           "Visit scheduled",
			Description:     "Estimated for " + saved.EstimatedDate.Format("2006-01-02"),
			VisibleToClient: true,
		})
	}
	return saved, nil
}

// List applies the caller's visibility scope on top of the filter.
func (s *WorkOrderService) List(ctx context.Context, principal model.Principal, filter model.WorkOrderFilter) ([]model.WorkOrder, error) {
	filter = scopeFilter(principal, filter)
	orders, err := s.repos.WorkOrders.List(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return orders, nil
}

// Get returns the work order with its sessions, parts used and documents.
func (s *WorkOrderService) Get(ctx context.Context, principal model.Principal, id string) (*model.WorkOrder, error) {
	wo, err := s.repos.WorkOrders.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storageErr(err)
	}
	if principal.IsClient() && wo.ClientID != principal.UserID {
		return nil, ErrNotFound
	}
	if err := s.attachDetails(ctx, wo); err != nil {
		return nil, err
	}
	return wo, nil
}

func (s *WorkOrderService) attachDetails(ctx context.Context, wo *model.WorkOrder) error {
	sessions, err := s.repos.Sessions.ListByWorkOrder(ctx, wo.ID)
	if err != nil {
		return storageErr(err)
	}
	wo.Sessions = sessions
	wo.PartsUsed = nil
	for _, session := range sessions {
		wo.PartsUsed = append(wo.PartsUsed, session.PartsUsed...)
	}

	docs, err := s.repos.Documents.ListByWorkOrder(ctx, wo.ID)
	if err != nil {
		return storageErr(err)
	}
	wo.Quotes, wo.PurchaseOrders, wo.Invoices = nil, nil, nil
	for _, doc := range docs {
		switch doc.Type {
		case model.DocumentTypeQuote:
			wo.Quotes = append(wo.Quotes, doc)
		case model.DocumentTypePurchaseOrder:
			wo.PurchaseOrders = append(wo.PurchaseOrders, doc)
		case model.DocumentTypeInvoice:
			wo.Invoices = append(wo.Invoices, doc)
		}
	}
	return nil
}

// UpdateStatus overwrites the status; any status may follow any other.
func (s *WorkOrderService) UpdateStatus(ctx context.Context, principal model.Principal, id string, status model.WorkOrderStatus) (*model.WorkOrder, error) {
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	status, err := model.ParseWorkOrderStatus(string(status))
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"status": "is not a known work order status"}}
	}

	previous, err := s.repos.WorkOrders.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storageErr(err)
	}
	updated, err := s.repos.WorkOrders.UpdateStatus(ctx, previous.ID, status, s.now().UTC())
	if err != nil {
		return nil, storageErr(err)
	}

	if previous.Status != status {
		s.record(ctx, model.ActivityEvent{
			WorkOrderID:     updated.ID,
			Type:            model.ActivityStatusChange,
			Title:           "Status changed",
			Description:     fmt.Sprintf("%s -> %s", previous.Status, status),
			VisibleToClient: true,
		})
	}
	return updated, nil
}

// AssignTechnician overwrites the assignment unless appendMode is set, in which
// case the technician is added once at the end of the list.
func (s *WorkOrderService) AssignTechnician(ctx context.Context, principal model.Principal, id, technicianID string, appendMode bool) (*model.WorkOrder, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	technicianID = strings.TrimSpace(technicianID)
	if err := s.checkTechnician(ctx, technicianID); err != nil {
		if err == ErrInvalidInput {
			return nil, &ValidationError{Fields: map[string]string{"technician_id": "does not reference a technician"}}
		}
		return nil, err
	}

	wo, err := s.repos.WorkOrders.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storageErr(err)
	}

	assigned := []string{technicianID}
	if appendMode {
		assigned = appendUnique(append([]string(nil), wo.AssignedTechnicians...), technicianID)
	}
	updated, err := s.repos.WorkOrders.SetTechnicians(ctx, wo.ID, assigned, s.now().UTC())
	if err != nil {
		return nil, storageErr(err)
	}
	return updated, nil
}

func (s *WorkOrderService) Dashboard(ctx context.Context, principal model.Principal) (*model.Dashboard, error) {
	orders, err := s.withInvoices(ctx, principal, model.WorkOrderFilter{})
	if err != nil {
		return nil, err
	}

	dashboard := &model.Dashboard{
		KPIs:           ComputeKPIs(orders, s.now()),
		UpcomingOrders: UpcomingOrders(orders, upcomingLimit),
	}
	if principal.IsAdmin() {
		technicians, err := s.repos.Profiles.ListByRole(ctx, model.RoleTechnician)
		if err != nil {
			return nil, storageErr(err)
		}
		dashboard.Technicians = technicians
	}
	return dashboard, nil
}

func (s *WorkOrderService) Technicians(ctx context.Context, principal model.Principal) ([]model.Profile, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	technicians, err := s.repos.Profiles.ListByRole(ctx, model.RoleTechnician)
	if err != nil {
		return nil, storageErr(err)
	}
	return technicians, nil
}

func (s *WorkOrderService) Export(ctx context.Context, principal model.Principal, filter model.WorkOrderFilter) (*ExportResult, error) {
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	orders, err := s.withInvoices(ctx, principal, filter)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	content, err := s.excel.Generate(model.WorkOrderReport{
		GeneratedAt: now,
		KPIs:        ComputeKPIs(orders, now),
		Orders:      orders,
	})
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: fmt.Sprintf("work-orders-%s.xlsx", now.Format("20060102-150405")),
		Content:  content,
	}, nil
}

func (s *WorkOrderService) withInvoices(ctx context.Context, principal model.Principal, filter model.WorkOrderFilter) ([]model.WorkOrder, error) {
	orders, err := s.List(ctx, principal, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	invoiceType := model.DocumentTypeInvoice
	invoices, err := s.repos.Documents.ListByWorkOrders(ctx, ids, &invoiceType)
	if err != nil {
		return nil, storageErr(err)
	}
	byOrder := make(map[string][]model.Document, len(invoices))
	for _, inv := range invoices {
		byOrder[inv.WorkOrderID] = append(byOrder[inv.WorkOrderID], inv)
	}
	for i := range orders {
		orders[i].Invoices = byOrder[orders[i].ID]
	}
	return orders, nil
}

func (s *WorkOrderService) checkMachine(ctx context.Context, rawID, clientID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return ErrInvalidInput
	}
	machine, err := s.repos.Machines.Get(ctx, id)
	if err != nil {
		if err = storageErr(err); err == ErrNotFound {
			return ErrInvalidInput
		}
		return err
	}
	if machine.ClientID != clientID {
		return ErrInvalidInput
	}
	return nil
}

func (s *WorkOrderService) checkTechnician(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	profile, err := s.repos.Profiles.Get(ctx, id)
	if err != nil {
		if err = storageErr(err); err == ErrNotFound {
			return ErrInvalidInput
		}
		return err
	}
	if profile.Role != model.RoleTechnician {
		return ErrInvalidInput
	}
	return nil
}

func (s *WorkOrderService) record(ctx context.Context, event model.ActivityEvent) {
	recordActivity(ctx, s.repos.Activity, s.log, s.now, event)
}

func scopeFilter(principal model.Principal, filter model.WorkOrderFilter) model.WorkOrderFilter {
	switch principal.Role {
	case model.RoleClient:
		filter.ClientID = principal.UserID
	case model.RoleTechnician:
		filter.TechnicianID = principal.UserID
	}
	return filter
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

// recordActivity is best effort: a failing timeline never fails the caller.
func recordActivity(ctx context.Context, recorder ActivityRecorder, log zerolog.Logger, now Clock, event model.ActivityEvent) {
	if recorder == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
	if err := recorder.Record(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("work_order_id", event.WorkOrderID).
			Str("activity_type", string(event.Type)).
			Msg("record activity failed")
	}
}
