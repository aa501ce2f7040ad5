package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/cnc-service/internal/model"
)

type WorkOrderRepository interface {
	// Create assigns the identifier and returns the stored record.
	Create(ctx context.Context, wo model.WorkOrder) (*model.WorkOrder, error)
	Get(ctx context.Context, id string) (*model.WorkOrder, error)
	GetByPublicKey(ctx context.Context, publicKey string) (*model.WorkOrder, error)
	// List returns matches in creation order.
	List(ctx context.Context, filter model.WorkOrderFilter) ([]model.WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, status model.WorkOrderStatus, at time.Time) (*model.WorkOrder, error)
	SetTechnicians(ctx context.Context, id string, technicianIDs []string, at time.Time) (*model.WorkOrder, error)
}

type SessionRepository interface {
	// Start pauses every active session of the technician and inserts session
	// as one unit. It returns the new session and the sessions it paused.
	Start(ctx context.Context, session model.Session, at time.Time) (*model.Session, []model.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Update(ctx context.Context, session model.Session) error
	// PauseActiveByTechnician pauses every active session of the technician.
	PauseActiveByTechnician(ctx context.Context, technicianID string, at time.Time) ([]model.Session, error)
	ActiveByTechnician(ctx context.Context, technicianID string) (*model.Session, error)
	// ListByTechnician and ListByWorkOrder return newest first.
	ListByTechnician(ctx context.Context, technicianID string) ([]model.Session, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.Session, error)
}

type DocumentRepository interface {
	// Create assigns the identifier and the per-type number.
	Create(ctx context.Context, doc model.Document) (*model.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, doc model.Document) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.Document, error)
	ListByWorkOrders(ctx context.Context, workOrderIDs []string, docType *model.DocumentType) ([]model.Document, error)
	ListByType(ctx context.Context, docType model.DocumentType) ([]model.Document, error)
}

type PartRepository interface {
	List(ctx context.Context, search string) ([]model.Part, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Part, error)
	Create(ctx context.Context, part model.Part) (*model.Part, error)
}

type MachineRepository interface {
	// List returns matches ordered by model.
	List(ctx context.Context, filter model.MachineFilter) ([]model.Machine, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Machine, error)
	Create(ctx context.Context, machine model.Machine) (*model.Machine, error)
	Update(ctx context.Context, machine model.Machine) (*model.Machine, error)
}

type ProfileRepository interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.Profile, error)
	// Upsert keeps created_at of an existing profile.
	Upsert(ctx context.Context, profile model.Profile) error
}

type ActivityRecorder interface {
	Record(ctx context.Context, event model.ActivityEvent) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.ActivityEvent, error)
}

type Clock func() time.Time
