package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/cnc-service/internal/model"
)

const firstMachineYear = 1990

type MachineService struct {
	repos Repositories
	now   Clock
}

type MachineInput struct {
	Model        string `json:"model" validate:"required,min=2,max=200"`
	SerialNumber string `json:"serial_number" validate:"required,min=3,max=100"`
	Manufacturer string `json:"manufacturer" validate:"required,min=2,max=200"`
	Year         int    `json:"year" validate:"required"`
	ClientID     string `json:"client_id" validate:"required"`
	Status       string `json:"status"`
	Location     string `json:"location" validate:"required,min=3,max=200"`
	Notes        string `json:"notes"`

	Principal model.Principal `json:"-"`
}

func NewMachineService(repos Repositories) *MachineService {
	return &MachineService{repos: repos, now: time.Now}
}

// WithClock replaces the time source.
func (s *MachineService) WithClock(clock Clock) *MachineService {
	s.now = clock
	return s
}

// List returns the machines visible to the caller: all for admins, their own
// for clients and those on assigned work orders for technicians.
func (s *MachineService) List(ctx context.Context, principal model.Principal, filter model.MachineFilter) ([]model.Machine, error) {
	filter.ClientID = strings.TrimSpace(filter.ClientID)
	filter.Search = strings.TrimSpace(filter.Search)
	switch {
	case principal.IsClient():
		filter.ClientID = principal.UserID
	case principal.IsTechnician():
		ids, err := s.assignedMachineIDs(ctx, principal.UserID)
		if err != nil {
			return nil, err
		}
		filter.IDs = ids
	}
	machines, err := s.repos.Machines.List(ctx, filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return machines, nil
}

func (s *MachineService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Machine, error) {
	machine, err := s.repos.Machines.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	switch {
	case principal.IsClient() && machine.ClientID != principal.UserID:
		return nil, ErrNotFound
	case principal.IsTechnician():
		ids, err := s.assignedMachineIDs(ctx, principal.UserID)
		if err != nil {
			return nil, err
		}
		if !containsID(ids, machine.ID) {
			return nil, ErrNotFound
		}
	}
	return machine, nil
}

func (s *MachineService) Create(ctx context.Context, input MachineInput) (*model.Machine, error) {
	if !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	machine, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	machine.ID = uuid.New()
	machine.CreatedAt = now
	machine.UpdatedAt = now

	saved, err := s.repos.Machines.Create(ctx, *machine)
	if err != nil {
		return nil, storageErr(err)
	}
	return saved, nil
}

// Update replaces every editable field of the machine.
func (s *MachineService) Update(ctx context.Context, id uuid.UUID, input MachineInput) (*model.Machine, error) {
	if !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	existing, err := s.repos.Machines.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	machine, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	machine.ID = existing.ID
	machine.CreatedAt = existing.CreatedAt
	machine.UpdatedAt = s.now().UTC()

	saved, err := s.repos.Machines.Update(ctx, *machine)
	if err != nil {
		return nil, storageErr(err)
	}
	return saved, nil
}

func (s *MachineService) build(ctx context.Context, input MachineInput) (*model.Machine, error) {
	input.Model = strings.TrimSpace(input.Model)
	input.SerialNumber = strings.TrimSpace(input.SerialNumber)
	input.Manufacturer = strings.TrimSpace(input.Manufacturer)
	input.ClientID = strings.TrimSpace(input.ClientID)
	input.Location = strings.TrimSpace(input.Location)

	errs := fieldErrors{}
	checkStruct(input, errs)

	if input.Year != 0 {
		latest := s.now().UTC().Year() + 1
		switch {
		case input.Year < firstMachineYear:
			errs.add("year", "must be greater than or equal to "+strconv.Itoa(firstMachineYear))
		case input.Year > latest:
			errs.add("year", "must be less than or equal to "+strconv.Itoa(latest))
		}
	}

	status := model.MachineStatusOperational
	if strings.TrimSpace(input.Status) != "" {
		parsed, err := model.ParseMachineStatus(input.Status)
		if err != nil {
			errs.add("status", "is not a known machine status")
		}
		status = parsed
	}

	if input.ClientID != "" {
		profile, err := s.repos.Profiles.Get(ctx, input.ClientID)
		switch {
		case err == nil && profile.Role == model.RoleClient:
		case err == nil, storageErr(err) == ErrNotFound:
			errs.add("client_id", "does not reference a client")
		default:
			return nil, storageErr(err)
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return &model.Machine{
		Model:        input.Model,
		SerialNumber: input.SerialNumber,
		Manufacturer: input.Manufacturer,
		Year:         input.Year,
		ClientID:     input.ClientID,
		Status:       status,
		Location:     input.Location,
		Notes:        strings.TrimSpace(input.Notes),
	}, nil
}

func (s *MachineService) assignedMachineIDs(ctx context.Context, technicianID string) ([]uuid.UUID, error) {
	orders, err := s.repos.WorkOrders.List(ctx, model.WorkOrderFilter{TechnicianID: technicianID})
	if err != nil {
		return nil, storageErr(err)
	}
	ids := make([]uuid.UUID, 0)
	for _, wo := range orders {
		if wo.MachineID == nil {
			continue
		}
		id, err := uuid.Parse(*wo.MachineID)
		if err != nil || containsID(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
