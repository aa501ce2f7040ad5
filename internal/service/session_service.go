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

type SessionService struct {
	repos Repositories
	log   zerolog.Logger
	now   Clock
}

type StartSessionInput struct {
	WorkOrderID     string `json:"work_order_id" validate:"required"`
	TechnicianID    string `json:"technician_id"`
	Notes           string `json:"notes"`
	GeofenceEnabled bool   `json:"geofence_enabled"`

	Principal model.Principal `json:"-"`
}

type StartSessionResult struct {
	Session model.Session   `json:"session"`
	Paused  []model.Session `json:"paused"`
}

type PartLineInput struct {
	PartID        string   `json:"part_id"`
	Name          string   `json:"name"`
	Quantity      int      `json:"quantity" validate:"gt=0"`
	EstimatedCost *float64 `json:"estimated_cost" validate:"omitempty,gte=0"`
}

type FinishSessionInput struct {
	Notes     string          `json:"notes"`
	Photos    []string        `json:"photos"`
	PartsUsed []PartLineInput `json:"parts_used" validate:"dive"`
}

type SessionFilter struct {
	TechnicianID string
	WorkOrderID  string
}

func NewSessionService(repos Repositories, log zerolog.Logger) *SessionService {
	return &SessionService{repos: repos, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *SessionService) WithClock(clock Clock) *SessionService {
	s.now = clock
	return s
}

// Start opens a new active session. Any session the technician still has
// active is paused first; starting never fails because of one.
func (s *SessionService) Start(ctx context.Context, input StartSessionInput) (*StartSessionResult, error) {
	switch {
	case input.Principal.IsClient():
		return nil, ErrPermissionDenied
	case input.Principal.IsTechnician():
		input.TechnicianID = input.Principal.UserID
	}
	input.WorkOrderID = strings.TrimSpace(input.WorkOrderID)
	input.TechnicianID = strings.TrimSpace(input.TechnicianID)

	errs := fieldErrors{}
	checkStruct(input, errs)
	if input.TechnicianID == "" {
		errs.add("technician_id", "is required")
	} else {
		profile, err := s.repos.Profiles.Get(ctx, input.TechnicianID)
		switch {
		case err == nil && profile.Role == model.RoleTechnician:
		case err == nil, storageErr(err) == ErrNotFound:
			errs.add("technician_id", "does not reference a technician")
		default:
			return nil, storageErr(err)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if _, err := s.repos.WorkOrders.Get(ctx, input.WorkOrderID); err != nil {
		return nil, storageErr(err)
	}

	now := s.now().UTC()
	session := model.Session{
		ID:              uuid.New(),
		WorkOrderID:     input.WorkOrderID,
		TechnicianID:    input.TechnicianID,
		Status:          model.SessionStatusActive,
		StartedAt:       now,
		PausedAt:        []time.Time{},
		Notes:           strings.TrimSpace(input.Notes),
		Photos:          []string{},
		PartsUsed:       []model.PartLine{},
		GeofenceEnabled: input.GeofenceEnabled,
		CreatedAt:       now,
	}
	saved, paused, err := s.repos.Sessions.Start(ctx, session, now)
	if err != nil {
		return nil, storageErr(err)
	}
	if len(paused) > 0 {
		s.log.Info().
			Str("technician_id", saved.TechnicianID).
			Int("paused", len(paused)).
			Msg("superseded active sessions")
	}
	return &StartSessionResult{Session: *saved, Paused: paused}, nil
}

func (s *SessionService) Pause(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Session, error) {
	session, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusActive || session.IsTerminal() {
		return nil, fmt.Errorf("%w: session is not active", ErrConflict)
	}
	session.Status = model.SessionStatusPaused
	session.PausedAt = append(session.PausedAt, s.now().UTC())
	return s.save(ctx, session)
}

// Resume reactivates a paused session and pauses whatever else the
// technician has running.
func (s *SessionService) Resume(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Session, error) {
	session, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusPaused || session.IsTerminal() {
		return nil, fmt.Errorf("%w: session is not paused", ErrConflict)
	}
	if _, err := s.repos.Sessions.PauseActiveByTechnician(ctx, session.TechnicianID, s.now().UTC()); err != nil {
		return nil, storageErr(err)
	}
	session.Status = model.SessionStatusActive
	return s.save(ctx, session)
}

// Finish closes an active or paused session and merges the supplied notes,
// photos and parts. A finished session is never modified again.
func (s *SessionService) Finish(ctx context.Context, principal model.Principal, id uuid.UUID, input FinishSessionInput) (*model.Session, error) {
	session, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, fmt.Errorf("%w: session already finished", ErrConflict)
	}

	errs := fieldErrors{}
	checkStruct(input, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}
	lines, err := s.partLines(ctx, input.PartsUsed)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session.Status = model.SessionStatusCompleted
	session.FinishedAt = &now
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		session.Notes = notes
	}
	session.Photos = append(session.Photos, cleanPhotos(input.Photos)...)
	session.PartsUsed = append(session.PartsUsed, lines...)

	saved, err := s.save(ctx, session)
	if err != nil {
		return nil, err
	}
	recordActivity(ctx, s.repos.Activity, s.log, s.now, model.ActivityEvent{
		WorkOrderID:     saved.WorkOrderID,
		Type:            model.ActivitySessionCompleted,
		Title:           "Service session completed",
		Description:     "Duration " + FormatDuration(SessionMinutes(*saved, now)),
		VisibleToClient: true,
	})
	return saved, nil
}

func (s *SessionService) UpdateNotes(ctx context.Context, principal model.Principal, id uuid.UUID, notes string) (*model.Session, error) {
	session, err := s.mutable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	session.Notes = strings.TrimSpace(notes)
	return s.save(ctx, session)
}

func (s *SessionService) AddPhoto(ctx context.Context, principal model.Principal, id uuid.UUID, photo string) (*model.Session, error) {
	photos := cleanPhotos([]string{photo})
	if len(photos) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"photo": "is required"}}
	}
	session, err := s.mutable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	session.Photos = append(session.Photos, photos...)
	return s.save(ctx, session)
}

func (s *SessionService) AddPart(ctx context.Context, principal model.Principal, id uuid.UUID, input PartLineInput) (*model.Session, error) {
	errs := fieldErrors{}
	checkStruct(input, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}
	session, err := s.mutable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.partLines(ctx, []PartLineInput{input})
	if err != nil {
		return nil, err
	}
	session.PartsUsed = append(session.PartsUsed, lines...)
	return s.save(ctx, session)
}

func (s *SessionService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Session, error) {
	return s.owned(ctx, principal, id)
}

// Active returns the technician's running session.
func (s *SessionService) Active(ctx context.Context, principal model.Principal, technicianID string) (*model.Session, error) {
	if principal.IsTechnician() {
		technicianID = principal.UserID
	}
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, &ValidationError{Fields: map[string]string{"technician_id": "is required"}}
	}
	session, err := s.repos.Sessions.ActiveByTechnician(ctx, technicianID)
	if err != nil {
		return nil, storageErr(err)
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, principal model.Principal, filter SessionFilter) ([]model.Session, error) {
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	if principal.IsTechnician() {
		filter.TechnicianID = principal.UserID
	}

	var (
		sessions []model.Session
		err      error
	)
	switch {
	case filter.WorkOrderID != "":
		sessions, err = s.repos.Sessions.ListByWorkOrder(ctx, filter.WorkOrderID)
		if err == nil && filter.TechnicianID != "" {
			sessions = filterByTechnician(sessions, filter.TechnicianID)
		}
	case filter.TechnicianID != "":
		sessions, err = s.repos.Sessions.ListByTechnician(ctx, filter.TechnicianID)
	default:
		return nil, &ValidationError{Fields: map[string]string{"technician_id": "technician_id or work_order_id is required"}}
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return sessions, nil
}

// Duration reports the elapsed time of the session as of now.
func (s *SessionService) Duration(session model.Session) (int, string) {
	minutes := SessionMinutes(session, s.now())
	return minutes, FormatDuration(minutes)
}

func (s *SessionService) owned(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Session, error) {
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	session, err := s.repos.Sessions.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if !principal.IsAdmin() && session.TechnicianID != principal.UserID {
		return nil, ErrPermissionDenied
	}
	return session, nil
}

func (s *SessionService) mutable(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Session, error) {
	session, err := s.owned(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, fmt.Errorf("%w: session already finished", ErrConflict)
	}
	return session, nil
}

func (s *SessionService) save(ctx context.Context, session *model.Session) (*model.Session, error) {
	if err := s.repos.Sessions.Update(ctx, *session); err != nil {
		return nil, storageErr(err)
	}
	return session, nil
}

// partLines resolves catalog references; explicit name and cost win over the catalog.
func (s *SessionService) partLines(ctx context.Context, inputs []PartLineInput) ([]model.PartLine, error) {
	lines := make([]model.PartLine, 0, len(inputs))
	errs := fieldErrors{}
	for i, in := range inputs {
		line := model.PartLine{
			PartID:   strings.TrimSpace(in.PartID),
			Name:     strings.TrimSpace(in.Name),
			Quantity: in.Quantity,
		}
		if in.EstimatedCost != nil {
			line.EstimatedCost = *in.EstimatedCost
		}
		if line.PartID != "" && (line.Name == "" || in.EstimatedCost == nil) {
			part, err := s.lookupPart(ctx, line.PartID)
			if err != nil {
				if err == ErrNotFound {
					errs.add(fmt.Sprintf("parts_used[%d].part_id", i), "does not reference a catalog part")
					continue
				}
				return nil, err
			}
			if line.Name == "" {
				line.Name = part.Name
			}
			if in.EstimatedCost == nil {
				line.EstimatedCost = part.Cost
			}
		}
		if line.Name == "" {
			errs.add(fmt.Sprintf("parts_used[%d].name", i), "is required")
			continue
		}
		lines = append(lines, line)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *SessionService) lookupPart(ctx context.Context, rawID string) (*model.Part, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	part, err := s.repos.Parts.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return part, nil
}

func cleanPhotos(photos []string) []string {
	result := make([]string, 0, len(photos))
	for _, p := range photos {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func filterByTechnician(sessions []model.Session, technicianID string) []model.Session {
	result := sessions[:0]
	for _, session := range sessions {
		if session.TechnicianID == technicianID {
			result = append(result, session)
		}
	}
	return result
}
