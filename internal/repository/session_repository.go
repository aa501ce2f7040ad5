package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID              uuid.UUID
	WorkOrderID     string
	TechnicianID    string
	Status          model.SessionStatus
	StartedAt       time.Time
	PausedAt        string
	FinishedAt      *time.Time
	Notes           string
	Photos          string
	PartsUsed       string
	GeofenceEnabled bool
	CreatedAt       time.Time
}

const sessionSelect = `
	SELECT
		id,
		work_order_id,
		technician_id,
		status,
		started_at,
		paused_at::text AS paused_at,
		finished_at,
		notes,
		photos::text AS photos,
		parts_used::text AS parts_used,
		geofence_enabled,
		created_at
	FROM work_sessions
`

func (r *SessionRepository) Start(ctx context.Context, session model.Session, at time.Time) (*model.Session, []model.Session, error) {
	var paused []model.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		paused, err = pauseActive(tx, session.TechnicianID, at)
		if err != nil {
			return err
		}
		return insertSession(tx, session)
	})
	if err != nil {
		return nil, nil, err
	}
	stored, err := r.Get(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return stored, paused, nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sessions, err := querySessions(r.db.WithContext(ctx), sessionSelect+" WHERE id = ? LIMIT 1", id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

func (r *SessionRepository) Update(ctx context.Context, session model.Session) error {
	return updateSession(r.db.WithContext(ctx), session)
}

func (r *SessionRepository) PauseActiveByTechnician(ctx context.Context, technicianID string, at time.Time) ([]model.Session, error) {
	var paused []model.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		paused, err = pauseActive(tx, technicianID, at)
		return err
	})
	return paused, err
}

func (r *SessionRepository) ActiveByTechnician(ctx context.Context, technicianID string) (*model.Session, error) {
	sessions, err := querySessions(r.db.WithContext(ctx), sessionSelect+`
		WHERE technician_id = ? AND status = ?
		ORDER BY started_at DESC, created_at DESC, id DESC
		LIMIT 1
	`, technicianID, model.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

func (r *SessionRepository) ListByTechnician(ctx context.Context, technicianID string) ([]model.Session, error) {
	return querySessions(r.db.WithContext(ctx), sessionSelect+`
		WHERE technician_id = ?
		ORDER BY started_at DESC, created_at DESC, id DESC
	`, technicianID)
}

func (r *SessionRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.Session, error) {
	return querySessions(r.db.WithContext(ctx), sessionSelect+`
		WHERE work_order_id = ?
		ORDER BY started_at DESC, created_at DESC, id DESC
	`, workOrderID)
}

func pauseActive(tx *gorm.DB, technicianID string, at time.Time) ([]model.Session, error) {
	active, err := querySessions(tx, sessionSelect+`
		WHERE technician_id = ? AND status = ?
		FOR UPDATE
	`, technicianID, model.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	for i := range active {
		active[i].Status = model.SessionStatusPaused
		active[i].PausedAt = append(active[i].PausedAt, at)
		if err := updateSession(tx, active[i]); err != nil {
			return nil, err
		}
	}
	return active, nil
}

func insertSession(tx *gorm.DB, s model.Session) error {
	pausedAt, photos, parts, err := sessionJSON(s)
	if err != nil {
		return err
	}
	return tx.Exec(`
		INSERT INTO work_sessions (
			id,
			work_order_id,
			technician_id,
			status,
			started_at,
			paused_at,
			finished_at,
			notes,
			photos,
			parts_used,
			geofence_enabled,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?::jsonb, ?, ?, ?::jsonb, ?::jsonb, ?, ?)
	`,
		s.ID,
		s.WorkOrderID,
		s.TechnicianID,
		s.Status,
		s.StartedAt,
		pausedAt,
		s.FinishedAt,
		s.Notes,
		photos,
		parts,
		s.GeofenceEnabled,
		s.CreatedAt,
	).Error
}

func updateSession(tx *gorm.DB, s model.Session) error {
	pausedAt, photos, parts, err := sessionJSON(s)
	if err != nil {
		return err
	}
	result := tx.Exec(`
		UPDATE work_sessions
		SET
			status = ?,
			paused_at = ?::jsonb,
			finished_at = ?,
			notes = ?,
			photos = ?::jsonb,
			parts_used = ?::jsonb
		WHERE id = ?
	`, s.Status, pausedAt, s.FinishedAt, s.Notes, photos, parts, s.ID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func sessionJSON(s model.Session) (pausedAt, photos, parts string, err error) {
	if pausedAt, err = toJSON(nonNil(s.PausedAt)); err != nil {
		return
	}
	if photos, err = toJSON(nonNil(s.Photos)); err != nil {
		return
	}
	parts, err = toJSON(nonNil(s.PartsUsed))
	return
}

func querySessions(db *gorm.DB, query string, args ...interface{}) ([]model.Session, error) {
	var rows []sessionRow
	if err := db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]model.Session, 0, len(rows))
	for _, row := range rows {
		s := model.Session{
			ID:              row.ID,
			WorkOrderID:     row.WorkOrderID,
			TechnicianID:    row.TechnicianID,
			Status:          row.Status,
			StartedAt:       row.StartedAt,
			FinishedAt:      row.FinishedAt,
			Notes:           row.Notes,
			GeofenceEnabled: row.GeofenceEnabled,
			CreatedAt:       row.CreatedAt,
			PausedAt:        []time.Time{},
			Photos:          []string{},
			PartsUsed:       []model.PartLine{},
		}
		if err := fromJSON(row.PausedAt, &s.PausedAt); err != nil {
			return nil, err
		}
		if err := fromJSON(row.Photos, &s.Photos); err != nil {
			return nil, err
		}
		if err := fromJSON(row.PartsUsed, &s.PartsUsed); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
