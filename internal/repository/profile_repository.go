package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type profileRow struct {
	ID        string
	Email     string
	FullName  string
	Role      model.Role
	CreatedAt time.Time
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*model.Profile, error) {
	var row profileRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, email, full_name, role, created_at
		FROM profiles
		WHERE id = ?
	`, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, ErrNotFound
	}
	profile := model.Profile(row)
	return &profile, nil
}

func (r *ProfileRepository) ListByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	var rows []profileRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, email, full_name, role, created_at
		FROM profiles
		WHERE role = ?
		ORDER BY full_name ASC
	`, role).Scan(&rows).Error; err != nil {
		return nil, err
	}
	profiles := make([]model.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, model.Profile(row))
	}
	return profiles, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile model.Profile) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO profiles (id, email, full_name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role
	`, profile.ID, profile.Email, profile.FullName, profile.Role, profile.CreatedAt).Error
}
