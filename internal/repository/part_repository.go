package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

type partRow struct {
	ID        uuid.UUID
	Name      string
	Cost      float64
	CreatedAt time.Time
}

func (r *PartRepository) List(ctx context.Context, search string) ([]model.Part, error) {
	query := `SELECT id, name, cost, created_at FROM parts_catalog`
	var args []interface{}
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE name ILIKE ?`
		args = append(args, likePattern(search))
	}
	query += ` ORDER BY name ASC`

	var rows []partRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	parts := make([]model.Part, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, model.Part(row))
	}
	return parts, nil
}

func (r *PartRepository) Get(ctx context.Context, id uuid.UUID) (*model.Part, error) {
	var row partRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, cost, created_at
		FROM parts_catalog
		WHERE id = ?
	`, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	part := model.Part(row)
	return &part, nil
}

func (r *PartRepository) Create(ctx context.Context, part model.Part) (*model.Part, error) {
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Exec(`
		INSERT INTO parts_catalog (id, name, cost, created_at)
		VALUES (?, ?, ?, ?)
	`, part.ID, part.Name, part.Cost, part.CreatedAt).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, part.ID)
}
