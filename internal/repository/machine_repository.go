package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type MachineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

type machineRow struct {
	ID           uuid.UUID
	Model        string
	SerialNumber string
	Manufacturer string
	Year         int
	ClientID     string
	ClientName   string
	Status       model.MachineStatus
	Location     string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const machineSelect = `
	SELECT
		m.id,
		m.model,
		m.serial_number,
		m.manufacturer,
		m.year,
		m.client_id,
		COALESCE(p.full_name, '') AS client_name,
		m.status,
		m.location,
		m.notes,
		m.created_at,
		m.updated_at
	FROM machines m
	LEFT JOIN profiles p ON p.id = m.client_id
`

func (r *MachineRepository) List(ctx context.Context, filter model.MachineFilter) ([]model.Machine, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ClientID != "" {
		conditions = append(conditions, "m.client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []model.Machine{}, nil
		}
		conditions = append(conditions, "m.id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		conditions = append(conditions, `(
			m.model ILIKE ? OR
			m.serial_number ILIKE ? OR
			m.manufacturer ILIKE ? OR
			COALESCE(p.full_name, '') ILIKE ?
		)`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := machineSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.model ASC, m.id ASC"

	var rows []machineRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	machines := make([]model.Machine, 0, len(rows))
	for _, row := range rows {
		machines = append(machines, model.Machine(row))
	}
	return machines, nil
}

func (r *MachineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Machine, error) {
	var row machineRow
	if err := r.db.WithContext(ctx).Raw(machineSelect+" WHERE m.id = ?", id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	machine := model.Machine(row)
	return &machine, nil
}

func (r *MachineRepository) Create(ctx context.Context, machine model.Machine) (*model.Machine, error) {
	if machine.ID == uuid.Nil {
		machine.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Exec(`
		INSERT INTO machines (
			id,
			model,
			serial_number,
			manufacturer,
			year,
			client_id,
			status,
			location,
			notes,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		machine.ID,
		machine.Model,
		machine.SerialNumber,
		machine.Manufacturer,
		machine.Year,
		machine.ClientID,
		machine.Status,
		machine.Location,
		machine.Notes,
		machine.CreatedAt,
		machine.UpdatedAt,
	).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, machine.ID)
}

func (r *MachineRepository) Update(ctx context.Context, machine model.Machine) (*model.Machine, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE machines
		SET
			model = ?,
			serial_number = ?,
			manufacturer = ?,
			year = ?,
			client_id = ?,
			status = ?,
			location = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`,
		machine.Model,
		machine.SerialNumber,
		machine.Manufacturer,
		machine.Year,
		machine.ClientID,
		machine.Status,
		machine.Location,
		machine.Notes,
		machine.UpdatedAt,
		machine.ID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, machine.ID)
}
