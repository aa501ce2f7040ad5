package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

type workOrderRow struct {
	ID                     string
	Title                  string
	Description            string
	Type                   model.WorkOrderType
	Status                 model.WorkOrderStatus
	Priority               model.Priority
	EstimatedDate          *time.Time
	EstimatedDurationHours *float64
	ClientID               string
	ClientName             string
	MachineID              *string
	PublicKey              string
	CreatedBy              string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const workOrderSelect = `
	SELECT
		wo.id,
		wo.title,
		wo.description,
		wo.type,
		wo.status,
		wo.priority,
		wo.estimated_date,
		wo.estimated_duration_hours,
		wo.client_id,
		COALESCE(p.full_name, '') AS client_name,
		wo.machine_id,
		wo.public_key,
		wo.created_by,
		wo.created_at,
		wo.updated_at
	FROM work_orders wo
	LEFT JOIN profiles p ON p.id = wo.client_id
`

func (r *WorkOrderRepository) Create(ctx context.Context, wo model.WorkOrder) (*model.WorkOrder, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Raw(`SELECT nextval('work_order_number_seq')`).Scan(&seq).Error; err != nil {
			return err
		}
		wo.ID = fmt.Sprintf("WO-%04d", seq)

		if err := tx.Exec(`
			INSERT INTO work_orders (
				id,
				seq,
				title,
				description,
				type,
				status,
				priority,
				estimated_date,
				estimated_duration_hours,
				client_id,
				machine_id,
				public_key,
				created_by,
				created_at,
				updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			wo.ID,
			seq,
			wo.Title,
			wo.Description,
			wo.Type,
			wo.Status,
			wo.Priority,
			wo.EstimatedDate,
			wo.EstimatedDurationHours,
			wo.ClientID,
			wo.MachineID,
			wo.PublicKey,
			wo.CreatedBy,
			wo.CreatedAt,
			wo.UpdatedAt,
		).Error; err != nil {
			return err
		}
		return replaceTechnicians(tx, wo.ID, wo.AssignedTechnicians)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, wo.ID)
}

func (r *WorkOrderRepository) Get(ctx context.Context, id string) (*model.WorkOrder, error) {
	return r.getBy(ctx, "wo.id = ?", id)
}

func (r *WorkOrderRepository) GetByPublicKey(ctx context.Context, publicKey string) (*model.WorkOrder, error) {
	return r.getBy(ctx, "wo.public_key = ?", publicKey)
}

func (r *WorkOrderRepository) getBy(ctx context.Context, where string, arg interface{}) (*model.WorkOrder, error) {
	var rows []workOrderRow
	if err := r.db.WithContext(ctx).Raw(workOrderSelect+" WHERE "+where+" LIMIT 1", arg).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	orders, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *WorkOrderRepository) List(ctx context.Context, filter model.WorkOrderFilter) ([]model.WorkOrder, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != nil {
		conditions = append(conditions, "wo.status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Type != nil {
		conditions = append(conditions, "wo.type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "wo.priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.ClientID != "" {
		conditions = append(conditions, "wo.client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.TechnicianID != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM work_order_technicians t
			WHERE t.work_order_id = wo.id AND t.technician_id = ?
		)`)
		args = append(args, filter.TechnicianID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "wo.estimated_date >= ?")
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "wo.estimated_date <= ?")
		args = append(args, *filter.DateTo)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		conditions = append(conditions, "(wo.id ILIKE ? OR wo.title ILIKE ? OR p.full_name ILIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := workOrderSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY wo.seq ASC"

	var rows []workOrderRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, id string, status model.WorkOrderStatus, at time.Time) (*model.WorkOrder, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE work_orders
		SET status = ?, updated_at = ?
		WHERE id = ?
	`, status, at, id)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *WorkOrderRepository) SetTechnicians(ctx context.Context, id string, technicianIDs []string, at time.Time) (*model.WorkOrder, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(`UPDATE work_orders SET updated_at = ? WHERE id = ?`, at, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return replaceTechnicians(tx, id, technicianIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func replaceTechnicians(tx *gorm.DB, workOrderID string, technicianIDs []string) error {
	if err := tx.Exec(`DELETE FROM work_order_technicians WHERE work_order_id = ?`, workOrderID).Error; err != nil {
		return err
	}
	for position, technicianID := range technicianIDs {
		if err := tx.Exec(`
			INSERT INTO work_order_technicians (work_order_id, technician_id, position)
			VALUES (?, ?, ?)
		`, workOrderID, technicianID, position).Error; err != nil {
			return err
		}
	}
	return nil
}

// hydrate converts rows and loads the technician assignments in one query.
func (r *WorkOrderRepository) hydrate(ctx context.Context, rows []workOrderRow) ([]model.WorkOrder, error) {
	orders := make([]model.WorkOrder, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var assignments []struct {
		WorkOrderID  string
		TechnicianID string
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT work_order_id, technician_id
		FROM work_order_technicians
		WHERE work_order_id IN (`+placeholders(len(ids))+`)
		ORDER BY work_order_id, position
	`, toArgs(ids)...).Scan(&assignments).Error; err != nil {
		return nil, err
	}
	byOrder := make(map[string][]string, len(rows))
	for _, a := range assignments {
		byOrder[a.WorkOrderID] = append(byOrder[a.WorkOrderID], a.TechnicianID)
	}

	for _, row := range rows {
		technicians := byOrder[row.ID]
		if technicians == nil {
			technicians = []string{}
		}
		orders = append(orders, model.WorkOrder{
			ID:                     row.ID,
			Title:                  row.Title,
			Description:            row.Description,
			Type:                   row.Type,
			Status:                 row.Status,
			Priority:               row.Priority,
			EstimatedDate:          row.EstimatedDate,
			EstimatedDurationHours: row.EstimatedDurationHours,
			AssignedTechnicians:    technicians,
			ClientID:               row.ClientID,
			ClientName:             row.ClientName,
			MachineID:              row.MachineID,
			PublicKey:              row.PublicKey,
			CreatedBy:              row.CreatedBy,
			CreatedAt:              row.CreatedAt,
			UpdatedAt:              row.UpdatedAt,
		})
	}
	return orders, nil
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
