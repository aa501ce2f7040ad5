package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/cnc-service/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

type documentRow struct {
	ID              uuid.UUID
	WorkOrderID     string
	Type            model.DocumentType
	Number          string
	Status          model.DocumentStatus
	Items           string
	Subtotal        float64
	TaxRate         float64
	TaxAmount       float64
	Total           float64
	Notes           string
	ValidUntil      *time.Time
	ClientSignature *string
	SignedBy        *string
	SignedAt        *time.Time
	RejectionReason *string
	SourceID        *uuid.UUID
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const documentSelect = `
	SELECT
		id,
		work_order_id,
		type,
		number,
		status,
		items::text AS items,
		subtotal,
		tax_rate,
		tax_amount,
		total,
		notes,
		valid_until,
		client_signature,
		signed_by,
		signed_at,
		rejection_reason,
		source_document_id AS source_id,
		created_by,
		created_at,
		updated_at
	FROM documents
`

var numberSequences = map[model.DocumentType]string{
	model.DocumentTypeQuote:         "quote_number_seq",
	model.DocumentTypePurchaseOrder: "purchase_order_number_seq",
	model.DocumentTypeInvoice:       "invoice_number_seq",
}

func (r *DocumentRepository) Create(ctx context.Context, doc model.Document) (*model.Document, error) {
	sequence, ok := numberSequences[doc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown document type %q", doc.Type)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	items, err := toJSON(nonNil(doc.Items))
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Raw(`SELECT nextval(?::regclass)`, sequence).Scan(&seq).Error; err != nil {
			return err
		}
		doc.Number = fmt.Sprintf("%s-%04d", doc.Type.NumberPrefix(), seq)

		return tx.Exec(`
			INSERT INTO documents (
				id,
				work_order_id,
				type,
				number,
				status,
				items,
				subtotal,
				tax_rate,
				tax_amount,
				total,
				notes,
				valid_until,
				client_signature,
				signed_by,
				signed_at,
				rejection_reason,
				source_document_id,
				created_by,
				created_at,
				updated_at
			) VALUES (?, ?, ?, ?, ?, ?::jsonb, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			doc.ID,
			doc.WorkOrderID,
			doc.Type,
			doc.Number,
			doc.Status,
			items,
			doc.Subtotal,
			doc.TaxRate,
			doc.TaxAmount,
			doc.Total,
			doc.Notes,
			doc.ValidUntil,
			doc.ClientSignature,
			doc.SignedBy,
			doc.SignedAt,
			doc.RejectionReason,
			doc.SourceDocumentID,
			doc.CreatedBy,
			doc.CreatedAt,
			doc.UpdatedAt,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, doc.ID)
}

func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	docs, err := r.query(ctx, documentSelect+" WHERE id = ? LIMIT 1", id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc model.Document) error {
	items, err := toJSON(nonNil(doc.Items))
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Exec(`
		UPDATE documents
		SET
			status = ?,
			items = ?::jsonb,
			subtotal = ?,
			tax_rate = ?,
			tax_amount = ?,
			total = ?,
			notes = ?,
			valid_until = ?,
			client_signature = ?,
			signed_by = ?,
			signed_at = ?,
			rejection_reason = ?,
			updated_at = ?
		WHERE id = ?
	`,
		doc.Status,
		items,
		doc.Subtotal,
		doc.TaxRate,
		doc.TaxAmount,
		doc.Total,
		doc.Notes,
		doc.ValidUntil,
		doc.ClientSignature,
		doc.SignedBy,
		doc.SignedAt,
		doc.RejectionReason,
		doc.UpdatedAt,
		doc.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]model.Document, error) {
	return r.query(ctx, documentSelect+`
		WHERE work_order_id = ?
		ORDER BY created_at ASC
	`, workOrderID)
}

func (r *DocumentRepository) ListByWorkOrders(ctx context.Context, workOrderIDs []string, docType *model.DocumentType) ([]model.Document, error) {
	if len(workOrderIDs) == 0 {
		return []model.Document{}, nil
	}
	query := documentSelect + " WHERE work_order_id IN (" + placeholders(len(workOrderIDs)) + ")"
	args := toArgs(workOrderIDs)
	if docType != nil {
		query += " AND type = ?"
		args = append(args, *docType)
	}
	query += " ORDER BY created_at ASC"
	return r.query(ctx, query, args...)
}

func (r *DocumentRepository) ListByType(ctx context.Context, docType model.DocumentType) ([]model.Document, error) {
	return r.query(ctx, documentSelect+`
		WHERE type = ?
		ORDER BY created_at ASC
	`, docType)
}

func (r *DocumentRepository) query(ctx context.Context, query string, args ...interface{}) ([]model.Document, error) {
	var rows []documentRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(rows))
	for _, row := range rows {
		doc := model.Document{
			ID:              row.ID,
			WorkOrderID:     row.WorkOrderID,
			Type:            row.Type,
			Number:          row.Number,
			Status:          row.Status,
			Items:           []model.DocumentItem{},
			Subtotal:        row.Subtotal,
			TaxRate:         row.TaxRate,
			TaxAmount:       row.TaxAmount,
			Total:           row.Total,
			Notes:           row.Notes,
			ValidUntil:      row.ValidUntil,
			ClientSignature: row.ClientSignature,
			SignedBy:        row.SignedBy,
			SignedAt:        row.SignedAt,
			RejectionReason: row.RejectionReason,
			CreatedBy:       row.CreatedBy,
			CreatedAt:       row.CreatedAt,
			UpdatedAt:       row.UpdatedAt,
		}
		doc.SourceDocumentID = row.SourceID
		if err := fromJSON(row.Items, &doc.Items); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
