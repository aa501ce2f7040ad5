package model

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID              uuid.UUID      `json:"id"`
	WorkOrderID     string         `json:"work_order_id"`
	Type            DocumentType   `json:"type"`
	Number          string         `json:"number"`
	Status          DocumentStatus `json:"status"`
	Items           []DocumentItem `json:"items"`
	Subtotal        float64        `json:"subtotal"`
	TaxRate         float64        `json:"tax_rate"`
	TaxAmount       float64        `json:"tax_amount"`
	Total           float64        `json:"total"`
	Notes           string         `json:"notes,omitempty"`
	ValidUntil      *time.Time     `json:"valid_until,omitempty"`
	ClientSignature *string        `json:"client_signature,omitempty"`
	SignedBy        *string        `json:"signed_by,omitempty"`
	SignedAt        *time.Time     `json:"signed_at,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	PDFURL          string         `json:"pdf_url,omitempty"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	// SourceDocumentID links a purchase order to the quote it was generated from.
	SourceDocumentID *uuid.UUID `json:"source_document_id,omitempty"`
}

type DocumentItem struct {
	PartID      string  `json:"part_id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// DocumentRender bundles what the PDF renderer needs besides the document.
type DocumentRender struct {
	Document  Document
	WorkOrder WorkOrder
	Client    Profile
}
