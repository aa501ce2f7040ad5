package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/model"
)

const maxSignatureBytes = 2 << 20

type PDFRenderer interface {
	Render(doc model.DocumentRender) ([]byte, error)
}

type DocumentService struct {
	repos          Repositories
	pdf            PDFRenderer
	log            zerolog.Logger
	now            Clock
	defaultTaxRate float64
	publicBaseURL  string
}

type DocumentItemInput struct {
	PartID      string  `json:"part_id"`
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type CreateDocumentInput struct {
	WorkOrderID string              `json:"work_order_id" validate:"required"`
	Type        string              `json:"type" validate:"required"`
	Items       []DocumentItemInput `json:"items" validate:"required,min=1,dive"`
	TaxRate     *float64            `json:"tax_rate" validate:"omitempty,gte=0,lte=1"`
	Notes       string              `json:"notes"`
	ValidUntil  *time.Time          `json:"valid_until"`
	Draft       bool                `json:"draft"`

	Principal model.Principal `json:"-"`
}

type RenderResult struct {
	FileName string
	Content  []byte
}

func NewDocumentService(repos Repositories, pdf PDFRenderer, cfg *config.Config, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		repos:          repos,
		pdf:            pdf,
		log:            log,
		now:            time.Now,
		defaultTaxRate: cfg.Documents.DefaultTaxRate,
		publicBaseURL:  strings.TrimRight(cfg.Documents.PublicBaseURL, "/"),
	}
}

// WithClock replaces the time source.
func (s *DocumentService) WithClock(clock Clock) *DocumentService {
	s.now = clock
	return s
}

func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*model.Document, error) {
	if input.Principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	input.WorkOrderID = strings.TrimSpace(input.WorkOrderID)

	errs := fieldErrors{}
	checkStruct(input, errs)
	var docType model.DocumentType
	if input.Type != "" {
		parsed, err := model.ParseDocumentType(input.Type)
		if err != nil {
			errs.add("type", "is not a known document type")
		}
		docType = parsed
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if _, err := s.repos.WorkOrders.Get(ctx, input.WorkOrderID); err != nil {
		return nil, storageErr(err)
	}

	items := make([]model.DocumentItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, model.DocumentItem{
			PartID:      strings.TrimSpace(in.PartID),
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		})
	}
	items = withLineTotals(items)

	taxRate := s.defaultTaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	totals := CalculateTotals(items, taxRate)

	status := model.DocumentStatusPendingSignature
	if input.Draft {
		status = model.DocumentStatusDraft
	}
	now := s.now().UTC()
	doc := model.Document{
		ID:          uuid.New(),
		WorkOrderID: input.WorkOrderID,
		Type:        docType,
		Status:      status,
		Items:       items,
		Subtotal:    totals.Subtotal,
		TaxRate:     taxRate,
		TaxAmount:   totals.TaxAmount,
		Total:       totals.Total,
		Notes:       strings.TrimSpace(input.Notes),
		ValidUntil:  input.ValidUntil,
		CreatedBy:   input.Principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	saved, err := s.repos.Documents.Create(ctx, doc)
	if err != nil {
		return nil, storageErr(err)
	}
	return s.decorate(saved), nil
}

// CreatePurchaseOrderFromQuote copies the items of a quote into a new purchase
// order awaiting signature. A quote yields at most one purchase order.
func (s *DocumentService) CreatePurchaseOrderFromQuote(ctx context.Context, principal model.Principal, quoteID uuid.UUID) (*model.Document, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.repos.Documents.Get(ctx, quoteID)
	if err != nil {
		return nil, storageErr(err)
	}
	if quote.Type != model.DocumentTypeQuote {
		return nil, &ValidationError{Fields: map[string]string{"id": "is not a quote"}}
	}
	if quote.Status == model.DocumentStatusRejected {
		return nil, fmt.Errorf("%w: quote %s was rejected", ErrConflict, quote.Number)
	}
	siblings, err := s.repos.Documents.ListByWorkOrder(ctx, quote.WorkOrderID)
	if err != nil {
		return nil, storageErr(err)
	}
	for _, doc := range siblings {
		if doc.Type == model.DocumentTypePurchaseOrder && doc.SourceDocumentID != nil && *doc.SourceDocumentID == quote.ID {
			return nil, fmt.Errorf("%w: quote %s already has purchase order %s", ErrConflict, quote.Number, doc.Number)
		}
	}

	items := withLineTotals(quote.Items)
	totals := CalculateTotals(items, quote.TaxRate)
	now := s.now().UTC()
	source := quote.ID
	saved, err := s.repos.Documents.Create(ctx, model.Document{
		ID:               uuid.New(),
		WorkOrderID:      quote.WorkOrderID,
		Type:             model.DocumentTypePurchaseOrder,
		Status:           model.DocumentStatusPendingSignature,
		Items:            items,
		Subtotal:         totals.Subtotal,
		TaxRate:          quote.TaxRate,
		TaxAmount:        totals.TaxAmount,
		Total:            totals.Total,
		Notes:            quote.Notes,
		CreatedBy:        principal.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
		SourceDocumentID: &source,
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return s.decorate(saved), nil
}

func (s *DocumentService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Document, error) {
	doc, _, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return s.decorate(doc), nil
}

func (s *DocumentService) ListByWorkOrder(ctx context.Context, principal model.Principal, workOrderID string) ([]model.Document, error) {
	workOrderID = strings.TrimSpace(workOrderID)
	if workOrderID == "" {
		return nil, &ValidationError{Fields: map[string]string{"work_order_id": "is required"}}
	}
	wo, err := s.repos.WorkOrders.Get(ctx, workOrderID)
	if err != nil {
		return nil, storageErr(err)
	}
	if principal.IsClient() && wo.ClientID != principal.UserID {
		return nil, ErrNotFound
	}
	docs, err := s.repos.Documents.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, storageErr(err)
	}
	for i := range docs {
		docs[i] = *s.decorate(&docs[i])
	}
	return docs, nil
}

// Submit sends a draft out for signature.
func (s *DocumentService) Submit(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Document, error) {
	if principal.IsClient() {
		return nil, ErrPermissionDenied
	}
	doc, _, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusDraft {
		return nil, fmt.Errorf("%w: only drafts can be submitted", ErrConflict)
	}
	doc.Status = model.DocumentStatusPendingSignature
	doc.UpdatedAt = s.now().UTC()
	return s.save(ctx, doc)
}

// Sign stores the opaque signature payload and marks the document signed.
func (s *DocumentService) Sign(ctx context.Context, principal model.Principal, id uuid.UUID, signature, signer string) (*model.Document, error) {
	if principal.IsTechnician() {
		return nil, ErrPermissionDenied
	}
	doc, _, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if signer = strings.TrimSpace(signer); signer == "" {
		signer = principal.DisplayName
	}
	return s.sign(ctx, doc, signature, signer)
}

// SignForWorkOrder signs on behalf of the holder of a work order public key.
func (s *DocumentService) SignForWorkOrder(ctx context.Context, workOrderID string, id uuid.UUID, signature, signer string) (*model.Document, error) {
	doc, err := s.repos.Documents.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	if doc.WorkOrderID != workOrderID {
		return nil, ErrNotFound
	}
	// Drafts are not shown in the portal and cannot be signed through it.
	if doc.Status != model.DocumentStatusPendingSignature {
		return nil, fmt.Errorf("%w: document is not awaiting signature", ErrConflict)
	}
	return s.sign(ctx, doc, signature, strings.TrimSpace(signer))
}

func (s *DocumentService) sign(ctx context.Context, doc *model.Document, signature, signer string) (*model.Document, error) {
	signature = strings.TrimSpace(signature)
	if err := checkSignature(signature); err != nil {
		return nil, err
	}
	switch doc.Status {
	case model.DocumentStatusSigned:
		return nil, fmt.Errorf("%w: document already signed", ErrConflict)
	case model.DocumentStatusRejected:
		return nil, fmt.Errorf("%w: document was rejected", ErrConflict)
	}

	now := s.now().UTC()
	doc.Status = model.DocumentStatusSigned
	doc.ClientSignature = &signature
	if signer != "" {
		doc.SignedBy = &signer
	}
	doc.SignedAt = &now
	doc.UpdatedAt = now
	saved, err := s.save(ctx, doc)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.repos.Activity, s.log, s.now, model.ActivityEvent{
		WorkOrderID:     saved.WorkOrderID,
		Type:            model.ActivityDocumentSigned,
		Title:           saved.Type.Label() + " signed",
		Description:     saved.Number,
		VisibleToClient: true,
	})
	return saved, nil
}

func (s *DocumentService) Reject(ctx context.Context, principal model.Principal, id uuid.UUID, reason string) (*model.Document, error) {
	if principal.IsTechnician() {
		return nil, ErrPermissionDenied
	}
	doc, _, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusPendingSignature && doc.Status != model.DocumentStatusDraft {
		return nil, fmt.Errorf("%w: document is %s", ErrConflict, doc.Status)
	}
	doc.Status = model.DocumentStatusRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		doc.RejectionReason = &reason
	}
	doc.UpdatedAt = s.now().UTC()
	return s.save(ctx, doc)
}

func (s *DocumentService) Render(ctx context.Context, principal model.Principal, id uuid.UUID) (*RenderResult, error) {
	doc, wo, err := s.visible(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	client := model.Profile{ID: wo.ClientID, FullName: wo.ClientName}
	if profile, err := s.repos.Profiles.Get(ctx, wo.ClientID); err == nil {
		client = *profile
	}

	content, err := s.pdf.Render(model.DocumentRender{
		Document:  *s.decorate(doc),
		WorkOrder: *wo,
		Client:    client,
	})
	if err != nil {
		return nil, err
	}
	return &RenderResult{
		FileName: fmt.Sprintf("%s.pdf", strings.ToLower(doc.Number)),
		Content:  content,
	}, nil
}

// visible loads the document and its work order, hiding other clients' documents.
func (s *DocumentService) visible(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Document, *model.WorkOrder, error) {
	doc, err := s.repos.Documents.Get(ctx, id)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	wo, err := s.repos.WorkOrders.Get(ctx, doc.WorkOrderID)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	if principal.IsClient() && wo.ClientID != principal.UserID {
		return nil, nil, ErrNotFound
	}
	return doc, wo, nil
}

func (s *DocumentService) save(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if err := s.repos.Documents.Update(ctx, *doc); err != nil {
		return nil, storageErr(err)
	}
	return s.decorate(doc), nil
}

func (s *DocumentService) decorate(doc *model.Document) *model.Document {
	if s.publicBaseURL != "" {
		doc.PDFURL = fmt.Sprintf("%s/documents/%s/pdf", s.publicBaseURL, doc.ID)
	}
	return doc
}

// checkSignature accepts a base64 payload, optionally wrapped in a data URL.
func checkSignature(signature string) error {
	if signature == "" {
		return &ValidationError{Fields: map[string]string{"signature": "is required"}}
	}
	if len(signature) > maxSignatureBytes {
		return &ValidationError{Fields: map[string]string{"signature": "is too large"}}
	}
	payload := signature
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return &ValidationError{Fields: map[string]string{"signature": "is not a valid data URL"}}
		}
		payload = payload[idx+1:]
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return &ValidationError{Fields: map[string]string{"signature": "is not valid base64"}}
	}
	return nil
}
