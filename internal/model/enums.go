package model

import (
	"fmt"
	"strings"
)

type WorkOrderType string

const (
	WorkOrderTypePreventive  WorkOrderType = "preventive_maintenance"
	WorkOrderTypePiping      WorkOrderType = "piping"
	WorkOrderTypeInstall     WorkOrderType = "installation"
	WorkOrderTypeMeasurement WorkOrderType = "measurement"
	WorkOrderTypeImmediate   WorkOrderType = "immediate_service"
)

type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusAssigned   WorkOrderStatus = "assigned"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusDone       WorkOrderStatus = "done"
	WorkOrderStatusArchived   WorkOrderStatus = "archived"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

type DocumentType string

const (
	DocumentTypeQuote         DocumentType = "quote"
	DocumentTypePurchaseOrder DocumentType = "purchase_order"
	DocumentTypeInvoice       DocumentType = "invoice"
)

type DocumentStatus string

const (
	DocumentStatusDraft            DocumentStatus = "draft"
	DocumentStatusPendingSignature DocumentStatus = "pending_signature"
	DocumentStatusSigned           DocumentStatus = "signed"
	DocumentStatusRejected         DocumentStatus = "rejected"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleClient     Role = "client"
)

// Alias tables map every spelling seen in the field to the canonical value.
var (
	workOrderTypes = map[string]WorkOrderType{
		"preventive_maintenance": WorkOrderTypePreventive,
		"preventive":             WorkOrderTypePreventive,
		"piping":                 WorkOrderTypePiping,
		"installation":           WorkOrderTypeInstall,
		"measurement":            WorkOrderTypeMeasurement,
		"immediate_service":      WorkOrderTypeImmediate,
		"immediate":              WorkOrderTypeImmediate,
	}
	workOrderStatuses = map[string]WorkOrderStatus{
		"pending":     WorkOrderStatusPending,
		"assigned":    WorkOrderStatusAssigned,
		"in_progress": WorkOrderStatusInProgress,
		"done":        WorkOrderStatusDone,
		"completed":   WorkOrderStatusDone,
		"archived":    WorkOrderStatusArchived,
		"cancelled":   WorkOrderStatusCancelled,
		"canceled":    WorkOrderStatusCancelled,
	}
	priorities = map[string]Priority{
		"low":    PriorityLow,
		"normal": PriorityNormal,
		"medium": PriorityNormal,
		"high":   PriorityHigh,
		"urgent": PriorityUrgent,
	}
	sessionStatuses = map[string]SessionStatus{
		"active":    SessionStatusActive,
		"paused":    SessionStatusPaused,
		"completed": SessionStatusCompleted,
		"finished":  SessionStatusCompleted,
	}
	documentTypes = map[string]DocumentType{
		"quote":          DocumentTypeQuote,
		"purchase_order": DocumentTypePurchaseOrder,
		"po":             DocumentTypePurchaseOrder,
		"invoice":        DocumentTypeInvoice,
	}
	documentStatuses = map[string]DocumentStatus{
		"draft":             DocumentStatusDraft,
		"pending_signature": DocumentStatusPendingSignature,
		"sent":              DocumentStatusPendingSignature,
		"signed":            DocumentStatusSigned,
		"approved":          DocumentStatusSigned,
		"rejected":          DocumentStatusRejected,
	}
	roles = map[string]Role{
		"admin":      RoleAdmin,
		"technician": RoleTechnician,
		"client":     RoleClient,
	}
)

func normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.ReplaceAll(raw, "-", "_")
	return strings.ReplaceAll(raw, " ", "_")
}

func lookup[T any](table map[string]T, kind, raw string) (T, error) {
	if value, ok := table[normalize(raw)]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, raw)
}

func ParseWorkOrderType(raw string) (WorkOrderType, error) {
	return lookup(workOrderTypes, "work order type", raw)
}

func ParseWorkOrderStatus(raw string) (WorkOrderStatus, error) {
	return lookup(workOrderStatuses, "work order status", raw)
}

func ParsePriority(raw string) (Priority, error) {
	return lookup(priorities, "priority", raw)
}

func ParseSessionStatus(raw string) (SessionStatus, error) {
	return lookup(sessionStatuses, "session status", raw)
}

func ParseDocumentType(raw string) (DocumentType, error) {
	return lookup(documentTypes, "document type", raw)
}

func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	return lookup(documentStatuses, "document status", raw)
}

func ParseRole(raw string) (Role, error) {
	return lookup(roles, "role", raw)
}

// NumberPrefix is the prefix of human readable document numbers.
func (t DocumentType) NumberPrefix() string {
	switch t {
	case DocumentTypeQuote:
		return "QT"
	case DocumentTypePurchaseOrder:
		return "PO"
	case DocumentTypeInvoice:
		return "INV"
	default:
		return "DOC"
	}
}

func (t DocumentType) Label() string {
	switch t {
	case DocumentTypeQuote:
		return "Quote"
	case DocumentTypePurchaseOrder:
		return "Purchase Order"
	case DocumentTypeInvoice:
		return "Invoice"
	default:
		return "Document"
	}
}
