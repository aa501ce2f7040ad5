package model

import (
	"strings"
	"time"
)

type WorkOrder struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Type                   WorkOrderType   `json:"type"`
	Status                 WorkOrderStatus `json:"status"`
	Priority               Priority        `json:"priority"`
	EstimatedDate          *time.Time      `json:"estimated_date,omitempty"`
	EstimatedDurationHours *float64        `json:"estimated_duration_hours,omitempty"`
	AssignedTechnicians    []string        `json:"assigned_technicians"`
	ClientID               string          `json:"client_id"`
	ClientName             string          `json:"client_name"`
	MachineID              *string         `json:"machine_id,omitempty"`
	PublicKey              string          `json:"public_key,omitempty"`
	CreatedBy              string          `json:"created_by"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`

	Sessions       []Session  `json:"sessions,omitempty"`
	PartsUsed      []PartLine `json:"parts_used,omitempty"`
	Quotes         []Document `json:"quotes,omitempty"`
	PurchaseOrders []Document `json:"purchase_orders,omitempty"`
	Invoices       []Document `json:"invoices,omitempty"`
}

func (w WorkOrder) IsAssigned(technicianID string) bool {
	for _, id := range w.AssignedTechnicians {
		if id == technicianID {
			return true
		}
	}
	return false
}

// WorkOrderFilter selects work orders. Zero fields match everything.
type WorkOrderFilter struct {
	Status       *WorkOrderStatus
	Type         *WorkOrderType
	Priority     *Priority
	TechnicianID string
	ClientID     string
	DateFrom     *time.Time
	DateTo       *time.Time
	Search       string
}

// Matches reports whether the work order satisfies every set criterion.
// Date bounds are inclusive and exclude orders without an estimated date.
func (f WorkOrderFilter) Matches(w WorkOrder) bool {
	if f.Status != nil && w.Status != *f.Status {
		return false
	}
	if f.Type != nil && w.Type != *f.Type {
		return false
	}
	if f.Priority != nil && w.Priority != *f.Priority {
		return false
	}
	if f.ClientID != "" && w.ClientID != f.ClientID {
		return false
	}
	if f.TechnicianID != "" && !w.IsAssigned(f.TechnicianID) {
		return false
	}
	if f.DateFrom != nil || f.DateTo != nil {
		if w.EstimatedDate == nil {
			return false
		}
		if f.DateFrom != nil && w.EstimatedDate.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && w.EstimatedDate.After(*f.DateTo) {
			return false
		}
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		haystack := strings.ToLower(w.ID + "\x00" + w.Title + "\x00" + w.ClientName)
		if !strings.Contains(haystack, search) {
			return false
		}
	}
	return true
}

type KPIs struct {
	Open           int `json:"open"`
	Upcoming       int `json:"upcoming"`
	InProgress     int `json:"in_progress"`
	PendingInvoice int `json:"pending_invoice"`
}

type Dashboard struct {
	KPIs           KPIs        `json:"kpis"`
	UpcomingOrders []WorkOrder `json:"upcoming_orders"`
	Technicians    []Profile   `json:"technicians,omitempty"`
}

// WorkOrderReport is the input of the spreadsheet export.
type WorkOrderReport struct {
	GeneratedAt time.Time
	KPIs        KPIs
	Orders      []WorkOrder
}
