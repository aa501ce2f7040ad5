package model

import "time"

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is the authenticated caller, taken from the access token.
type Principal struct {
	UserID      string
	Role        Role
	DisplayName string
	Email       string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsTechnician() bool {
	return p.Role == RoleTechnician
}

func (p Principal) IsClient() bool {
	return p.Role == RoleClient
}

type ActivityType string

const (
	ActivityStatusChange         ActivityType = "status_change"
	ActivitySessionCompleted     ActivityType = "session_completed"
	ActivityDocumentSigned       ActivityType = "document_signed"
	ActivityAppointmentScheduled ActivityType = "appointment_scheduled"
)

type ActivityEvent struct {
	ID              string       `json:"id"`
	WorkOrderID     string       `json:"work_order_id"`
	Type            ActivityType `json:"type"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Timestamp       time.Time    `json:"timestamp"`
	VisibleToClient bool         `json:"visible_to_client"`
}

// PortalView is what an unauthenticated client sees through a work order public key.
type PortalView struct {
	WorkOrder        WorkOrder       `json:"work_order"`
	Sessions         []PortalSession `json:"sessions"`
	PendingDocuments []Document      `json:"pending_documents"`
	Timeline         []ActivityEvent `json:"timeline"`
}

type PortalSession struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   string        `json:"duration"`
}
