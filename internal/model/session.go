package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID              uuid.UUID     `json:"id"`
	WorkOrderID     string        `json:"work_order_id"`
	TechnicianID    string        `json:"technician_id"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	PausedAt        []time.Time   `json:"paused_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Notes           string        `json:"notes"`
	Photos          []string      `json:"photos"`
	PartsUsed       []PartLine    `json:"parts_used"`
	GeofenceEnabled bool          `json:"geofence_enabled"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (s Session) IsTerminal() bool {
	return s.FinishedAt != nil || s.Status == SessionStatusCompleted
}

type PartLine struct {
	PartID        string  `json:"part_id"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	EstimatedCost float64 `json:"estimated_cost"`
}

func (p PartLine) Total() float64 {
	return float64(p.Quantity) * p.EstimatedCost
}

// Part is a parts catalog entry.
type Part struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}
