package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MachineStatus string

const (
	MachineStatusOperational  MachineStatus = "operational"
	MachineStatusMaintenance  MachineStatus = "maintenance"
	MachineStatusOutOfService MachineStatus = "out_of_service"
)

var machineStatuses = map[string]MachineStatus{
	"operational":    MachineStatusOperational,
	"maintenance":    MachineStatusMaintenance,
	"out_of_service": MachineStatusOutOfService,
}

func ParseMachineStatus(raw string) (MachineStatus, error) {
	return lookup(machineStatuses, "machine status", raw)
}

// Machine is a CNC machine installed at a client site.
type Machine struct {
	ID           uuid.UUID     `json:"id"`
	Model        string        `json:"model"`
	SerialNumber string        `json:"serial_number"`
	Manufacturer string        `json:"manufacturer"`
	Year         int           `json:"year"`
	ClientID     string        `json:"client_id"`
	ClientName   string        `json:"client_name,omitempty"`
	Status       MachineStatus `json:"status"`
	Location     string        `json:"location"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// MachineFilter selects machines. A non-nil IDs restricts the result to those
// machines, so an empty IDs matches nothing.
type MachineFilter struct {
	ClientID string
	IDs      []uuid.UUID
	Search   string
}

func (f MachineFilter) Matches(m Machine) bool {
	if f.ClientID != "" && m.ClientID != f.ClientID {
		return false
	}
	if f.IDs != nil {
		found := false
		for _, id := range f.IDs {
			if id == m.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		haystack := strings.ToLower(m.Model + "\x00" + m.SerialNumber + "\x00" + m.Manufacturer + "\x00" + m.ClientName)
		if !strings.Contains(haystack, search) {
			return false
		}
	}
	return true
}
