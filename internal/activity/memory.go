// Package activity stores the per work order timeline.
package activity

import (
	"context"
	"sort"
	"sync"

	"github.com/nurpe/cnc-service/internal/model"
)

type MemoryRecorder struct {
	mu     sync.RWMutex
	events map[string][]model.ActivityEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{events: make(map[string][]model.ActivityEvent)}
}

func (r *MemoryRecorder) Record(_ context.Context, event model.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.WorkOrderID] = append(r.events[event.WorkOrderID], event)
	return nil
}

// ListByWorkOrder returns the events of a work order newest first.
func (r *MemoryRecorder) ListByWorkOrder(_ context.Context, workOrderID string) ([]model.ActivityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.events[workOrderID]
	out := make([]model.ActivityEvent, len(stored))
	copy(out, stored)
	// Reverse first so events sharing a timestamp come out latest-recorded first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
