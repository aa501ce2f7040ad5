package service

import (
	"sort"
	"time"

	"github.com/nurpe/cnc-service/internal/model"
)

const upcomingLimit = 10

// ComputeKPIs derives the dashboard counters. Upcoming counts orders due within
// a day of now that are not done; orders without an estimated date never count.
func ComputeKPIs(orders []model.WorkOrder, now time.Time) model.KPIs {
	horizon := now.Add(24 * time.Hour)
	var kpis model.KPIs
	for _, o := range orders {
		switch o.Status {
		case model.WorkOrderStatusPending:
			kpis.Open++
		case model.WorkOrderStatusInProgress:
			kpis.InProgress++
		case model.WorkOrderStatusDone:
			if len(o.Invoices) == 0 {
				kpis.PendingInvoice++
			}
		}
		if o.EstimatedDate != nil && !o.EstimatedDate.After(horizon) && o.Status != model.WorkOrderStatusDone {
			kpis.Upcoming++
		}
	}
	return kpis
}

// UpcomingOrders returns up to limit non-archived orders by estimated date,
// undated orders last. The input slice is left untouched.
func UpcomingOrders(orders []model.WorkOrder, limit int) []model.WorkOrder {
	result := make([]model.WorkOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status != model.WorkOrderStatusArchived {
			result = append(result, o)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].EstimatedDate, result[j].EstimatedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
