package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/model"
)

type AccountingPusher interface {
	PushCustomers(ctx context.Context, customers []model.CustomerSummary) (model.PushResult, error)
	PushInvoices(ctx context.Context, invoices []model.InvoiceSummary) (model.PushResult, error)
}

// AccountingService pushes customers and invoices one way to the accounting system.
type AccountingService struct {
	repos  Repositories
	pusher AccountingPusher
	log    zerolog.Logger
}

func NewAccountingService(repos Repositories, pusher AccountingPusher, log zerolog.Logger) *AccountingService {
	return &AccountingService{repos: repos, pusher: pusher, log: log}
}

func (s *AccountingService) Sync(ctx context.Context, principal model.Principal) (*model.SyncResult, error) {
	if !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	clients, err := s.repos.Profiles.ListByRole(ctx, model.RoleClient)
	if err != nil {
		return nil, storageErr(err)
	}
	customers := make([]model.CustomerSummary, 0, len(clients))
	for _, c := range clients {
		customers = append(customers, model.CustomerSummary{ID: c.ID, Name: c.FullName, Email: c.Email})
	}

	invoices, err := s.repos.Documents.ListByType(ctx, model.DocumentTypeInvoice)
	if err != nil {
		return nil, storageErr(err)
	}
	summaries := make([]model.InvoiceSummary, 0, len(invoices))
	owners := make(map[string]string)
	for _, inv := range invoices {
		customerID, ok := owners[inv.WorkOrderID]
		if !ok {
			wo, err := s.repos.WorkOrders.Get(ctx, inv.WorkOrderID)
			if err != nil {
				return nil, storageErr(err)
			}
			customerID = wo.ClientID
			owners[inv.WorkOrderID] = customerID
		}
		summaries = append(summaries, model.InvoiceSummary{
			WorkOrderID: inv.WorkOrderID,
			Number:      inv.Number,
			CustomerID:  customerID,
			Status:      string(inv.Status),
			Subtotal:    inv.Subtotal,
			TaxAmount:   inv.TaxAmount,
			Total:       inv.Total,
		})
	}

	result := &model.SyncResult{}
	result.Customers, err = s.pusher.PushCustomers(ctx, customers)
	if err != nil {
		return nil, fmt.Errorf("%w: push customers: %v", ErrTransient, err)
	}
	result.Invoices, err = s.pusher.PushInvoices(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("%w: push invoices: %v", ErrTransient, err)
	}

	s.log.Info().
		Int("customers_synced", result.Customers.Synced).
		Int("invoices_synced", result.Invoices.Synced).
		Int("failed", len(result.Customers.Failed)+len(result.Invoices.Failed)).
		Msg("accounting sync finished")
	return result, nil
}
