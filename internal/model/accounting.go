package model

// CustomerSummary is the customer record pushed to the accounting system.
type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InvoiceSummary is keyed by work order id on the accounting side.
type InvoiceSummary struct {
	WorkOrderID string  `json:"work_order_id"`
	Number      string  `json:"number"`
	CustomerID  string  `json:"customer_id"`
	Status      string  `json:"status"`
	Subtotal    float64 `json:"subtotal"`
	TaxAmount   float64 `json:"tax_amount"`
	Total       float64 `json:"total"`
}

type PushResult struct {
	Synced int      `json:"synced"`
	Failed []string `json:"failed"`
}

type SyncResult struct {
	Customers PushResult `json:"customers"`
	Invoices  PushResult `json:"invoices"`
}
