// Package accounting pushes customer and invoice summaries to the external
// accounting system.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/model"
)

const defaultTimeout = 15 * time.Second

// Client talks JSON over HTTP. Without a base URL it runs as a stub that
// reports every record as synced.
type Client struct {
	baseURL   string
	token     string
	companyID string
	http      *http.Client
	log       zerolog.Logger
}

func NewClient(cfg config.AccountingConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		companyID: cfg.CompanyID,
		http:      &http.Client{Timeout: timeout},
		log:       log.With().Str("component", "accounting").Logger(),
	}
}

func (c *Client) Stub() bool {
	return c.baseURL == ""
}

func (c *Client) PushCustomers(ctx context.Context, customers []model.CustomerSummary) (model.PushResult, error) {
	if c.Stub() {
		c.log.Debug().Int("count", len(customers)).Msg("stub push customers")
		return model.PushResult{Synced: len(customers), Failed: []string{}}, nil
	}
	return c.push(ctx, "customers", map[string]interface{}{"customers": customers})
}

func (c *Client) PushInvoices(ctx context.Context, invoices []model.InvoiceSummary) (model.PushResult, error) {
	if c.Stub() {
		c.log.Debug().Int("count", len(invoices)).Msg("stub push invoices")
		return model.PushResult{Synced: len(invoices), Failed: []string{}}, nil
	}
	return c.push(ctx, "invoices", map[string]interface{}{"invoices": invoices})
}

func (c *Client) push(ctx context.Context, resource string, payload interface{}) (model.PushResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.PushResult{}, err
	}

	endpoint := c.baseURL + "/" + resource
	if c.companyID != "" {
		endpoint = c.baseURL + "/companies/" + url.PathEscape(c.companyID) + "/" + resource
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return model.PushResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.PushResult{}, fmt.Errorf("push %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.PushResult{}, fmt.Errorf("push %s: unexpected status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result model.PushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.PushResult{}, fmt.Errorf("decode %s response: %w", resource, err)
	}
	if result.Failed == nil {
		result.Failed = []string{}
	}
	c.log.Info().Str("resource", resource).Int("synced", result.Synced).Int("failed", len(result.Failed)).Msg("accounting push done")
	return result, nil
}
