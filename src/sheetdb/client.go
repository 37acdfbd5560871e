// Package sheetdb is a client for the spreadsheet-backed REST API that
// serves the invoice line items and customer directory sheets as JSON
// arrays of flat records, addressable by a sheet-name query parameter.
package sheetdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/models"
	"golang.org/x/net/publicsuffix"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a sheet API client. apiKey may be empty for
// unauthenticated sheets.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar for sheet client", "error", err)
	}
	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// fetchSheet performs GET {base}?sheet={name} and decodes the JSON array
// body into dst. Any transport failure or non-2xx status is an error;
// the caller must not fall through to aggregation on error.
func (c *Client) fetchSheet(ctx context.Context, sheetName string, dst interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("sheet API base URL is not configured")
	}

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid sheet API base URL %q: %w", c.baseURL, err)
	}
	q := reqURL.Query()
	q.Set("sheet", sheetName)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("building sheet request for %q: %w", sheetName, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching sheet %q: %w", sheetName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetching sheet %q: unexpected status %d", sheetName, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding sheet %q: %w", sheetName, err)
	}
	return nil
}

// FetchInvoiceLines returns the invoice-lines sheet as typed records.
// Unknown keys in the upstream rows are ignored.
func (c *Client) FetchInvoiceLines(ctx context.Context, sheetName string) ([]models.InvoiceLineRecord, error) {
	var records []models.InvoiceLineRecord
	if err := c.fetchSheet(ctx, sheetName, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchCustomerDirectory returns the customer-directory sheet as typed records.
func (c *Client) FetchCustomerDirectory(ctx context.Context, sheetName string) ([]models.CustomerDirectoryRecord, error) {
	var records []models.CustomerDirectoryRecord
	if err := c.fetchSheet(ctx, sheetName, &records); err != nil {
		return nil, err
	}
	return records, nil
}
