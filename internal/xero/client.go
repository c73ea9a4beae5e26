package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/practicehub/practice-server/internal/config"
)

// ErrNotConnected is returned when a tenant has no enabled Xero connection
var ErrNotConnected = errors.New("xero integration is not connected")

// Contact is a Xero contact resource
type Contact struct {
	ContactID     string `json:"ContactID,omitempty"`
	Name          string `json:"Name"`
	EmailAddress  string `json:"EmailAddress,omitempty"`
	TaxNumber     string `json:"TaxNumber,omitempty"`
	ContactStatus string `json:"ContactStatus,omitempty"`
}

// LineItem is a Xero invoice line item. Amounts are decimal units.
type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	TaxType     string  `json:"TaxType,omitempty"`
}

// Invoice is a Xero invoice resource
type Invoice struct {
	InvoiceID       string     `json:"InvoiceID,omitempty"`
	Type            string     `json:"Type"`
	Contact         *Contact   `json:"Contact,omitempty"`
	InvoiceNumber   string     `json:"InvoiceNumber,omitempty"`
	Date            string     `json:"Date,omitempty"`
	DueDate         string     `json:"DueDate,omitempty"`
	LineItems       []LineItem `json:"LineItems,omitempty"`
	Status          string     `json:"Status,omitempty"`
	LineAmountTypes string     `json:"LineAmountTypes,omitempty"`
}

// Payment is a Xero payment resource
type Payment struct {
	PaymentID string   `json:"PaymentID,omitempty"`
	Invoice   *Invoice `json:"Invoice,omitempty"`
	Date      string   `json:"Date,omitempty"`
	Amount    float64  `json:"Amount"`
}

// Response envelopes. Xero wraps every resource in a pluralized array.
type contactsEnvelope struct {
	Contacts []Contact `json:"Contacts"`
}

type invoicesEnvelope struct {
	Invoices []Invoice `json:"Invoices"`
}

type paymentsEnvelope struct {
	Payments []Payment `json:"Payments"`
}

// Client calls the Xero accounting API on behalf of one tenant at a time.
// Credentials are resolved per call through the credential manager, so a
// single Client instance serves every tenant.
type Client struct {
	cfg        *config.XeroConfig
	creds      *CredentialManager
	httpClient *http.Client
}

// NewClient creates a Xero API client
func NewClient(cfg *config.XeroConfig, creds *CredentialManager) *Client {
	return &Client{
		cfg:        cfg,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrUpdateContact creates a contact, or updates it when ContactID is set
func (c *Client) CreateOrUpdateContact(ctx context.Context, store CredentialStore, contact *Contact) (*Contact, error) {
	in := contactsEnvelope{Contacts: []Contact{*contact}}
	var out contactsEnvelope
	if err := c.do(ctx, store, http.MethodPost, "/Contacts", in, &out); err != nil {
		return nil, err
	}
	if len(out.Contacts) == 0 {
		return nil, fmt.Errorf("empty Contacts response")
	}
	return &out.Contacts[0], nil
}

// GetContact fetches a contact by Xero ID. Returns (nil, nil) when Xero
// reports it missing.
func (c *Client) GetContact(ctx context.Context, store CredentialStore, contactID string) (*Contact, error) {
	var out contactsEnvelope
	err := c.do(ctx, store, http.MethodGet, "/Contacts/"+contactID, nil, &out)
	if err != nil {
		if errors.Is(err, errResourceMissing) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Contacts) == 0 {
		return nil, nil
	}
	return &out.Contacts[0], nil
}

// CreateOrUpdateInvoice creates an invoice, or updates it when InvoiceID is set
func (c *Client) CreateOrUpdateInvoice(ctx context.Context, store CredentialStore, invoice *Invoice) (*Invoice, error) {
	in := invoicesEnvelope{Invoices: []Invoice{*invoice}}
	var out invoicesEnvelope
	if err := c.do(ctx, store, http.MethodPost, "/Invoices", in, &out); err != nil {
		return nil, err
	}
	if len(out.Invoices) == 0 {
		return nil, fmt.Errorf("empty Invoices response")
	}
	return &out.Invoices[0], nil
}

// GetInvoice fetches an invoice by Xero ID. Returns (nil, nil) when Xero
// reports it missing.
func (c *Client) GetInvoice(ctx context.Context, store CredentialStore, invoiceID string) (*Invoice, error) {
	var out invoicesEnvelope
	err := c.do(ctx, store, http.MethodGet, "/Invoices/"+invoiceID, nil, &out)
	if err != nil {
		if errors.Is(err, errResourceMissing) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Invoices) == 0 {
		return nil, nil
	}
	return &out.Invoices[0], nil
}

// CreatePayment records a payment against an invoice
func (c *Client) CreatePayment(ctx context.Context, store CredentialStore, payment *Payment) (*Payment, error) {
	in := paymentsEnvelope{Payments: []Payment{*payment}}
	var out paymentsEnvelope
	if err := c.do(ctx, store, http.MethodPost, "/Payments", in, &out); err != nil {
		return nil, err
	}
	if len(out.Payments) == 0 {
		return nil, fmt.Errorf("empty Payments response")
	}
	return &out.Payments[0], nil
}

// errResourceMissing marks a 404 on a GET-by-id so callers can map it to nil
var errResourceMissing = errors.New("resource missing")

func (c *Client) do(ctx context.Context, store CredentialStore, method, path string, in, out interface{}) error {
	creds, err := c.creds.GetCredentials(ctx, store)
	if err != nil {
		return err
	}
	if creds == nil {
		return ErrNotConnected
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Xero-Tenant-Id", creds.ExternalTenantID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if method == http.MethodGet && resp.StatusCode == http.StatusNotFound {
		return errResourceMissing
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Xero API error: %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
