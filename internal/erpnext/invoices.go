package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/billing"
	"github.com/snd-est/snd-rental/internal/rental/pricing"
)

const (
	salesInvoicePath = "/api/resource/Sales%20Invoice"
	paymentEntryPath = "/api/resource/Payment%20Entry"

	docStatusSubmitted = 1
	docStatusCancelled = 2
)

// SalesInvoiceItem is one line of a sales invoice document.
type SalesInvoiceItem struct {
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	Description   string          `json:"description"`
	Qty           int64           `json:"qty"`
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	UOM           string          `json:"uom"`
	IncomeAccount string          `json:"income_account"`
}

// TaxCharge is one row of the invoice tax table.
type TaxCharge struct {
	ChargeType  string          `json:"charge_type"`
	AccountHead string          `json:"account_head"`
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
}

type salesInvoicePayload struct {
	Doctype        string             `json:"doctype"`
	Customer       string             `json:"customer"`
	PostingDate    string             `json:"posting_date"`
	DueDate        string             `json:"due_date"`
	SetPostingTime int                `json:"set_posting_time"`
	Currency       string             `json:"currency"`
	FromDate       string             `json:"from_date"`
	ToDate         string             `json:"to_date"`
	CustomFrom     string             `json:"custom_from"`
	CustomTo       string             `json:"custom_to"`
	CustomSubject  string             `json:"custom_subject,omitempty"`
	Remarks        string             `json:"remarks,omitempty"`
	Items          []SalesInvoiceItem `json:"items"`
	Taxes          []TaxCharge        `json:"taxes"`
}

// SalesInvoice is the accounting system's invoice document.
type SalesInvoice struct {
	Name              string          `json:"name"`
	Customer          string          `json:"customer"`
	PostingDate       string          `json:"posting_date"`
	DueDate           string          `json:"due_date"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Status            string          `json:"status"`
	DocStatus         int             `json:"docstatus"`
}

// PaymentEntry is the accounting system's payment document.
type PaymentEntry struct {
	Name        string          `json:"name"`
	Party       string          `json:"party"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PostingDate string          `json:"posting_date"`
	Status      string          `json:"status"`
	DocStatus   int             `json:"docstatus"`
}

type invoiceEnvelope struct {
	Data SalesInvoice `json:"data"`
}

type invoiceListEnvelope struct {
	Data []SalesInvoice `json:"data"`
}

type paymentEnvelope struct {
	Data PaymentEntry `json:"data"`
}

type paymentListEnvelope struct {
	Data []PaymentEntry `json:"data"`
}

// CreateSalesInvoice creates a draft invoice document.
func (c *Client) CreateSalesInvoice(ctx context.Context, payload salesInvoicePayload) (SalesInvoice, error) {
	var envelope invoiceEnvelope
	if err := c.do(ctx, http.MethodPost, salesInvoicePath, nil, payload, &envelope); err != nil {
		return SalesInvoice{}, err
	}
	return envelope.Data, nil
}

// GetInvoice fetches one invoice by name.
func (c *Client) GetInvoice(ctx context.Context, name string) (SalesInvoice, error) {
	var envelope invoiceEnvelope
	if err := c.do(ctx, http.MethodGet, salesInvoicePath+"/"+url.PathEscape(name), nil, nil, &envelope); err != nil {
		return SalesInvoice{}, err
	}
	return envelope.Data, nil
}

// SubmitInvoice posts the draft (docstatus 1).
func (c *Client) SubmitInvoice(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPut, salesInvoicePath+"/"+url.PathEscape(name), nil,
		map[string]int{"docstatus": docStatusSubmitted}, nil)
}

// CancelInvoice cancels a submitted invoice (docstatus 2).
func (c *Client) CancelInvoice(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPut, salesInvoicePath+"/"+url.PathEscape(name), nil,
		map[string]int{"docstatus": docStatusCancelled}, nil)
}

// DeleteInvoice removes a draft invoice.
func (c *Client) DeleteInvoice(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, salesInvoicePath+"/"+url.PathEscape(name), nil, nil, nil)
}

// ListInvoices returns invoices in the posting-date range, optionally
// narrowed to one customer.
func (c *Client) ListInvoices(ctx context.Context, from, to time.Time, customer string) ([]SalesInvoice, error) {
	query, err := listQuery(from, to, customer,
		[]string{"name", "customer", "posting_date", "due_date", "grand_total", "outstanding_amount", "status", "docstatus"})
	if err != nil {
		return nil, err
	}
	var envelope invoiceListEnvelope
	if err := c.do(ctx, http.MethodGet, salesInvoicePath, query, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// GetPayment fetches one payment entry by name.
func (c *Client) GetPayment(ctx context.Context, name string) (PaymentEntry, error) {
	var envelope paymentEnvelope
	if err := c.do(ctx, http.MethodGet, paymentEntryPath+"/"+url.PathEscape(name), nil, nil, &envelope); err != nil {
		return PaymentEntry{}, err
	}
	return envelope.Data, nil
}

// ListPayments returns payment entries in the posting-date range.
func (c *Client) ListPayments(ctx context.Context, from, to time.Time, party string) ([]PaymentEntry, error) {
	query, err := listQuery(from, to, party,
		[]string{"name", "party", "paid_amount", "posting_date", "status", "docstatus"})
	if err != nil {
		return nil, err
	}
	var envelope paymentListEnvelope
	if err := c.do(ctx, http.MethodGet, paymentEntryPath, query, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// listQuery encodes the filters/fields query the list API expects.
func listQuery(from, to time.Time, party string, fields []string) (url.Values, error) {
	filters := [][]any{
		{"posting_date", ">=", from.Format("2006-01-02")},
		{"posting_date", "<=", to.Format("2006-01-02")},
	}
	if party != "" {
		filters = append(filters, []any{"customer", "=", party})
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("filters", string(filtersJSON))
	query.Set("fields", string(fieldsJSON))
	query.Set("limit_page_length", "0")
	return query, nil
}

// CustomerDirectory resolves a local customer id to the accounting
// system's customer name.
type CustomerDirectory interface {
	ERPNextCustomer(ctx context.Context, customerID int64) (string, error)
}

// InvoiceAdapter adapts the client to the billing service's creator
// contract.
type InvoiceAdapter struct {
	client    *Client
	customers CustomerDirectory
	currency  string
	logger    *slog.Logger
}

// NewInvoiceAdapter constructs the adapter.
func NewInvoiceAdapter(client *Client, customers CustomerDirectory, currency string, logger *slog.Logger) *InvoiceAdapter {
	return &InvoiceAdapter{client: client, customers: customers, currency: currency, logger: logger}
}

// CreateRentalInvoice builds and creates the sales invoice for one
// billing period, then best-effort submits it. Submission failure does
// not fail the creation: the draft exists and can be posted by hand.
func (a *InvoiceAdapter) CreateRentalInvoice(ctx context.Context, inv *billing.InvoiceData) (billing.CreatedInvoice, error) {
	customer, err := a.customers.ERPNextCustomer(ctx, inv.CustomerID)
	if err != nil {
		return billing.CreatedInvoice{}, err
	}

	incomeAccount := a.client.IncomeAccount(ctx)
	items := make([]SalesInvoiceItem, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		code, err := a.client.ItemCode(ctx, line.EquipmentName, "")
		if err != nil {
			return billing.CreatedInvoice{}, err
		}
		items = append(items, SalesInvoiceItem{
			ItemCode:      code,
			ItemName:      line.EquipmentName,
			Description:   line.Description,
			Qty:           line.Units,
			Rate:          line.UnitPrice,
			Amount:        line.Amount,
			UOM:           uomForRate(line.Rate),
			IncomeAccount: incomeAccount,
		})
	}

	start := inv.Period.Start.Format("2006-01-02")
	end := inv.Period.End.Format("2006-01-02")
	payload := salesInvoicePayload{
		Doctype:        "Sales Invoice",
		Customer:       customer,
		PostingDate:    end,
		DueDate:        inv.Period.End.AddDate(0, 0, 30).Format("2006-01-02"),
		SetPostingTime: 1,
		Currency:       a.currency,
		FromDate:       start,
		ToDate:         end,
		CustomFrom:     start,
		CustomTo:       end,
		CustomSubject:  fmt.Sprintf("Monthly rental %s (%s to %s)", inv.RentalNumber, start, end),
		Remarks:        inv.Period.InvoiceNumber,
		Items:          items,
		Taxes: []TaxCharge{{
			ChargeType:  "On Net Total",
			AccountHead: a.client.VATAccountHead(ctx),
			Description: fmt.Sprintf("VAT %s%%", inv.TaxRate.String()),
			Rate:        inv.TaxRate,
		}},
	}

	doc, err := a.client.CreateSalesInvoice(ctx, payload)
	if err != nil {
		return billing.CreatedInvoice{}, err
	}

	if err := a.client.SubmitInvoice(ctx, doc.Name); err != nil {
		a.logger.Warn("auto-submit invoice",
			slog.String("invoice", doc.Name), slog.Any("error", err))
	}

	return billing.CreatedInvoice{
		ID:          doc.Name,
		GrandTotal:  doc.GrandTotal,
		Outstanding: doc.OutstandingAmount,
		Status:      doc.Status,
	}, nil
}

func uomForRate(rate pricing.RateType) string {
	switch rate {
	case pricing.RateHourly:
		return "Hour"
	case pricing.RateWeekly:
		return "Week"
	case pricing.RateMonthly:
		return "Month"
	default:
		return "Day"
	}
}
