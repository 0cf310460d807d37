// Package finance exposes read-only reporting views sourced from the
// external accounting system, joined with the locally stored
// cross-references. External data is best-effort: views degrade to
// cached rows or empty lists rather than failing the whole page.
package finance

import (
	"context"
	"log/slog"
	"time"

	"github.com/snd-est/snd-rental/internal/erpnext"
	"github.com/snd-est/snd-rental/internal/rental"
)

// InvoiceSource is the slice of the accounting client the reports use.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, name string) (erpnext.SalesInvoice, error)
	ListInvoices(ctx context.Context, from, to time.Time, customer string) ([]erpnext.SalesInvoice, error)
	ListPayments(ctx context.Context, from, to time.Time, party string) ([]erpnext.PaymentEntry, error)
}

// Service builds the reporting views.
type Service struct {
	source  InvoiceSource
	rentals rental.Store
	logger  *slog.Logger
}

// NewService constructs a finance service. The source may be nil when
// the integration is not configured; every view then degrades.
func NewService(source InvoiceSource, rentals rental.Store, logger *slog.Logger) *Service {
	return &Service{source: source, rentals: rentals, logger: logger}
}

// Report wraps a view's rows with a degradation marker so the UI can
// show stale-data hints instead of an error page.
type Report[T any] struct {
	Data     []T  `json:"data"`
	Degraded bool `json:"degraded"`
}

// Invoices lists external invoices in a date range.
func (s *Service) Invoices(ctx context.Context, from, to time.Time, customer string) Report[erpnext.SalesInvoice] {
	if s.source == nil {
		return Report[erpnext.SalesInvoice]{Data: []erpnext.SalesInvoice{}, Degraded: true}
	}
	invoices, err := s.source.ListInvoices(ctx, from, to, customer)
	if err != nil {
		s.logger.Warn("invoice report degraded", slog.Any("error", err))
		return Report[erpnext.SalesInvoice]{Data: []erpnext.SalesInvoice{}, Degraded: true}
	}
	if invoices == nil {
		invoices = []erpnext.SalesInvoice{}
	}
	return Report[erpnext.SalesInvoice]{Data: invoices}
}

// Payments lists external payments in a date range.
func (s *Service) Payments(ctx context.Context, from, to time.Time, party string) Report[erpnext.PaymentEntry] {
	if s.source == nil {
		return Report[erpnext.PaymentEntry]{Data: []erpnext.PaymentEntry{}, Degraded: true}
	}
	payments, err := s.source.ListPayments(ctx, from, to, party)
	if err != nil {
		s.logger.Warn("payment report degraded", slog.Any("error", err))
		return Report[erpnext.PaymentEntry]{Data: []erpnext.PaymentEntry{}, Degraded: true}
	}
	if payments == nil {
		payments = []erpnext.PaymentEntry{}
	}
	return Report[erpnext.PaymentEntry]{Data: payments}
}

// StatementRow is one linked invoice with its freshest known state.
type StatementRow struct {
	Ref  rental.InvoiceRef     `json:"ref"`
	Live *erpnext.SalesInvoice `json:"live,omitempty"`
}

// RentalStatement returns the rental's linked invoices enriched with a
// live fetch per reference. A failed fetch leaves the cached row.
func (s *Service) RentalStatement(ctx context.Context, rentalID int64) ([]StatementRow, error) {
	refs, err := s.rentals.ListInvoiceRefs(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	rows := make([]StatementRow, 0, len(refs))
	for _, ref := range refs {
		row := StatementRow{Ref: ref}
		if s.source != nil {
			if live, err := s.source.GetInvoice(ctx, ref.ExternalID); err == nil {
				row.Live = &live
			} else {
				s.logger.Warn("statement live fetch degraded",
					slog.String("invoice", ref.ExternalID), slog.Any("error", err))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
