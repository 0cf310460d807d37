package rental

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/rental/pricing"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Balance labels for the reconciliation summary.
const (
	BalanceOutstanding = "outstanding"
	BalanceOverpaid    = "overpaid"
	BalanceSettled     = "settled"
)

// FinanceSummary is the read-path reconciliation of a rental: the best
// available total against externally recorded collections.
type FinanceSummary struct {
	ActualTotal  decimal.Decimal `json:"actualTotal"`
	TotalPaid    decimal.Decimal `json:"totalPaid"`
	Balance      decimal.Decimal `json:"balance"`
	BalanceLabel string          `json:"balanceLabel"`
	Source       string          `json:"source"`
}

// Summary derives the display-time financial position. Unlike
// RecalculateTotals this never writes: it prefers, in order, a live
// item-derived total, the sum of linked external invoices, then the
// stored figures. Payments always come from the external links.
func (s *Service) Summary(ctx context.Context, rentalID int64) (FinanceSummary, error) {
	rental, err := s.store.Get(ctx, rentalID)
	if err != nil {
		return FinanceSummary{}, err
	}
	invoices, err := s.store.ListInvoiceRefs(ctx, rentalID)
	if err != nil {
		return FinanceSummary{}, err
	}
	payments, err := s.store.ListPaymentRefs(ctx, rentalID)
	if err != nil {
		return FinanceSummary{}, err
	}

	var actual decimal.Decimal
	var source string
	switch {
	case len(rental.Items) > 0:
		source = "items"
		now := s.now()
		terms := rental.Terms()
		subtotal := decimal.Zero
		for i := range rental.Items {
			item := &rental.Items[i]
			if !item.Billable() {
				continue
			}
			subtotal = subtotal.Add(pricing.PriceItem(item.Terms(), terms, now))
		}
		actual = subtotal.Add(shared.ApplyVAT(subtotal, rental.TaxRate))
	case len(invoices) > 0:
		source = "invoices"
		for _, inv := range invoices {
			actual = actual.Add(inv.Amount)
		}
	default:
		source = "stored"
		actual = firstNonZero(rental.TotalAmount, rental.FinalAmount, rental.Subtotal)
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	balance := actual.Sub(paid)
	label := BalanceSettled
	switch {
	case balance.IsPositive():
		label = BalanceOutstanding
	case balance.IsNegative():
		label = BalanceOverpaid
	}

	return FinanceSummary{
		ActualTotal:  actual.Round(2),
		TotalPaid:    paid.Round(2),
		Balance:      balance.Round(2),
		BalanceLabel: label,
		Source:       source,
	}, nil
}

func firstNonZero(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

// LinkInvoice manually attaches an external invoice reference.
func (s *Service) LinkInvoice(ctx context.Context, rentalID int64, req LinkRefRequest) (*InvoiceRef, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	if _, err := s.store.Get(ctx, rentalID); err != nil {
		return nil, err
	}
	amount, err := shared.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount", shared.ErrValidation)
	}
	postedAt, err := ParseDate(req.PostedAt)
	if err != nil {
		return nil, err
	}
	ref := &InvoiceRef{
		RentalID:   rentalID,
		ExternalID: req.ExternalID,
		Amount:     amount,
		Status:     req.Status,
		PostedAt:   postedAt,
	}
	if err := s.store.LinkInvoice(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// UnlinkInvoice detaches an external invoice reference.
func (s *Service) UnlinkInvoice(ctx context.Context, rentalID int64, externalID string) error {
	return s.store.UnlinkInvoice(ctx, rentalID, externalID)
}

// LinkPayment manually attaches an external payment reference.
func (s *Service) LinkPayment(ctx context.Context, rentalID int64, req LinkRefRequest) (*PaymentRef, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	if _, err := s.store.Get(ctx, rentalID); err != nil {
		return nil, err
	}
	amount, err := shared.ParseAmount(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount", shared.ErrValidation)
	}
	postedAt, err := ParseDate(req.PostedAt)
	if err != nil {
		return nil, err
	}
	ref := &PaymentRef{
		RentalID:   rentalID,
		ExternalID: req.ExternalID,
		Amount:     amount,
		Status:     req.Status,
		PostedAt:   postedAt,
	}
	if err := s.store.LinkPayment(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

// UnlinkPayment detaches an external payment reference.
func (s *Service) UnlinkPayment(ctx context.Context, rentalID int64, externalID string) error {
	return s.store.UnlinkPayment(ctx, rentalID, externalID)
}

// Invoices lists the linked external invoice references.
func (s *Service) Invoices(ctx context.Context, rentalID int64) ([]InvoiceRef, error) {
	return s.store.ListInvoiceRefs(ctx, rentalID)
}

// Payments lists the linked external payment references.
func (s *Service) Payments(ctx context.Context, rentalID int64) ([]PaymentRef, error) {
	return s.store.ListPaymentRefs(ctx, rentalID)
}
