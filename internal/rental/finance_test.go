package rental

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSummaryBalanceLabels(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestService(now)
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateRentalRequest{
		CustomerID: 7,
		StartDate:  "2025-01-01",
		Items: []CreateItemRequest{
			{EquipmentName: "Excavator", UnitPrice: "100", RateType: "daily", StartDate: "2025-01-01"},
		},
	})
	require.NoError(t, err)

	// 31 elapsed days at 100/day plus 15% VAT, nothing collected yet.
	summary, err := svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "3565", summary.ActualTotal.String())
	require.True(t, summary.TotalPaid.IsZero())
	require.Equal(t, BalanceOutstanding, summary.BalanceLabel)

	require.NoError(t, store.LinkPayment(ctx, &PaymentRef{
		RentalID: r.ID, ExternalID: "ACC-PAY-00001", Amount: decimal.NewFromInt(1000),
	}))
	summary, err = svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "2565", summary.Balance.String())
	require.Equal(t, BalanceOutstanding, summary.BalanceLabel)

	// Collections past the actual total flip the label.
	require.NoError(t, store.LinkPayment(ctx, &PaymentRef{
		RentalID: r.ID, ExternalID: "ACC-PAY-00002", Amount: decimal.NewFromInt(3000),
	}))
	summary, err = svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "4000", summary.TotalPaid.String())
	require.Equal(t, "-435", summary.Balance.String())
	require.Equal(t, BalanceOverpaid, summary.BalanceLabel)
}

func TestSummarySettled(t *testing.T) {
	svc, store := newTestService(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateRentalRequest{CustomerID: 7, StartDate: "2025-01-01"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTotals(ctx, r.ID, Totals{TotalAmount: decimal.NewFromInt(500)}))
	require.NoError(t, store.LinkPayment(ctx, &PaymentRef{
		RentalID: r.ID, ExternalID: "ACC-PAY-00001", Amount: decimal.NewFromInt(500),
	}))

	summary, err := svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, summary.Balance.IsZero())
	require.Equal(t, BalanceSettled, summary.BalanceLabel)
}

func TestSummarySourcePreference(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	svc, store := newTestService(now)
	ctx := context.Background()

	// No items and no linked invoices: the stored figures are all there is.
	r, err := svc.Create(ctx, CreateRentalRequest{CustomerID: 7, StartDate: "2025-01-01"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTotals(ctx, r.ID, Totals{TotalAmount: decimal.NewFromInt(500)}))

	summary, err := svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "stored", summary.Source)
	require.Equal(t, "500", summary.ActualTotal.String())

	// Linked external invoices outrank the stored figures.
	require.NoError(t, store.LinkInvoice(ctx, &InvoiceRef{
		RentalID: r.ID, ExternalID: "ACC-SINV-00001", Amount: decimal.NewFromInt(1200),
	}))
	require.NoError(t, store.LinkInvoice(ctx, &InvoiceRef{
		RentalID: r.ID, ExternalID: "ACC-SINV-00002", Amount: decimal.NewFromInt(800),
	}))

	summary, err = svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "invoices", summary.Source)
	require.Equal(t, "2000", summary.ActualTotal.String())

	// A live item-derived total outranks both.
	_, err = svc.AddItem(ctx, r.ID, CreateItemRequest{
		EquipmentName: "Crane", UnitPrice: "50", RateType: "daily", StartDate: "2025-01-01",
	})
	require.NoError(t, err)

	summary, err = svc.Summary(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "items", summary.Source)
	require.Equal(t, "1782.5", summary.ActualTotal.String())
}
