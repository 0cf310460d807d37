package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/internal/rental/pricing"
)

func ptrDate(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func ptrInt64(v int64) *int64 { return &v }

func dailyItem(id int64, name string, price int64, start *time.Time) rental.Item {
	return rental.Item{
		ID:            id,
		EquipmentName: name,
		UnitPrice:     decimal.NewFromInt(price),
		Quantity:      decimal.NewFromInt(1),
		Rate:          pricing.RateDaily,
		Status:        rental.ItemActive,
		StartDate:     start,
	}
}

func TestPrepareInvoiceSlicesPerPeriod(t *testing.T) {
	r := &rental.Rental{
		ID:           1,
		RentalNumber: "RN-2025-00001",
		CustomerID:   7,
		StartDate:    date(2025, 1, 1),
		TaxRate:      decimal.NewFromInt(15),
	}
	// Item runs well past the period; only the in-window slice bills.
	items := []rental.Item{dailyItem(10, "Excavator", 100, ptrDate(2025, 1, 1))}
	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}

	inv := PrepareInvoice(r, items, period, decimal.NewFromInt(15))
	require.NotNil(t, inv)
	require.Len(t, inv.Lines, 1)

	line := inv.Lines[0]
	require.Equal(t, date(2025, 2, 1), line.SliceStart)
	require.Equal(t, date(2025, 2, 28), line.SliceEnd)
	require.EqualValues(t, 27, line.Days)
	require.EqualValues(t, 27, line.Units)
	require.Equal(t, "2700", line.Amount.String())
	require.Equal(t, "2700", inv.Subtotal.String())
	require.Equal(t, "405", inv.TaxAmount.String())
	require.Equal(t, "3105", inv.TotalAmount.String())
}

func TestPrepareInvoiceHandoverSplitsLines(t *testing.T) {
	r := &rental.Rental{
		ID:           1,
		RentalNumber: "RN-2025-00001",
		CustomerID:   7,
		StartDate:    date(2025, 2, 1),
		TaxRate:      decimal.NewFromInt(15),
	}

	outgoing := dailyItem(10, "Excavator", 100, ptrDate(2025, 2, 1))
	outgoing.Status = rental.ItemCompleted
	outgoing.CompletedDate = ptrDate(2025, 2, 10)
	outgoing.OperatorID = ptrInt64(1)

	incoming := dailyItem(11, "Excavator", 100, ptrDate(2025, 2, 10))
	incoming.OperatorID = ptrInt64(2)

	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}
	inv := PrepareInvoice(r, []rental.Item{outgoing, incoming}, period, decimal.NewFromInt(15))
	require.NotNil(t, inv)
	require.Len(t, inv.Lines, 2)

	require.EqualValues(t, 9, inv.Lines[0].Days, "outgoing bills start through handover")
	require.EqualValues(t, 18, inv.Lines[1].Days, "incoming bills handover through period end")

	require.Len(t, inv.Handovers, 1)
	h := inv.Handovers[0]
	require.Equal(t, int64(10), h.OutgoingItemID)
	require.Equal(t, int64(11), h.IncomingItemID)
	require.Equal(t, date(2025, 2, 10), h.Date)
}

func TestPrepareInvoiceNoOverlapReturnsNil(t *testing.T) {
	r := &rental.Rental{ID: 1, StartDate: date(2025, 1, 1), TaxRate: decimal.NewFromInt(15)}

	// Returned before the period opens.
	returned := dailyItem(10, "Crane", 50, ptrDate(2025, 1, 1))
	returned.CompletedDate = ptrDate(2025, 1, 20)

	// Starts after the period closes.
	future := dailyItem(11, "Loader", 80, ptrDate(2025, 3, 5))

	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}
	require.Nil(t, PrepareInvoice(r, []rental.Item{returned, future}, period, decimal.NewFromInt(15)))
}

func TestPrepareInvoiceSkipsNonBillableItems(t *testing.T) {
	r := &rental.Rental{ID: 1, StartDate: date(2025, 2, 1), TaxRate: decimal.NewFromInt(15)}

	removed := dailyItem(10, "Crane", 50, ptrDate(2025, 2, 1))
	removed.Status = rental.ItemRemoved
	active := dailyItem(11, "Loader", 80, ptrDate(2025, 2, 1))

	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}
	inv := PrepareInvoice(r, []rental.Item{removed, active}, period, decimal.NewFromInt(15))
	require.NotNil(t, inv)
	require.Len(t, inv.Lines, 1)
	require.Equal(t, int64(11), inv.Lines[0].ItemID)
}

func TestPrepareInvoiceWeeklyAndMonthlyUnits(t *testing.T) {
	r := &rental.Rental{ID: 1, StartDate: date(2025, 2, 1), TaxRate: decimal.NewFromInt(15)}

	weekly := dailyItem(10, "Generator", 700, ptrDate(2025, 2, 1))
	weekly.Rate = pricing.RateWeekly
	monthly := dailyItem(11, "Compressor", 3000, ptrDate(2025, 2, 1))
	monthly.Rate = pricing.RateMonthly

	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}
	inv := PrepareInvoice(r, []rental.Item{weekly, monthly}, period, decimal.NewFromInt(15))
	require.NotNil(t, inv)
	require.Len(t, inv.Lines, 2)

	// 27 days: 4 whole weeks, one partial month.
	require.EqualValues(t, 4, inv.Lines[0].Units)
	require.Equal(t, "2800", inv.Lines[0].Amount.String())
	require.EqualValues(t, 1, inv.Lines[1].Units)
	require.Equal(t, "3000", inv.Lines[1].Amount.String())
}

func TestPrepareInvoiceFallsBackToDefaultVAT(t *testing.T) {
	r := &rental.Rental{ID: 1, StartDate: date(2025, 2, 1)}
	items := []rental.Item{dailyItem(10, "Crane", 100, ptrDate(2025, 2, 1))}
	period := Period{Start: date(2025, 2, 1), End: date(2025, 2, 28)}

	inv := PrepareInvoice(r, items, period, decimal.NewFromInt(15))
	require.NotNil(t, inv)
	require.True(t, inv.TaxRate.Equal(decimal.NewFromInt(15)))
}

func TestDetectHandoversIgnoresSameOperator(t *testing.T) {
	outgoing := dailyItem(10, "Excavator", 100, ptrDate(2025, 2, 1))
	outgoing.Status = rental.ItemCompleted
	outgoing.CompletedDate = ptrDate(2025, 2, 10)
	outgoing.OperatorID = ptrInt64(1)

	incoming := dailyItem(11, " excavator ", 100, ptrDate(2025, 2, 10))
	incoming.OperatorID = ptrInt64(1)

	require.Empty(t, DetectHandovers([]rental.Item{outgoing, incoming}))

	incoming.OperatorID = ptrInt64(2)
	require.Len(t, DetectHandovers([]rental.Item{outgoing, incoming}), 1,
		"name matching is case-insensitive and trimmed")
}
