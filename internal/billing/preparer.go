package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/internal/rental/pricing"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Line is one item's contribution to a billing period: the slice of
// its lifetime falling inside the period window, not the full lifetime.
type Line struct {
	ItemID        int64            `json:"itemId"`
	EquipmentName string           `json:"equipmentName"`
	Description   string           `json:"description"`
	Rate          pricing.RateType `json:"rateType"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	Days          int64            `json:"days"`
	Units         int64            `json:"units"`
	Amount        decimal.Decimal  `json:"amount"`
	OperatorID    *int64           `json:"operatorId,omitempty"`
	SliceStart    time.Time        `json:"sliceStart"`
	SliceEnd      time.Time        `json:"sliceEnd"`
}

// Handover is a detected mid-period equipment replacement: one item
// completed and another item for the same equipment started on or after
// that completion with a different operator. Both partial contributions
// appear as separate lines.
type Handover struct {
	EquipmentName  string    `json:"equipmentName"`
	OutgoingItemID int64     `json:"outgoingItemId"`
	IncomingItemID int64     `json:"incomingItemId"`
	Date           time.Time `json:"date"`
}

// InvoiceData is the structured payload for one period's invoice.
type InvoiceData struct {
	RentalID     int64           `json:"rentalId"`
	RentalNumber string          `json:"rentalNumber"`
	CustomerID   int64           `json:"customerId"`
	Period       Period          `json:"period"`
	Lines        []Line          `json:"lines"`
	Handovers    []Handover      `json:"handovers,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

// PrepareInvoice slices each item's contribution to the period and
// aggregates the invoice totals. Returns nil when no item overlaps the
// period; the caller skips invoice creation entirely.
func PrepareInvoice(r *rental.Rental, items []rental.Item, period Period, defaultVAT decimal.Decimal) *InvoiceData {
	terms := r.Terms()

	var lines []Line
	for i := range items {
		item := &items[i]
		if !item.Billable() {
			continue
		}

		itemStart, ok := pricing.EffectiveStart(item.Terms(), terms)
		if !ok {
			continue
		}
		// Bounded to the window: an open item accrues to the period
		// end, not to now.
		itemEnd := period.End
		if item.CompletedDate != nil && item.CompletedDate.Before(itemEnd) {
			itemEnd = *item.CompletedDate
		}

		sliceStart := itemStart
		if sliceStart.Before(period.Start) {
			sliceStart = period.Start
		}
		if sliceStart.After(itemEnd) {
			// No overlap: returned before the period or starting
			// after it.
			continue
		}

		days := pricing.DaysBetween(sliceStart, itemEnd)
		units := pricing.UnitsForDays(days, item.Rate)
		amount := item.UnitPrice.Mul(decimal.NewFromInt(units)).Round(2)

		lines = append(lines, Line{
			ItemID:        item.ID,
			EquipmentName: item.EquipmentName,
			Description:   lineDescription(item, sliceStart, itemEnd),
			Rate:          item.Rate,
			UnitPrice:     item.UnitPrice,
			Days:          days,
			Units:         units,
			Amount:        amount,
			OperatorID:    item.OperatorID,
			SliceStart:    sliceStart,
			SliceEnd:      itemEnd,
		})
	}
	if len(lines) == 0 {
		return nil
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Amount)
	}
	taxRate := r.TaxRate
	if taxRate.IsZero() {
		taxRate = defaultVAT
	}
	taxAmount := shared.ApplyVAT(subtotal, taxRate)

	return &InvoiceData{
		RentalID:     r.ID,
		RentalNumber: r.RentalNumber,
		CustomerID:   r.CustomerID,
		Period:       period,
		Lines:        lines,
		Handovers:    DetectHandovers(items),
		Subtotal:     subtotal,
		TaxRate:      taxRate,
		TaxAmount:    taxAmount,
		TotalAmount:  subtotal.Add(taxAmount),
	}
}

// DetectHandovers pairs a completed item with its replacement: same
// resolved equipment name, replacement start on or after the
// completion date, different operator.
func DetectHandovers(items []rental.Item) []Handover {
	var handovers []Handover
	for i := range items {
		out := &items[i]
		if out.Status != rental.ItemCompleted || out.CompletedDate == nil {
			continue
		}
		for j := range items {
			if i == j {
				continue
			}
			in := &items[j]
			if in.StartDate == nil || in.StartDate.Before(*out.CompletedDate) {
				continue
			}
			if !equalName(out.EquipmentName, in.EquipmentName) {
				continue
			}
			if sameOperator(out.OperatorID, in.OperatorID) {
				continue
			}
			handovers = append(handovers, Handover{
				EquipmentName:  out.EquipmentName,
				OutgoingItemID: out.ID,
				IncomingItemID: in.ID,
				Date:           *out.CompletedDate,
			})
		}
	}
	return handovers
}

func lineDescription(item *rental.Item, start, end time.Time) string {
	return item.EquipmentName + " rental " + start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}

func equalName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func sameOperator(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
