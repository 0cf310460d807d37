// Package pricing holds the duration and line-item price math shared by
// the rental aggregator, the billing preparer, and read-only displays.
// Every call site must go through this package; the formulas are not
// duplicated anywhere else.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateType is the billing cadence of a rental line item.
type RateType string

const (
	RateHourly  RateType = "hourly"
	RateDaily   RateType = "daily"
	RateWeekly  RateType = "weekly"
	RateMonthly RateType = "monthly"
)

// ItemTerms carries the fields of a rental item that drive pricing.
type ItemTerms struct {
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal // zero means 1
	Rate          RateType
	StartDate     *time.Time // item-level override
	CompletedDate *time.Time
	StoredTotal   decimal.Decimal // fallback when no start date resolves
}

// RentalTerms carries the rental-level fallback dates.
type RentalTerms struct {
	StartDate       *time.Time
	ExpectedEndDate *time.Time
	Completed       bool
}

// ElapsedUnits converts a date interval into billable units for the
// given rate type. Ceiling division, minimum one unit: an item returned
// the day it went out still bills a full unit. A negative interval is
// clamped to zero before conversion. The monthly rate uses a fixed
// 30-day month; calendar-month boundaries belong to the billing period
// partitioner, not to lifetime pricing.
func ElapsedUnits(start, end time.Time, rate RateType) int64 {
	if end.Before(start) {
		end = start
	}
	elapsed := end.Sub(start)

	var unit time.Duration
	switch rate {
	case RateHourly:
		unit = time.Hour
	case RateWeekly:
		unit = 7 * 24 * time.Hour
	case RateMonthly:
		unit = 30 * 24 * time.Hour
	default:
		// daily, and anything unrecognized
		unit = 24 * time.Hour
	}

	units := int64(elapsed / unit)
	if elapsed%unit != 0 {
		units++
	}
	if units < 1 {
		units = 1
	}
	return units
}

// UnitsForDays converts a day count into billable units for the given
// rate type, used when pricing a slice of a billing period rather than
// an item's full lifetime.
func UnitsForDays(days int64, rate RateType) int64 {
	if days < 1 {
		days = 1
	}
	switch rate {
	case RateWeekly:
		return ceilDiv(days, 7)
	case RateMonthly:
		return ceilDiv(days, 30)
	default:
		return days
	}
}

// DaysBetween returns the ceiling day count of the interval, minimum 1.
func DaysBetween(start, end time.Time) int64 {
	if end.Before(start) {
		end = start
	}
	elapsed := end.Sub(start)
	days := int64(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// EffectiveStart resolves the date an item began accruing: the item's
// own start date when present, else the rental's. The second return is
// false when neither is set.
func EffectiveStart(item ItemTerms, rental RentalTerms) (time.Time, bool) {
	if item.StartDate != nil {
		return *item.StartDate, true
	}
	if rental.StartDate != nil {
		return *rental.StartDate, true
	}
	return time.Time{}, false
}

// EffectiveEnd resolves the date an item stopped (or will stop)
// accruing: its own completion date, else the rental's expected end
// when the rental is completed, else now (still accruing).
func EffectiveEnd(item ItemTerms, rental RentalTerms, now time.Time) time.Time {
	if item.CompletedDate != nil {
		return *item.CompletedDate
	}
	if rental.Completed && rental.ExpectedEndDate != nil {
		return *rental.ExpectedEndDate
	}
	return now
}

// PriceItem computes a line item's lifetime total. When no start date
// resolves the stored total is returned unchanged; the caller cannot do
// better without a date to anchor the interval.
func PriceItem(item ItemTerms, rental RentalTerms, now time.Time) decimal.Decimal {
	start, ok := EffectiveStart(item, rental)
	if !ok {
		return item.StoredTotal
	}
	end := EffectiveEnd(item, rental, now)

	units := decimal.NewFromInt(ElapsedUnits(start, end, item.Rate))
	qty := item.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return item.UnitPrice.Mul(units).Mul(qty).Round(2)
}

func ceilDiv(a, b int64) int64 {
	units := a / b
	if a%b != 0 {
		units++
	}
	if units < 1 {
		units = 1
	}
	return units
}
