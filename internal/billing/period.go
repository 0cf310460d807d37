// Package billing partitions rental lifetimes into monthly invoice
// periods and drives incremental invoice creation against the external
// accounting system.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snd-est/snd-rental/internal/rental"
)

// Period is one calendar-month-bounded unbilled slice of a rental's
// lifetime. Periods are derived on demand and never stored; the end
// date becomes the rental's new last-invoice anchor once an invoice is
// actually created for it.
type Period struct {
	Start         time.Time `json:"startDate"`
	End           time.Time `json:"endDate"`
	InvoiceNumber string    `json:"invoiceNumber"`
	IsFirst       bool      `json:"isFirstPeriod"`
}

// ComputePeriods returns the ordered unbilled periods for a rental.
// The anchor resumes one day after the last invoiced date, or at the
// rental start on a first-ever run. The horizon is the expected end
// date, or now for an open-ended rental. Re-entrant: without an
// intervening successful invoice the same call yields the same periods.
func ComputePeriods(r *rental.Rental, now time.Time) []Period {
	currentStart := r.StartDate
	first := true
	if r.LastInvoiceDate != nil {
		currentStart = r.LastInvoiceDate.AddDate(0, 0, 1)
		first = false
	}
	end := r.EndDateForBilling(now)

	var periods []Period
	for currentStart.Before(end) {
		monthEnd := lastDayOfMonth(currentStart)
		periodEnd := monthEnd
		if end.Before(periodEnd) {
			periodEnd = end
		}
		// Degenerate zero-length slice: data anomaly, stop rather
		// than loop.
		if !currentStart.Before(periodEnd) {
			break
		}
		periods = append(periods, Period{
			Start:         currentStart,
			End:           periodEnd,
			InvoiceNumber: invoiceNumber(r.RentalNumber, currentStart),
			IsFirst:       first && len(periods) == 0,
		})
		currentStart = periodEnd.AddDate(0, 0, 1)
	}
	return periods
}

// invoiceNumber builds MONTHLY-{rentalNumber}-{year}-{month}-{suffix}.
// The random suffix keeps retried creations from colliding on the
// external system's unique name constraint.
func invoiceNumber(rentalNumber string, periodStart time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:3])
	return fmt.Sprintf("MONTHLY-%s-%d-%02d-%s", rentalNumber, periodStart.Year(), int(periodStart.Month()), suffix)
}

func lastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}
