package billing

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snd-est/snd-rental/internal/rental"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputePeriodsPartitionsByCalendarMonth(t *testing.T) {
	end := date(2025, 3, 10)
	r := &rental.Rental{
		RentalNumber:    "RN-2025-00001",
		StartDate:       date(2025, 1, 15),
		ExpectedEndDate: &end,
	}

	periods := ComputePeriods(r, date(2025, 6, 1))
	require.Len(t, periods, 3)

	require.Equal(t, date(2025, 1, 15), periods[0].Start)
	require.Equal(t, date(2025, 1, 31), periods[0].End)
	require.True(t, periods[0].IsFirst)

	require.Equal(t, date(2025, 2, 1), periods[1].Start)
	require.Equal(t, date(2025, 2, 28), periods[1].End)
	require.False(t, periods[1].IsFirst)

	require.Equal(t, date(2025, 3, 1), periods[2].Start)
	require.Equal(t, date(2025, 3, 10), periods[2].End)
	require.False(t, periods[2].IsFirst)

	// Periods tile the lifetime with no gaps or overlaps.
	for i := 1; i < len(periods); i++ {
		require.Equal(t, periods[i-1].End.AddDate(0, 0, 1), periods[i].Start)
	}
}

func TestComputePeriodsResumesAfterAnchor(t *testing.T) {
	anchor := date(2025, 1, 31)
	end := date(2025, 3, 10)
	r := &rental.Rental{
		RentalNumber:    "RN-2025-00001",
		StartDate:       date(2025, 1, 15),
		ExpectedEndDate: &end,
		LastInvoiceDate: &anchor,
	}

	periods := ComputePeriods(r, date(2025, 6, 1))
	require.Len(t, periods, 2)
	require.Equal(t, date(2025, 2, 1), periods[0].Start)
	require.False(t, periods[0].IsFirst, "a resumed run is never the first period")
}

func TestComputePeriodsOpenEndedUsesNow(t *testing.T) {
	r := &rental.Rental{
		RentalNumber: "RN-2025-00002",
		StartDate:    date(2025, 1, 1),
	}

	periods := ComputePeriods(r, date(2025, 2, 15))
	require.Len(t, periods, 2)
	require.Equal(t, date(2025, 1, 31), periods[0].End)
	require.Equal(t, date(2025, 2, 15), periods[1].End)
}

func TestComputePeriodsFullyBilled(t *testing.T) {
	anchor := date(2025, 3, 10)
	end := date(2025, 3, 10)
	r := &rental.Rental{
		StartDate:       date(2025, 1, 15),
		ExpectedEndDate: &end,
		LastInvoiceDate: &anchor,
	}
	require.Empty(t, ComputePeriods(r, date(2025, 6, 1)))
}

func TestComputePeriodsIsReentrant(t *testing.T) {
	end := date(2025, 3, 10)
	r := &rental.Rental{
		RentalNumber:    "RN-2025-00003",
		StartDate:       date(2025, 1, 15),
		ExpectedEndDate: &end,
	}

	first := ComputePeriods(r, date(2025, 6, 1))
	second := ComputePeriods(r, date(2025, 6, 1))
	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].Start, second[i].Start)
		require.Equal(t, first[i].End, second[i].End)
	}
}

func TestInvoiceNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^MONTHLY-RN-2025-00004-2025-02-[0-9A-F]{3}$`)

	for range 5 {
		require.Regexp(t, pattern, invoiceNumber("RN-2025-00004", date(2025, 2, 1)))
	}
}

func TestLastDayOfMonth(t *testing.T) {
	require.Equal(t, date(2025, 2, 28), lastDayOfMonth(date(2025, 2, 10)))
	require.Equal(t, date(2024, 2, 29), lastDayOfMonth(date(2024, 2, 1)))
	require.Equal(t, date(2025, 12, 31), lastDayOfMonth(date(2025, 12, 5)))
}
