package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationNormalizesWindow(t *testing.T) {
	p := NewPagination(0, 0, 60)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 0, p.Offset())

	p = NewPagination(3, 1000, 60)
	require.Equal(t, MaxPerPage, p.PerPage, "oversized requests are clamped")
	require.Equal(t, 200, p.Offset())
	require.Equal(t, 1, p.TotalPages)
}

func TestNewPaginationEmptyListing(t *testing.T) {
	p := NewPagination(1, 25, 0)
	require.Equal(t, 0, p.Total)
	require.Equal(t, 0, p.TotalPages)
}
