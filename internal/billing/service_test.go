package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/internal/shared"
)

// billingStore is the slice of rental.Store the billing tests exercise.
type billingStore struct {
	rentals     map[int64]*rental.Rental
	items       map[int64][]rental.Item
	invoiceRefs []rental.InvoiceRef

	markerWrites int
	failMarkers  bool
}

func newBillingStore() *billingStore {
	return &billingStore{
		rentals: map[int64]*rental.Rental{},
		items:   map[int64][]rental.Item{},
	}
}

func (s *billingStore) add(r *rental.Rental, items ...rental.Item) {
	s.rentals[r.ID] = r
	s.items[r.ID] = items
}

func (s *billingStore) Get(_ context.Context, id int64) (*rental.Rental, error) {
	r, ok := s.rentals[id]
	if !ok {
		return nil, fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	clone := *r
	clone.Items = append([]rental.Item(nil), s.items[id]...)
	return &clone, nil
}

func (s *billingStore) ListBillable(ctx context.Context) ([]rental.Rental, error) {
	ids := make([]int64, 0, len(s.rentals))
	for id := range s.rentals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []rental.Rental
	for _, id := range ids {
		r := s.rentals[id]
		if r.Status != rental.StatusActive && r.Status != rental.StatusCompleted {
			continue
		}
		loaded, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *loaded)
	}
	return out, nil
}

func (s *billingStore) SaveInvoiceMarkers(_ context.Context, id int64, m rental.InvoiceMarkers) error {
	if s.failMarkers {
		return fmt.Errorf("marker write refused")
	}
	r, ok := s.rentals[id]
	if !ok {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	s.markerWrites++
	last := m.LastInvoiceDate
	r.LastInvoiceDate = &last
	invoiceID := m.LastInvoiceID
	r.LastInvoiceID = &invoiceID
	r.LastInvoiceAmount = m.LastInvoiceAmount
	r.OutstandingAmount = m.OutstandingAmount
	return nil
}

func (s *billingStore) LinkInvoice(_ context.Context, ref *rental.InvoiceRef) error {
	s.invoiceRefs = append(s.invoiceRefs, *ref)
	return nil
}

func (s *billingStore) ListInvoiceRefs(_ context.Context, rentalID int64) ([]rental.InvoiceRef, error) {
	var out []rental.InvoiceRef
	for _, ref := range s.invoiceRefs {
		if ref.RentalID == rentalID {
			out = append(out, ref)
		}
	}
	return out, nil
}

// The remaining Store methods are unused by the billing service.

func (s *billingStore) Create(context.Context, *rental.Rental) error { return nil }
func (s *billingStore) GetByNumber(context.Context, string) (*rental.Rental, error) {
	return nil, shared.ErrNotFound
}
func (s *billingStore) List(context.Context, rental.ListFilter) ([]rental.Rental, int, error) {
	return nil, 0, nil
}
func (s *billingStore) Update(context.Context, *rental.Rental) error            { return nil }
func (s *billingStore) Delete(context.Context, int64) error                     { return nil }
func (s *billingStore) SaveTotals(context.Context, int64, rental.Totals) error  { return nil }
func (s *billingStore) InsertItem(context.Context, *rental.Item) error          { return nil }
func (s *billingStore) UpdateItem(context.Context, *rental.Item) error          { return nil }
func (s *billingStore) DeleteItem(context.Context, int64, int64) error          { return nil }
func (s *billingStore) GetItem(context.Context, int64, int64) (*rental.Item, error) {
	return nil, shared.ErrNotFound
}
func (s *billingStore) ListItems(_ context.Context, rentalID int64) ([]rental.Item, error) {
	return s.items[rentalID], nil
}
func (s *billingStore) SetItemTotal(context.Context, int64, decimal.Decimal) error { return nil }
func (s *billingStore) AppendStatusLog(context.Context, rental.StatusLog) error    { return nil }
func (s *billingStore) ListStatusLogs(context.Context, int64) ([]rental.StatusLog, error) {
	return nil, nil
}
func (s *billingStore) CreateAssignment(context.Context, *rental.Assignment) error { return nil }
func (s *billingStore) ListAssignments(context.Context, int64) ([]rental.Assignment, error) {
	return nil, nil
}
func (s *billingStore) FindActiveAssignment(context.Context, int64, rental.AssignmentKind, int64) (*rental.Assignment, error) {
	return nil, shared.ErrNotFound
}
func (s *billingStore) CloseAssignmentsForItem(context.Context, int64, time.Time) error { return nil }
func (s *billingStore) DeleteAssignment(context.Context, int64) error                   { return nil }
func (s *billingStore) UnlinkInvoice(context.Context, int64, string) error              { return nil }
func (s *billingStore) LinkPayment(context.Context, *rental.PaymentRef) error           { return nil }
func (s *billingStore) UnlinkPayment(context.Context, int64, string) error              { return nil }
func (s *billingStore) ListPaymentRefs(context.Context, int64) ([]rental.PaymentRef, error) {
	return nil, nil
}
func (s *billingStore) NextRentalNumber(context.Context) (string, error) { return "RN-TEST", nil }

// fakeCreator records created invoices and can fail on demand.
type fakeCreator struct {
	created []InvoiceData
	failFor map[int64]bool
}

func (f *fakeCreator) CreateRentalInvoice(_ context.Context, inv *InvoiceData) (CreatedInvoice, error) {
	if f.failFor[inv.RentalID] {
		return CreatedInvoice{}, fmt.Errorf("remote rejected the document")
	}
	f.created = append(f.created, *inv)
	return CreatedInvoice{
		ID:          fmt.Sprintf("ACC-SINV-%05d", len(f.created)),
		GrandTotal:  inv.TotalAmount,
		Outstanding: inv.TotalAmount,
		Status:      "Submitted",
	}, nil
}

func newBillingService(store *billingStore, creator InvoiceCreator, redisClient *redis.Client, now time.Time) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, creator, redisClient, logger, decimal.NewFromInt(15))
	svc.now = func() time.Time { return now }
	return svc
}

func activeRental(id int64, start time.Time, expectedEnd *time.Time) (*rental.Rental, rental.Item) {
	startCopy := start
	return &rental.Rental{
			ID:              id,
			RentalNumber:    fmt.Sprintf("RN-2025-%05d", id),
			CustomerID:      7,
			StartDate:       start,
			ExpectedEndDate: expectedEnd,
			Status:          rental.StatusActive,
			TaxRate:         decimal.NewFromInt(15),
		}, rental.Item{
			ID:            id * 100,
			RentalID:      id,
			EquipmentName: "Excavator",
			UnitPrice:     decimal.NewFromInt(100),
			Quantity:      decimal.NewFromInt(1),
			Rate:          "daily",
			Status:        rental.ItemActive,
			StartDate:     &startCopy,
		}
}

func TestGenerateForRentalAdvancesAnchor(t *testing.T) {
	now := date(2025, 3, 15)
	store := newBillingStore()
	end := date(2025, 3, 10)
	r, item := activeRental(1, date(2025, 1, 15), &end)
	store.add(r, item)

	creator := &fakeCreator{}
	svc := newBillingService(store, creator, nil, now)

	created, err := svc.GenerateForRental(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, created, 3, "one invoice per calendar-month slice")
	require.Equal(t, 3, store.markerWrites)

	require.NotNil(t, r.LastInvoiceDate)
	require.Equal(t, date(2025, 3, 10), *r.LastInvoiceDate)
	require.Equal(t, "ACC-SINV-00003", *r.LastInvoiceID)

	// Outstanding reflects the latest invoice, not a running sum.
	require.True(t, r.OutstandingAmount.Equal(created[2].GrandTotal))

	refs, err := store.ListInvoiceRefs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	// A second run finds nothing left to bill.
	_, err = svc.GenerateForRental(context.Background(), 1, "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestGenerateForRentalMonthFilter(t *testing.T) {
	now := date(2025, 6, 1)
	store := newBillingStore()
	end := date(2025, 3, 10)
	r, item := activeRental(1, date(2025, 1, 15), &end)
	store.add(r, item)

	creator := &fakeCreator{}
	svc := newBillingService(store, creator, nil, now)

	created, err := svc.GenerateForRental(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, date(2025, 1, 31), *r.LastInvoiceDate)
}

func TestGenerateForRentalRejectsWrongStatus(t *testing.T) {
	store := newBillingStore()
	r, item := activeRental(1, date(2025, 1, 15), nil)
	r.Status = rental.StatusPending
	store.add(r, item)

	svc := newBillingService(store, &fakeCreator{}, nil, date(2025, 3, 1))
	_, err := svc.GenerateForRental(context.Background(), 1, "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestGenerateForRentalExternalFailureStopsRun(t *testing.T) {
	now := date(2025, 3, 15)
	store := newBillingStore()
	end := date(2025, 3, 10)
	r, item := activeRental(1, date(2025, 1, 15), &end)
	store.add(r, item)

	creator := &fakeCreator{failFor: map[int64]bool{1: true}}
	svc := newBillingService(store, creator, nil, now)

	created, err := svc.GenerateForRental(context.Background(), 1, "")
	require.ErrorIs(t, err, shared.ErrExternal)
	require.Empty(t, created)
	require.Nil(t, r.LastInvoiceDate, "anchor does not move without a confirmed invoice")
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	now := date(2025, 3, 15)
	store := newBillingStore()
	end := date(2025, 3, 10)

	good, goodItem := activeRental(1, date(2025, 1, 15), &end)
	bad, badItem := activeRental(2, date(2025, 1, 15), &end)
	idle, idleItem := activeRental(3, date(2025, 1, 15), &end)
	anchored := end
	idle.LastInvoiceDate = &anchored // fully billed
	store.add(good, goodItem)
	store.add(bad, badItem)
	store.add(idle, idleItem)

	creator := &fakeCreator{failFor: map[int64]bool{2: true}}
	svc := newBillingService(store, creator, nil, now)

	report, err := svc.GenerateAll(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 3, report.Processed)
	require.Equal(t, 3, report.Invoiced)
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	require.Equal(t, int64(2), report.Errors[0].RentalID)

	require.NotNil(t, good.LastInvoiceDate, "healthy rental billed despite the failure")
}

func TestGenerateAllLockRejectsConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newBillingStore()
	svc := newBillingService(store, &fakeCreator{}, client, date(2025, 3, 15))

	require.NoError(t, client.SetNX(context.Background(), shared.BillingLockKey(), "1", time.Minute).Err())

	_, err := svc.GenerateAll(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrConflict)

	mr.Del(shared.BillingLockKey())
	report, err := svc.GenerateAll(context.Background(), "")
	require.NoError(t, err)
	require.Zero(t, report.Processed)

	// The lock is released after the run.
	require.False(t, mr.Exists(shared.BillingLockKey()))
}

func TestMarkerWriteFailureSurfaces(t *testing.T) {
	now := date(2025, 3, 15)
	store := newBillingStore()
	end := date(2025, 3, 10)
	r, item := activeRental(1, date(2025, 1, 15), &end)
	store.add(r, item)
	store.failMarkers = true

	creator := &fakeCreator{}
	svc := newBillingService(store, creator, nil, now)

	created, err := svc.GenerateForRental(context.Background(), 1, "")
	require.Error(t, err)
	require.Empty(t, created, "the failed period's invoice is not reported as created")
	require.Len(t, creator.created, 1, "the external document exists and needs manual linking")
}
