package rental

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/shared"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	nextID      int64
	rentals     map[int64]*Rental
	items       map[int64]*Item
	logs        []StatusLog
	assignments map[int64]*Assignment
	invoiceRefs map[int64]*InvoiceRef
	paymentRefs map[int64]*PaymentRef
	seq         int

	failSaveTotals bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		rentals:     map[int64]*Rental{},
		items:       map[int64]*Item{},
		assignments: map[int64]*Assignment{},
		invoiceRefs: map[int64]*InvoiceRef{},
		paymentRefs: map[int64]*PaymentRef{},
	}
}

func (m *memStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) Create(_ context.Context, r *Rental) error {
	r.ID = m.id()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	clone := *r
	m.rentals[r.ID] = &clone
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Rental, error) {
	r, ok := m.rentals[id]
	if !ok {
		return nil, fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	clone := *r
	clone.Items = nil
	for _, item := range m.sortedItems(id) {
		clone.Items = append(clone.Items, *item)
	}
	return &clone, nil
}

func (m *memStore) GetByNumber(ctx context.Context, number string) (*Rental, error) {
	for id, r := range m.rentals {
		if r.RentalNumber == number {
			return m.Get(ctx, id)
		}
	}
	return nil, fmt.Errorf("%w: rental %s", shared.ErrNotFound, number)
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]Rental, int, error) {
	var out []Rental
	ids := make([]int64, 0, len(m.rentals))
	for id := range m.rentals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r := m.rentals[id]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.CustomerID > 0 && r.CustomerID != f.CustomerID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(r.RentalNumber), strings.ToLower(f.Search)) {
			continue
		}
		loaded, err := m.Get(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *loaded)
	}
	return out, len(out), nil
}

func (m *memStore) ListBillable(ctx context.Context) ([]Rental, error) {
	var out []Rental
	ids := make([]int64, 0, len(m.rentals))
	for id := range m.rentals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		r := m.rentals[id]
		if r.Status != StatusActive && r.Status != StatusCompleted {
			continue
		}
		loaded, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *loaded)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, r *Rental) error {
	stored, ok := m.rentals[r.ID]
	if !ok {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, r.ID)
	}
	clone := *r
	clone.Items = nil
	clone.CreatedAt = stored.CreatedAt
	clone.UpdatedAt = time.Now().UTC()
	m.rentals[r.ID] = &clone
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.rentals[id]; !ok {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	delete(m.rentals, id)
	for itemID, item := range m.items {
		if item.RentalID == id {
			delete(m.items, itemID)
		}
	}
	for aID, a := range m.assignments {
		if a.RentalID == id {
			delete(m.assignments, aID)
		}
	}
	for refID, ref := range m.invoiceRefs {
		if ref.RentalID == id {
			delete(m.invoiceRefs, refID)
		}
	}
	for refID, ref := range m.paymentRefs {
		if ref.RentalID == id {
			delete(m.paymentRefs, refID)
		}
	}
	filtered := m.logs[:0]
	for _, log := range m.logs {
		if log.RentalID != id {
			filtered = append(filtered, log)
		}
	}
	m.logs = filtered
	return nil
}

func (m *memStore) SaveTotals(_ context.Context, id int64, t Totals) error {
	if m.failSaveTotals {
		return fmt.Errorf("totals write refused")
	}
	r, ok := m.rentals[id]
	if !ok {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	r.Subtotal = t.Subtotal
	r.TaxAmount = t.TaxAmount
	r.TotalAmount = t.TotalAmount
	r.FinalAmount = t.FinalAmount
	return nil
}

func (m *memStore) SaveInvoiceMarkers(_ context.Context, id int64, mk InvoiceMarkers) error {
	r, ok := m.rentals[id]
	if !ok {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	last := mk.LastInvoiceDate
	r.LastInvoiceDate = &last
	invoiceID := mk.LastInvoiceID
	r.LastInvoiceID = &invoiceID
	r.LastInvoiceAmount = mk.LastInvoiceAmount
	r.OutstandingAmount = mk.OutstandingAmount
	invoiceDate := mk.InvoiceDate
	r.InvoiceDate = &invoiceDate
	return nil
}

func (m *memStore) InsertItem(_ context.Context, item *Item) error {
	item.ID = m.id()
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *memStore) UpdateItem(_ context.Context, item *Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("%w: item %d", shared.ErrNotFound, item.ID)
	}
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *memStore) DeleteItem(_ context.Context, rentalID, itemID int64) error {
	item, ok := m.items[itemID]
	if !ok || item.RentalID != rentalID {
		return fmt.Errorf("%w: item %d", shared.ErrNotFound, itemID)
	}
	delete(m.items, itemID)
	for aID, a := range m.assignments {
		if a.ItemID != nil && *a.ItemID == itemID {
			delete(m.assignments, aID)
		}
	}
	return nil
}

func (m *memStore) GetItem(_ context.Context, rentalID, itemID int64) (*Item, error) {
	item, ok := m.items[itemID]
	if !ok || item.RentalID != rentalID {
		return nil, fmt.Errorf("%w: item %d", shared.ErrNotFound, itemID)
	}
	clone := *item
	return &clone, nil
}

func (m *memStore) ListItems(_ context.Context, rentalID int64) ([]Item, error) {
	var out []Item
	for _, item := range m.sortedItems(rentalID) {
		out = append(out, *item)
	}
	return out, nil
}

func (m *memStore) sortedItems(rentalID int64) []*Item {
	var out []*Item
	for _, item := range m.items {
		if item.RentalID == rentalID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) SetItemTotal(_ context.Context, itemID int64, total decimal.Decimal) error {
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("%w: item %d", shared.ErrNotFound, itemID)
	}
	item.TotalPrice = total
	return nil
}

func (m *memStore) AppendStatusLog(_ context.Context, log StatusLog) error {
	log.ID = m.id()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memStore) ListStatusLogs(_ context.Context, rentalID int64) ([]StatusLog, error) {
	var out []StatusLog
	for _, log := range m.logs {
		if log.RentalID == rentalID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (m *memStore) CreateAssignment(_ context.Context, a *Assignment) error {
	a.ID = m.id()
	a.CreatedAt = time.Now().UTC()
	clone := *a
	m.assignments[a.ID] = &clone
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, rentalID int64) ([]Assignment, error) {
	var out []Assignment
	ids := make([]int64, 0, len(m.assignments))
	for id := range m.assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if m.assignments[id].RentalID == rentalID {
			out = append(out, *m.assignments[id])
		}
	}
	return out, nil
}

func (m *memStore) FindActiveAssignment(_ context.Context, rentalID int64, kind AssignmentKind, refID int64) (*Assignment, error) {
	for _, a := range m.assignments {
		if a.RentalID != rentalID || a.Kind != kind || a.Status != "active" {
			continue
		}
		switch kind {
		case AssignEquipment:
			if a.EquipmentID != nil && *a.EquipmentID == refID {
				clone := *a
				return &clone, nil
			}
		case AssignEmployee:
			if a.EmployeeID != nil && *a.EmployeeID == refID {
				clone := *a
				return &clone, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: assignment", shared.ErrNotFound)
}

func (m *memStore) CloseAssignmentsForItem(_ context.Context, itemID int64, endDate time.Time) error {
	for _, a := range m.assignments {
		if a.ItemID != nil && *a.ItemID == itemID && a.Status == "active" {
			a.Status = "completed"
			end := endDate
			a.EndDate = &end
		}
	}
	return nil
}

func (m *memStore) DeleteAssignment(_ context.Context, id int64) error {
	if _, ok := m.assignments[id]; !ok {
		return fmt.Errorf("%w: assignment %d", shared.ErrNotFound, id)
	}
	delete(m.assignments, id)
	return nil
}

func (m *memStore) LinkInvoice(_ context.Context, ref *InvoiceRef) error {
	for _, existing := range m.invoiceRefs {
		if existing.RentalID == ref.RentalID && existing.ExternalID == ref.ExternalID {
			return fmt.Errorf("%w: invoice %s", shared.ErrDuplicate, ref.ExternalID)
		}
	}
	ref.ID = m.id()
	ref.LinkedAt = time.Now().UTC()
	clone := *ref
	m.invoiceRefs[ref.ID] = &clone
	return nil
}

func (m *memStore) UnlinkInvoice(_ context.Context, rentalID int64, externalID string) error {
	for id, ref := range m.invoiceRefs {
		if ref.RentalID == rentalID && ref.ExternalID == externalID {
			delete(m.invoiceRefs, id)
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s", shared.ErrNotFound, externalID)
}

func (m *memStore) ListInvoiceRefs(_ context.Context, rentalID int64) ([]InvoiceRef, error) {
	var out []InvoiceRef
	ids := make([]int64, 0, len(m.invoiceRefs))
	for id := range m.invoiceRefs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if m.invoiceRefs[id].RentalID == rentalID {
			out = append(out, *m.invoiceRefs[id])
		}
	}
	return out, nil
}

func (m *memStore) LinkPayment(_ context.Context, ref *PaymentRef) error {
	for _, existing := range m.paymentRefs {
		if existing.RentalID == ref.RentalID && existing.ExternalID == ref.ExternalID {
			return fmt.Errorf("%w: payment %s", shared.ErrDuplicate, ref.ExternalID)
		}
	}
	ref.ID = m.id()
	ref.LinkedAt = time.Now().UTC()
	clone := *ref
	m.paymentRefs[ref.ID] = &clone
	return nil
}

func (m *memStore) UnlinkPayment(_ context.Context, rentalID int64, externalID string) error {
	for id, ref := range m.paymentRefs {
		if ref.RentalID == rentalID && ref.ExternalID == externalID {
			delete(m.paymentRefs, id)
			return nil
		}
	}
	return fmt.Errorf("%w: payment %s", shared.ErrNotFound, externalID)
}

func (m *memStore) ListPaymentRefs(_ context.Context, rentalID int64) ([]PaymentRef, error) {
	var out []PaymentRef
	ids := make([]int64, 0, len(m.paymentRefs))
	for id := range m.paymentRefs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if m.paymentRefs[id].RentalID == rentalID {
			out = append(out, *m.paymentRefs[id])
		}
	}
	return out, nil
}

func (m *memStore) NextRentalNumber(_ context.Context) (string, error) {
	m.seq++
	return fmt.Sprintf("RN-%d-%05d", time.Now().UTC().Year(), m.seq), nil
}
