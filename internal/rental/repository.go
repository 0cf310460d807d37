package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/platform/db"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Store is the persistence contract the rental services depend on.
// Implemented by Repository for PostgreSQL and by in-memory fakes in
// tests.
type Store interface {
	Create(ctx context.Context, r *Rental) error
	Get(ctx context.Context, id int64) (*Rental, error)
	GetByNumber(ctx context.Context, number string) (*Rental, error)
	List(ctx context.Context, f ListFilter) ([]Rental, int, error)
	ListBillable(ctx context.Context) ([]Rental, error)
	Update(ctx context.Context, r *Rental) error
	Delete(ctx context.Context, id int64) error

	SaveTotals(ctx context.Context, id int64, t Totals) error
	SaveInvoiceMarkers(ctx context.Context, id int64, m InvoiceMarkers) error

	InsertItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, rentalID, itemID int64) error
	GetItem(ctx context.Context, rentalID, itemID int64) (*Item, error)
	ListItems(ctx context.Context, rentalID int64) ([]Item, error)
	SetItemTotal(ctx context.Context, itemID int64, total decimal.Decimal) error

	AppendStatusLog(ctx context.Context, log StatusLog) error
	ListStatusLogs(ctx context.Context, rentalID int64) ([]StatusLog, error)

	CreateAssignment(ctx context.Context, a *Assignment) error
	ListAssignments(ctx context.Context, rentalID int64) ([]Assignment, error)
	FindActiveAssignment(ctx context.Context, rentalID int64, kind AssignmentKind, refID int64) (*Assignment, error)
	CloseAssignmentsForItem(ctx context.Context, itemID int64, endDate time.Time) error
	DeleteAssignment(ctx context.Context, id int64) error

	LinkInvoice(ctx context.Context, ref *InvoiceRef) error
	UnlinkInvoice(ctx context.Context, rentalID int64, externalID string) error
	ListInvoiceRefs(ctx context.Context, rentalID int64) ([]InvoiceRef, error)
	LinkPayment(ctx context.Context, ref *PaymentRef) error
	UnlinkPayment(ctx context.Context, rentalID int64, externalID string) error
	ListPaymentRefs(ctx context.Context, rentalID int64) ([]PaymentRef, error)

	NextRentalNumber(ctx context.Context) (string, error)
}

// Totals is the derived financial snapshot persisted by the aggregator.
type Totals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	FinalAmount decimal.Decimal
}

// InvoiceMarkers advances the billing anchor after a confirmed external
// invoice creation.
type InvoiceMarkers struct {
	LastInvoiceDate   time.Time
	LastInvoiceID     string
	LastInvoiceAmount decimal.Decimal
	OutstandingAmount decimal.Decimal
	InvoiceDate       time.Time
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const rentalColumns = `id, rental_number, customer_id, supervisor_id, start_date, expected_end_date, actual_end_date,
status, quotation_id, approved_at, mobilization_date, invoice_date, completed_at,
last_invoice_date, last_invoice_id, last_invoice_amount,
subtotal, tax_rate, tax_amount, total_amount, discount, final_amount, deposit_amount, outstanding_amount, payment_status,
notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(row rowScanner) (*Rental, error) {
	var (
		r                                                      Rental
		lastInvoiceAmount                                      *string
		subtotal, taxRate, taxAmount, totalAmount              *string
		discount, finalAmount, depositAmount, outstandingAmnt  *string
	)
	err := row.Scan(
		&r.ID, &r.RentalNumber, &r.CustomerID, &r.SupervisorID, &r.StartDate, &r.ExpectedEndDate, &r.ActualEndDate,
		&r.Status, &r.QuotationID, &r.ApprovedAt, &r.MobilizationDate, &r.InvoiceDate, &r.CompletedAt,
		&r.LastInvoiceDate, &r.LastInvoiceID, &lastInvoiceAmount,
		&subtotal, &taxRate, &taxAmount, &totalAmount,
		&discount, &finalAmount, &depositAmount, &outstandingAmnt, &r.PaymentStatus,
		&r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src *string
		dst *decimal.Decimal
	}{
		{lastInvoiceAmount, &r.LastInvoiceAmount},
		{subtotal, &r.Subtotal},
		{taxRate, &r.TaxRate},
		{taxAmount, &r.TaxAmount},
		{totalAmount, &r.TotalAmount},
		{discount, &r.Discount},
		{finalAmount, &r.FinalAmount},
		{depositAmount, &r.DepositAmount},
		{outstandingAmnt, &r.OutstandingAmount},
	} {
		if f.src == nil {
			*f.dst = decimal.Zero
			continue
		}
		d, err := shared.ParseAmount(*f.src)
		if err != nil {
			return nil, fmt.Errorf("rental: stored amount: %w", err)
		}
		*f.dst = d
	}
	return &r, nil
}

// Create inserts a new rental and assigns its id.
func (r *Repository) Create(ctx context.Context, rental *Rental) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rentals
(rental_number, customer_id, supervisor_id, start_date, expected_end_date, status,
 subtotal, tax_rate, tax_amount, total_amount, discount, final_amount, deposit_amount, outstanding_amount, payment_status,
 notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17) RETURNING id, created_at, updated_at`,
		rental.RentalNumber, rental.CustomerID, rental.SupervisorID, rental.StartDate, rental.ExpectedEndDate, rental.Status,
		shared.FormatAmount(rental.Subtotal), rental.TaxRate.String(), shared.FormatAmount(rental.TaxAmount),
		shared.FormatAmount(rental.TotalAmount), shared.FormatAmount(rental.Discount), shared.FormatAmount(rental.FinalAmount),
		shared.FormatAmount(rental.DepositAmount), shared.FormatAmount(rental.OutstandingAmount), rental.PaymentStatus,
		rental.Notes, time.Now().UTC(),
	).Scan(&rental.ID, &rental.CreatedAt, &rental.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: rental number %s", shared.ErrDuplicate, rental.RentalNumber)
		}
		return fmt.Errorf("rental: create: %w", err)
	}
	return nil
}

// Get loads a rental with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Rental, error) {
	rental, err := scanRental(r.pool.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
		}
		return nil, fmt.Errorf("rental: get: %w", err)
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	rental.Items = items
	return rental, nil
}

// GetByNumber loads a rental by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Rental, error) {
	rental, err := scanRental(r.pool.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE rental_number = $1`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: rental %s", shared.ErrNotFound, number)
		}
		return nil, fmt.Errorf("rental: get by number: %w", err)
	}
	items, err := r.ListItems(ctx, rental.ID)
	if err != nil {
		return nil, err
	}
	rental.Items = items
	return rental, nil
}

// List returns rentals matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Rental, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.CustomerID > 0 {
		where += fmt.Sprintf(" AND customer_id = $%d", idx)
		args = append(args, f.CustomerID)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND rental_number ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rentals`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("rental: count: %w", err)
	}

	page := shared.NewPagination(f.Page, f.PerPage, total)
	query := `SELECT ` + rentalColumns + ` FROM rentals` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("rental: list: %w", err)
	}
	defer rows.Close()

	var rentals []Rental
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, 0, err
		}
		rentals = append(rentals, *rental)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return rentals, total, nil
}

// ListBillable returns rentals eligible for the monthly billing run:
// active or completed, with a real start date.
func (r *Repository) ListBillable(ctx context.Context) ([]Rental, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rentalColumns+` FROM rentals
WHERE status IN ('active','completed') AND start_date < $1 ORDER BY id`, SentinelStartDate)
	if err != nil {
		return nil, fmt.Errorf("rental: list billable: %w", err)
	}
	defer rows.Close()

	var rentals []Rental
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rental)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range rentals {
		items, err := r.ListItems(ctx, rentals[i].ID)
		if err != nil {
			return nil, err
		}
		rentals[i].Items = items
	}
	return rentals, nil
}

// Update persists header, workflow and financial fields.
func (r *Repository) Update(ctx context.Context, rental *Rental) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rentals SET
customer_id=$2, supervisor_id=$3, start_date=$4, expected_end_date=$5, actual_end_date=$6,
status=$7, quotation_id=$8, approved_at=$9, mobilization_date=$10, invoice_date=$11, completed_at=$12,
last_invoice_date=$13, last_invoice_id=$14, last_invoice_amount=$15,
subtotal=$16, tax_rate=$17, tax_amount=$18, total_amount=$19, discount=$20, final_amount=$21,
deposit_amount=$22, outstanding_amount=$23, payment_status=$24, notes=$25, updated_at=$26
WHERE id = $1`,
		rental.ID, rental.CustomerID, rental.SupervisorID, rental.StartDate, rental.ExpectedEndDate, rental.ActualEndDate,
		rental.Status, rental.QuotationID, rental.ApprovedAt, rental.MobilizationDate, rental.InvoiceDate, rental.CompletedAt,
		rental.LastInvoiceDate, rental.LastInvoiceID, shared.FormatAmount(rental.LastInvoiceAmount),
		shared.FormatAmount(rental.Subtotal), rental.TaxRate.String(), shared.FormatAmount(rental.TaxAmount),
		shared.FormatAmount(rental.TotalAmount), shared.FormatAmount(rental.Discount), shared.FormatAmount(rental.FinalAmount),
		shared.FormatAmount(rental.DepositAmount), shared.FormatAmount(rental.OutstandingAmount), rental.PaymentStatus,
		rental.Notes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("rental: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, rental.ID)
	}
	return nil
}

// Delete removes a rental and every dependent row. Children go first:
// assignments, invoice and payment links, status logs, items, then the
// rental itself, all inside one transaction so a constraint violation
// aborts the whole cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, step := range []struct {
			table string
			query string
		}{
			{"rental_assignments", `DELETE FROM rental_assignments WHERE rental_id = $1`},
			{"rental_invoice_refs", `DELETE FROM rental_invoice_refs WHERE rental_id = $1`},
			{"rental_payment_refs", `DELETE FROM rental_payment_refs WHERE rental_id = $1`},
			{"rental_status_logs", `DELETE FROM rental_status_logs WHERE rental_id = $1`},
			{"rental_items", `DELETE FROM rental_items WHERE rental_id = $1`},
		} {
			if _, err := tx.Exec(ctx, step.query, id); err != nil {
				if isUndefinedTable(err) {
					// Schema drift tolerance: a missing dependent
					// table is not fatal to the cascade.
					continue
				}
				return fmt.Errorf("rental: delete from %s: %w", step.table, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rentals WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("rental: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
		}
		return nil
	})
}

// SaveTotals persists the aggregator's derived snapshot.
func (r *Repository) SaveTotals(ctx context.Context, id int64, t Totals) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rentals SET subtotal=$2, tax_amount=$3, total_amount=$4, final_amount=$5, updated_at=$6 WHERE id=$1`,
		id, shared.FormatAmount(t.Subtotal), shared.FormatAmount(t.TaxAmount),
		shared.FormatAmount(t.TotalAmount), shared.FormatAmount(t.FinalAmount), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rental: save totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	return nil
}

// SaveInvoiceMarkers advances the billing anchor after a confirmed
// external invoice. Outstanding is replaced, not summed: the new
// invoice supersedes the running balance for the cycle.
func (r *Repository) SaveInvoiceMarkers(ctx context.Context, id int64, m InvoiceMarkers) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rentals SET
last_invoice_date=$2, last_invoice_id=$3, last_invoice_amount=$4, outstanding_amount=$5, invoice_date=$6, updated_at=$7
WHERE id=$1`,
		id, m.LastInvoiceDate, m.LastInvoiceID, shared.FormatAmount(m.LastInvoiceAmount),
		shared.FormatAmount(m.OutstandingAmount), m.InvoiceDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rental: save invoice markers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: rental %d", shared.ErrNotFound, id)
	}
	return nil
}

const itemColumns = `id, rental_id, equipment_id, equipment_name, unit_price, total_price, quantity, rate_type, status,
start_date, completed_date, operator_id, supervisor_id, notes, created_at, updated_at`

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                 Item
		unitPrice, total, qty *string
	)
	err := row.Scan(
		&item.ID, &item.RentalID, &item.EquipmentID, &item.EquipmentName, &unitPrice, &total, &qty, &item.Rate, &item.Status,
		&item.StartDate, &item.CompletedDate, &item.OperatorID, &item.SupervisorID, &item.Notes, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src *string
		dst *decimal.Decimal
	}{
		{unitPrice, &item.UnitPrice},
		{total, &item.TotalPrice},
		{qty, &item.Quantity},
	} {
		if f.src == nil {
			*f.dst = decimal.Zero
			continue
		}
		d, err := shared.ParseAmount(*f.src)
		if err != nil {
			return nil, fmt.Errorf("rental: stored item amount: %w", err)
		}
		*f.dst = d
	}
	return &item, nil
}

// InsertItem adds a line to a rental.
func (r *Repository) InsertItem(ctx context.Context, item *Item) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rental_items
(rental_id, equipment_id, equipment_name, unit_price, total_price, quantity, rate_type, status, start_date, operator_id, supervisor_id, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13) RETURNING id, created_at, updated_at`,
		item.RentalID, item.EquipmentID, item.EquipmentName, shared.FormatAmount(item.UnitPrice),
		shared.FormatAmount(item.TotalPrice), item.Quantity.String(), item.Rate, item.Status,
		item.StartDate, item.OperatorID, item.SupervisorID, item.Notes, time.Now().UTC(),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("rental: insert item: %w", err)
	}
	return nil
}

// UpdateItem persists line changes.
func (r *Repository) UpdateItem(ctx context.Context, item *Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rental_items SET
equipment_id=$3, equipment_name=$4, unit_price=$5, total_price=$6, quantity=$7, rate_type=$8, status=$9,
start_date=$10, completed_date=$11, operator_id=$12, supervisor_id=$13, notes=$14, updated_at=$15
WHERE id = $1 AND rental_id = $2`,
		item.ID, item.RentalID, item.EquipmentID, item.EquipmentName, shared.FormatAmount(item.UnitPrice),
		shared.FormatAmount(item.TotalPrice), item.Quantity.String(), item.Rate, item.Status,
		item.StartDate, item.CompletedDate, item.OperatorID, item.SupervisorID, item.Notes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("rental: update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d", shared.ErrNotFound, item.ID)
	}
	return nil
}

// DeleteItem removes a line and its derived assignments.
func (r *Repository) DeleteItem(ctx context.Context, rentalID, itemID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM rental_assignments WHERE item_id = $1`, itemID); err != nil && !isUndefinedTable(err) {
			return fmt.Errorf("rental: delete item assignments: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rental_items WHERE id = $1 AND rental_id = $2`, itemID, rentalID)
		if err != nil {
			return fmt.Errorf("rental: delete item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: item %d", shared.ErrNotFound, itemID)
		}
		return nil
	})
}

// GetItem loads a single line.
func (r *Repository) GetItem(ctx context.Context, rentalID, itemID int64) (*Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM rental_items WHERE id = $1 AND rental_id = $2`, itemID, rentalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item %d", shared.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("rental: get item: %w", err)
	}
	return item, nil
}

// ListItems returns all lines of a rental.
func (r *Repository) ListItems(ctx context.Context, rentalID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM rental_items WHERE rental_id = $1 ORDER BY id`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("rental: list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItemTotal writes the derived lifetime price back onto the line.
// The aggregator is the only caller; nothing else mutates total_price.
func (r *Repository) SetItemTotal(ctx context.Context, itemID int64, total decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `UPDATE rental_items SET total_price = $2, updated_at = $3 WHERE id = $1`,
		itemID, shared.FormatAmount(total), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rental: set item total: %w", err)
	}
	return nil
}

// AppendStatusLog records a lifecycle transition.
func (r *Repository) AppendStatusLog(ctx context.Context, log StatusLog) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO rental_status_logs (rental_id, old_status, new_status, reason, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		log.RentalID, log.OldStatus, log.NewStatus, log.Reason, log.ChangedBy, log.ChangedAt)
	if err != nil {
		return fmt.Errorf("rental: append status log: %w", err)
	}
	return nil
}

// ListStatusLogs returns the status timeline, newest first.
func (r *Repository) ListStatusLogs(ctx context.Context, rentalID int64) ([]StatusLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, rental_id, old_status, new_status, reason, changed_by, changed_at
FROM rental_status_logs WHERE rental_id = $1 ORDER BY changed_at DESC, id DESC`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("rental: list status logs: %w", err)
	}
	defer rows.Close()

	var logs []StatusLog
	for rows.Next() {
		var l StatusLog
		if err := rows.Scan(&l.ID, &l.RentalID, &l.OldStatus, &l.NewStatus, &l.Reason, &l.ChangedBy, &l.ChangedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// CreateAssignment inserts a derived allocation row.
func (r *Repository) CreateAssignment(ctx context.Context, a *Assignment) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rental_assignments
(rental_id, item_id, kind, equipment_id, employee_id, status, notes, start_date, end_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at`,
		a.RentalID, a.ItemID, a.Kind, a.EquipmentID, a.EmployeeID, a.Status, a.Notes, a.StartDate, a.EndDate, time.Now().UTC(),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("rental: create assignment: %w", err)
	}
	return nil
}

// ListAssignments returns all allocations for a rental.
func (r *Repository) ListAssignments(ctx context.Context, rentalID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, rental_id, item_id, kind, equipment_id, employee_id, status, notes, start_date, end_date, created_at
FROM rental_assignments WHERE rental_id = $1 ORDER BY id`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("rental: list assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.RentalID, &a.ItemID, &a.Kind, &a.EquipmentID, &a.EmployeeID, &a.Status, &a.Notes, &a.StartDate, &a.EndDate, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveAssignment returns the active allocation for the given
// equipment or employee, or ErrNotFound. Used to keep assignment sync
// idempotent.
func (r *Repository) FindActiveAssignment(ctx context.Context, rentalID int64, kind AssignmentKind, refID int64) (*Assignment, error) {
	column := "equipment_id"
	if kind == AssignEmployee {
		column = "employee_id"
	}
	var a Assignment
	err := r.pool.QueryRow(ctx, `SELECT id, rental_id, item_id, kind, equipment_id, employee_id, status, notes, start_date, end_date, created_at
FROM rental_assignments WHERE rental_id = $1 AND kind = $2 AND `+column+` = $3 AND status = 'active' LIMIT 1`,
		rentalID, kind, refID,
	).Scan(&a.ID, &a.RentalID, &a.ItemID, &a.Kind, &a.EquipmentID, &a.EmployeeID, &a.Status, &a.Notes, &a.StartDate, &a.EndDate, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("rental: find assignment: %w", err)
	}
	return &a, nil
}

// CloseAssignmentsForItem marks an item's allocations completed.
func (r *Repository) CloseAssignmentsForItem(ctx context.Context, itemID int64, endDate time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE rental_assignments SET status = 'completed', end_date = $2 WHERE item_id = $1 AND status = 'active'`,
		itemID, endDate)
	if err != nil {
		return fmt.Errorf("rental: close assignments: %w", err)
	}
	return nil
}

// DeleteAssignment removes one allocation row.
func (r *Repository) DeleteAssignment(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rental_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rental: delete assignment: %w", err)
	}
	return nil
}

// LinkInvoice stores a cross-reference to an external invoice.
func (r *Repository) LinkInvoice(ctx context.Context, ref *InvoiceRef) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rental_invoice_refs (rental_id, external_id, amount, status, posted_at, linked_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, linked_at`,
		ref.RentalID, ref.ExternalID, shared.FormatAmount(ref.Amount), ref.Status, ref.PostedAt, time.Now().UTC(),
	).Scan(&ref.ID, &ref.LinkedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice %s already linked", shared.ErrDuplicate, ref.ExternalID)
		}
		return fmt.Errorf("rental: link invoice: %w", err)
	}
	return nil
}

// UnlinkInvoice removes an invoice cross-reference.
func (r *Repository) UnlinkInvoice(ctx context.Context, rentalID int64, externalID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rental_invoice_refs WHERE rental_id = $1 AND external_id = $2`, rentalID, externalID)
	if err != nil {
		return fmt.Errorf("rental: unlink invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice link %s", shared.ErrNotFound, externalID)
	}
	return nil
}

// ListInvoiceRefs returns linked external invoices.
func (r *Repository) ListInvoiceRefs(ctx context.Context, rentalID int64) ([]InvoiceRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, rental_id, external_id, amount, status, posted_at, linked_at
FROM rental_invoice_refs WHERE rental_id = $1 ORDER BY linked_at`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("rental: list invoice refs: %w", err)
	}
	defer rows.Close()

	var refs []InvoiceRef
	for rows.Next() {
		var ref InvoiceRef
		var amount *string
		if err := rows.Scan(&ref.ID, &ref.RentalID, &ref.ExternalID, &amount, &ref.Status, &ref.PostedAt, &ref.LinkedAt); err != nil {
			return nil, err
		}
		if amount != nil {
			d, err := shared.ParseAmount(*amount)
			if err != nil {
				return nil, fmt.Errorf("rental: stored invoice amount: %w", err)
			}
			ref.Amount = d
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// LinkPayment stores a cross-reference to an external payment.
func (r *Repository) LinkPayment(ctx context.Context, ref *PaymentRef) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO rental_payment_refs (rental_id, external_id, amount, status, posted_at, linked_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, linked_at`,
		ref.RentalID, ref.ExternalID, shared.FormatAmount(ref.Amount), ref.Status, ref.PostedAt, time.Now().UTC(),
	).Scan(&ref.ID, &ref.LinkedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment %s already linked", shared.ErrDuplicate, ref.ExternalID)
		}
		return fmt.Errorf("rental: link payment: %w", err)
	}
	return nil
}

// UnlinkPayment removes a payment cross-reference.
func (r *Repository) UnlinkPayment(ctx context.Context, rentalID int64, externalID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rental_payment_refs WHERE rental_id = $1 AND external_id = $2`, rentalID, externalID)
	if err != nil {
		return fmt.Errorf("rental: unlink payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment link %s", shared.ErrNotFound, externalID)
	}
	return nil
}

// ListPaymentRefs returns linked external payments.
func (r *Repository) ListPaymentRefs(ctx context.Context, rentalID int64) ([]PaymentRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, rental_id, external_id, amount, status, posted_at, linked_at
FROM rental_payment_refs WHERE rental_id = $1 ORDER BY linked_at`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("rental: list payment refs: %w", err)
	}
	defer rows.Close()

	var refs []PaymentRef
	for rows.Next() {
		var ref PaymentRef
		var amount *string
		if err := rows.Scan(&ref.ID, &ref.RentalID, &ref.ExternalID, &amount, &ref.Status, &ref.PostedAt, &ref.LinkedAt); err != nil {
			return nil, err
		}
		if amount != nil {
			d, err := shared.ParseAmount(*amount)
			if err != nil {
				return nil, fmt.Errorf("rental: stored payment amount: %w", err)
			}
			ref.Amount = d
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// NextRentalNumber allocates the next value from the document sequence.
func (r *Repository) NextRentalNumber(ctx context.Context) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `INSERT INTO document_sequences (doc_type, next_value) VALUES ('rental', 2)
ON CONFLICT (doc_type) DO UPDATE SET next_value = document_sequences.next_value + 1
RETURNING next_value - 1`).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("rental: next number: %w", err)
	}
	return fmt.Sprintf("RN-%d-%05d", time.Now().UTC().Year(), seq), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
