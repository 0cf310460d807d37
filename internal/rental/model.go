package rental

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/rental/pricing"
)

// Status is the rental workflow state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusQuotationGenerated Status = "quotation_generated"
	StatusApproved           Status = "approved"
	StatusMobilization       Status = "mobilization"
	StatusActive             Status = "active"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
	StatusSuspended          Status = "suspended"
)

// PaymentStatus tracks collection state, derived from payments vs totals.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// ItemStatus is the state of a single rental line.
type ItemStatus string

const (
	ItemActive      ItemStatus = "active"
	ItemCompleted   ItemStatus = "completed"
	ItemRemoved     ItemStatus = "removed"
	ItemMaintenance ItemStatus = "maintenance"
	ItemInactive    ItemStatus = "inactive"
)

// SentinelStartDate marks a rental created before its real start is
// known. Activation replaces it with the activation day.
var SentinelStartDate = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// IsSentinelStart reports whether t is the not-yet-started placeholder.
func IsSentinelStart(t time.Time) bool {
	return t.Year() == 2099 && t.Month() == time.December && t.Day() == 31
}

// Rental is the aggregate root for a rental contract.
type Rental struct {
	ID           int64  `json:"id"`
	RentalNumber string `json:"rentalNumber"`
	CustomerID   int64  `json:"customerId"`
	SupervisorID *int64 `json:"supervisorId,omitempty"`

	StartDate       time.Time  `json:"startDate"`
	ExpectedEndDate *time.Time `json:"expectedEndDate,omitempty"`
	ActualEndDate   *time.Time `json:"actualEndDate,omitempty"`

	Status           Status     `json:"status"`
	QuotationID      *string    `json:"quotationId,omitempty"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	MobilizationDate *time.Time `json:"mobilizationDate,omitempty"`
	InvoiceDate      *time.Time `json:"invoiceDate,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`

	LastInvoiceDate   *time.Time      `json:"lastInvoiceDate,omitempty"`
	LastInvoiceID     *string         `json:"lastInvoiceId,omitempty"`
	LastInvoiceAmount decimal.Decimal `json:"lastInvoiceAmount"`

	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxRate           decimal.Decimal `json:"tax"`
	TaxAmount         decimal.Decimal `json:"taxAmount"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Discount          decimal.Decimal `json:"discount"`
	FinalAmount       decimal.Decimal `json:"finalAmount"`
	DepositAmount     decimal.Decimal `json:"depositAmount"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []Item `json:"items,omitempty"`
}

// Completed reports whether the rental reached the completed state.
func (r *Rental) Completed() bool {
	return r.Status == StatusCompleted
}

// Terms projects the rental-level fallback dates for pricing. The
// sentinel start date is passed through unchanged; the interval math
// clamps it to a single unit, matching how a not-yet-started rental is
// displayed.
func (r *Rental) Terms() pricing.RentalTerms {
	terms := pricing.RentalTerms{
		ExpectedEndDate: r.ExpectedEndDate,
		Completed:       r.Completed(),
	}
	if !r.StartDate.IsZero() {
		start := r.StartDate
		terms.StartDate = &start
	}
	return terms
}

// EndDateForBilling is the partitioning horizon: the expected end when
// set, otherwise now for an open-ended rental.
func (r *Rental) EndDateForBilling(now time.Time) time.Time {
	if r.ExpectedEndDate != nil {
		return *r.ExpectedEndDate
	}
	return now
}

// Item is one billable equipment line within a rental.
type Item struct {
	ID            int64            `json:"id"`
	RentalID      int64            `json:"rentalId"`
	EquipmentID   *int64           `json:"equipmentId,omitempty"`
	EquipmentName string           `json:"equipmentName"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	TotalPrice    decimal.Decimal  `json:"totalPrice"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Rate          pricing.RateType `json:"rateType"`
	Status        ItemStatus       `json:"status"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	CompletedDate *time.Time       `json:"completedDate,omitempty"`
	OperatorID    *int64           `json:"operatorId,omitempty"`
	SupervisorID  *int64           `json:"supervisorId,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// Terms projects the item fields that drive pricing.
func (i *Item) Terms() pricing.ItemTerms {
	return pricing.ItemTerms{
		UnitPrice:     i.UnitPrice,
		Quantity:      i.Quantity,
		Rate:          i.Rate,
		StartDate:     i.StartDate,
		CompletedDate: i.CompletedDate,
		StoredTotal:   i.TotalPrice,
	}
}

// Billable reports whether the item participates in financial totals.
func (i *Item) Billable() bool {
	return i.Status != ItemRemoved && i.Status != ItemInactive
}

// StatusLog is one append-only entry in a rental's status timeline.
type StatusLog struct {
	ID        int64     `json:"id"`
	RentalID  int64     `json:"rentalId"`
	OldStatus Status    `json:"oldStatus"`
	NewStatus Status    `json:"newStatus"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy string    `json:"changedBy,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// AssignmentKind distinguishes equipment from employee assignments.
type AssignmentKind string

const (
	AssignEquipment AssignmentKind = "equipment"
	AssignEmployee  AssignmentKind = "employee"
)

// Assignment is a derived equipment or operator allocation created when
// a rental activates. Assignments are best-effort consistent with the
// rental's items and cleaned up when items or the rental are deleted.
type Assignment struct {
	ID          int64          `json:"id"`
	RentalID    int64          `json:"rentalId"`
	ItemID      *int64         `json:"itemId,omitempty"`
	Kind        AssignmentKind `json:"kind"`
	EquipmentID *int64         `json:"equipmentId,omitempty"`
	EmployeeID  *int64         `json:"employeeId,omitempty"`
	Status      string         `json:"status"`
	Notes       string         `json:"notes,omitempty"`
	StartDate   *time.Time     `json:"startDate,omitempty"`
	EndDate     *time.Time     `json:"endDate,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// InvoiceRef is a cross-reference to an invoice owned by the external
// accounting system, with a best-effort cached amount and status.
type InvoiceRef struct {
	ID         int64           `json:"id"`
	RentalID   int64           `json:"rentalId"`
	ExternalID string          `json:"externalId"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status,omitempty"`
	PostedAt   *time.Time      `json:"postedAt,omitempty"`
	LinkedAt   time.Time       `json:"linkedAt"`
}

// PaymentRef is a cross-reference to an external payment entry.
type PaymentRef struct {
	ID         int64           `json:"id"`
	RentalID   int64           `json:"rentalId"`
	ExternalID string          `json:"externalId"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status,omitempty"`
	PostedAt   *time.Time      `json:"postedAt,omitempty"`
	LinkedAt   time.Time       `json:"linkedAt"`
}
