package rental

import (
	"fmt"
	"time"

	"github.com/snd-est/snd-rental/internal/shared"
)

const dateLayout = "2006-01-02"

// ParseDate parses a yyyy-mm-dd request field. Empty returns nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, want yyyy-mm-dd", shared.ErrValidation, s)
	}
	t = t.UTC()
	return &t, nil
}

// CreateRentalRequest creates a rental in pending state. When StartDate
// is omitted the placeholder start date is stored until activation.
type CreateRentalRequest struct {
	CustomerID      int64               `json:"customerId" validate:"required,gt=0"`
	RentalNumber    string              `json:"rentalNumber" validate:"omitempty,max=50"`
	StartDate       string              `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	ExpectedEndDate string              `json:"expectedEndDate" validate:"omitempty,datetime=2006-01-02"`
	SupervisorID    *int64              `json:"supervisorId" validate:"omitempty,gt=0"`
	TaxRate         string              `json:"tax" validate:"omitempty"`
	Discount        string              `json:"discount" validate:"omitempty"`
	DepositAmount   string              `json:"depositAmount" validate:"omitempty"`
	Notes           string              `json:"notes" validate:"omitempty,max=2000"`
	Items           []CreateItemRequest `json:"items" validate:"omitempty,dive"`
}

// UpdateRentalRequest mutates header fields; nil pointers leave the
// stored value untouched.
type UpdateRentalRequest struct {
	ExpectedEndDate *string `json:"expectedEndDate" validate:"omitempty,datetime=2006-01-02"`
	SupervisorID    *int64  `json:"supervisorId" validate:"omitempty,gt=0"`
	TaxRate         *string `json:"tax"`
	Discount        *string `json:"discount"`
	DepositAmount   *string `json:"depositAmount"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

// CreateItemRequest adds a billable line to a rental.
type CreateItemRequest struct {
	EquipmentID   *int64 `json:"equipmentId" validate:"omitempty,gt=0"`
	EquipmentName string `json:"equipmentName" validate:"required,max=200"`
	UnitPrice     string `json:"unitPrice" validate:"required"`
	Quantity      string `json:"quantity" validate:"omitempty"`
	RateType      string `json:"rateType" validate:"omitempty,oneof=hourly daily weekly monthly"`
	StartDate     string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	OperatorID    *int64 `json:"operatorId" validate:"omitempty,gt=0"`
	SupervisorID  *int64 `json:"supervisorId" validate:"omitempty,gt=0"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateItemRequest mutates a line; setting CompletedDate returns it.
type UpdateItemRequest struct {
	UnitPrice     *string `json:"unitPrice"`
	Quantity      *string `json:"quantity"`
	RateType      *string `json:"rateType" validate:"omitempty,oneof=hourly daily weekly monthly"`
	Status        *string `json:"status" validate:"omitempty,oneof=active completed removed maintenance inactive"`
	StartDate     *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	CompletedDate *string `json:"completedDate" validate:"omitempty,datetime=2006-01-02"`
	OperatorID    *int64  `json:"operatorId"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
}

// TransitionRequest carries the audit fields of a lifecycle action.
type TransitionRequest struct {
	Reason    string `json:"reason" validate:"omitempty,max=500"`
	ChangedBy string `json:"changedBy" validate:"omitempty,max=100"`
}

// CompleteRequest optionally overrides the return date (defaults to
// the current day).
type CompleteRequest struct {
	TransitionRequest
	ReturnDate string `json:"returnDate" validate:"omitempty,datetime=2006-01-02"`
}

// LinkRefRequest manually links an external invoice or payment to a
// rental for reconciliation.
type LinkRefRequest struct {
	ExternalID string `json:"externalId" validate:"required,max=140"`
	Amount     string `json:"amount" validate:"omitempty"`
	Status     string `json:"status" validate:"omitempty,max=50"`
	PostedAt   string `json:"postedAt" validate:"omitempty,datetime=2006-01-02"`
}

// ListFilter narrows rental listings.
type ListFilter struct {
	Status     Status
	CustomerID int64
	Search     string
	Page       int
	PerPage    int
}
