package customers

import "time"

// Customer is a rental counterparty. ERPNextName is the document name
// in the accounting system; invoices are raised against it.
type Customer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ERPNextName string    `json:"erpnextName,omitempty"`
	VATNumber   string    `json:"vatNumber,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpsertRequest creates or updates a customer.
type UpsertRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	ERPNextName string `json:"erpnextName" validate:"omitempty,max=200"`
	VATNumber   string `json:"vatNumber" validate:"omitempty,max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Address     string `json:"address" validate:"omitempty,max=500"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}
