package employees

import "time"

// Employee is an operator or supervisor assignable to rental items.
type Employee struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FileNumber  string    `json:"fileNumber,omitempty"`
	Designation string    `json:"designation,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UpsertRequest creates or updates an employee.
type UpsertRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	FileNumber  string `json:"fileNumber" validate:"omitempty,max=50"`
	Designation string `json:"designation" validate:"omitempty,max=100"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}
