package equipment

import "time"

// Equipment is a rentable asset. Rates are decimal strings; the license
// plate disambiguates same-named units in the catalog.
type Equipment struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ModelNumber  string    `json:"modelNumber,omitempty"`
	LicensePlate string    `json:"licensePlate,omitempty"`
	SerialNumber string    `json:"serialNumber,omitempty"`
	Category     string    `json:"category,omitempty"`
	HourlyRate   string    `json:"hourlyRate,omitempty"`
	DailyRate    string    `json:"dailyRate,omitempty"`
	WeeklyRate   string    `json:"weeklyRate,omitempty"`
	MonthlyRate  string    `json:"monthlyRate,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpsertRequest creates or updates an equipment record.
type UpsertRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	ModelNumber  string `json:"modelNumber" validate:"omitempty,max=100"`
	LicensePlate string `json:"licensePlate" validate:"omitempty,max=50"`
	SerialNumber string `json:"serialNumber" validate:"omitempty,max=100"`
	Category     string `json:"category" validate:"omitempty,max=100"`
	HourlyRate   string `json:"hourlyRate" validate:"omitempty,max=30"`
	DailyRate    string `json:"dailyRate" validate:"omitempty,max=30"`
	WeeklyRate   string `json:"weeklyRate" validate:"omitempty,max=30"`
	MonthlyRate  string `json:"monthlyRate" validate:"omitempty,max=30"`
	Status       string `json:"status" validate:"omitempty,oneof=available assigned maintenance retired"`
}
