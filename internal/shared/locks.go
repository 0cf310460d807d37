package shared

import "fmt"

// BillingLockKey builds the redis key guarding a bulk billing run.
func BillingLockKey() string {
	return "billing:monthly:lock"
}

// RentalLockKey builds the redis key guarding invoice generation for a
// single rental.
func RentalLockKey(rentalID int64) string {
	return fmt.Sprintf("billing:rental:%d:lock", rentalID)
}
