package domain

import "time"

// Customer represents a riding customer.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}
