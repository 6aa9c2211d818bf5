package repository

import (
	"context"

	"tripbroker/internal/domain"
)

// CustomerRepository defines the persistence operations for customers.
type CustomerRepository interface {
	// Create persists a new customer.
	Create(ctx context.Context, customer *domain.Customer) error

	// GetByID retrieves a customer by ID.
	GetByID(ctx context.Context, id string) (*domain.Customer, error)

	// GetByPhone retrieves a customer by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
}
