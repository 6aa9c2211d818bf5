package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
	"tripbroker/internal/repository"
)

// CustomerService handles customer accounts.
type CustomerService struct {
	customerRepo repository.CustomerRepository
	log          *logrus.Logger
}

// NewCustomerService creates a new CustomerService.
func NewCustomerService(customerRepo repository.CustomerRepository, log *logrus.Logger) *CustomerService {
	return &CustomerService{customerRepo: customerRepo, log: log}
}

// RegisterCustomerRequest contains the parameters for registering a customer.
type RegisterCustomerRequest struct {
	Name  string
	Phone string
}

// Register creates a customer account.
func (s *CustomerService) Register(ctx context.Context, req RegisterCustomerRequest) (*domain.Customer, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, ErrInvalidCustomerID
	}

	customer := &domain.Customer{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: time.Now(),
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.log.WithField("customer_id", customer.ID).Info("customer registered")
	return customer, nil
}

// GetCustomer retrieves a customer by ID.
func (s *CustomerService) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	if customerID == "" {
		return nil, ErrInvalidCustomerID
	}
	return s.customerRepo.GetByID(ctx, customerID)
}
