package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tripbroker/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTripBooked          NotificationType = "TRIP_BOOKED"
	NotificationDriverAssigned      NotificationType = "DRIVER_ASSIGNED"
	NotificationTripStarted         NotificationType = "TRIP_STARTED"
	NotificationTripCompleted       NotificationType = "TRIP_COMPLETED"
	NotificationTripCancelled       NotificationType = "TRIP_CANCELLED"
	NotificationWithdrawalProcessed NotificationType = "WITHDRAWAL_PROCESSED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // Customer or Driver ID
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// Notifier delivers notifications. Delivery is best-effort: callers never
// fail an operation because a notification could not be sent.
type Notifier interface {
	NotifyTripBooked(ctx context.Context, trip *domain.Trip)
	NotifyDriverAssigned(ctx context.Context, trip *domain.Trip, driver *domain.Driver)
	NotifyTripStarted(ctx context.Context, trip *domain.Trip)
	NotifyTripCompleted(ctx context.Context, trip *domain.Trip)
	NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string)
	NotifyWithdrawalProcessed(ctx context.Context, req *domain.WithdrawalRequest)
}

// NotificationService handles notification delivery.
type NotificationService struct {
	// In a real deployment this would hold push (FCM/APNS) and SMS clients.
	// Deliveries are logged so downstream channels can be replayed.
	log *logrus.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(log *logrus.Logger) *NotificationService {
	return &NotificationService{log: log}
}

// NotifyTripBooked confirms the booking to the customer.
func (s *NotificationService) NotifyTripBooked(ctx context.Context, trip *domain.Trip) {
	s.send(ctx, Notification{
		Type:        NotificationTripBooked,
		RecipientID: trip.CustomerID,
		Title:       "Trip Booked",
		Message:     fmt.Sprintf("Your %s trip is booked for %s. We are finding you a driver.", trip.VehicleClass, trip.PickupAt.Format(time.RFC1123)),
		Data: map[string]interface{}{
			"trip_id":    trip.ID,
			"pickup_at":  trip.PickupAt,
			"total_fare": trip.Pricing.TotalAmount,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyDriverAssigned tells the customer which driver accepted their trip.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, trip *domain.Trip, driver *domain.Driver) {
	s.send(ctx, Notification{
		Type:        NotificationDriverAssigned,
		RecipientID: trip.CustomerID,
		Title:       "Driver Assigned",
		Message:     fmt.Sprintf("Driver %s has accepted your trip", driver.Name),
		Data: map[string]interface{}{
			"trip_id":      trip.ID,
			"driver_id":    driver.ID,
			"driver_name":  driver.Name,
			"driver_phone": driver.Phone,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripStarted tells the customer the trip is under way.
func (s *NotificationService) NotifyTripStarted(ctx context.Context, trip *domain.Trip) {
	s.send(ctx, Notification{
		Type:        NotificationTripStarted,
		RecipientID: trip.CustomerID,
		Title:       "Trip Started",
		Message:     "Your trip has started. Have a safe journey!",
		Data: map[string]interface{}{
			"trip_id": trip.ID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripCompleted sends the customer the final fare.
func (s *NotificationService) NotifyTripCompleted(ctx context.Context, trip *domain.Trip) {
	s.send(ctx, Notification{
		Type:        NotificationTripCompleted,
		RecipientID: trip.CustomerID,
		Title:       "Trip Completed",
		Message:     fmt.Sprintf("Your trip is complete. Total fare: %.2f", trip.Pricing.TotalAmount),
		Data: map[string]interface{}{
			"trip_id":    trip.ID,
			"total_fare": trip.Pricing.TotalAmount,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyTripCancelled informs both parties about a cancellation. The driver
// copy is only sent when a driver was assigned.
func (s *NotificationService) NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string) {
	msg := "Your trip has been cancelled."
	if trip.CancellationCharge > 0 {
		msg = fmt.Sprintf("Your trip has been cancelled. Cancellation charge: %.2f", trip.CancellationCharge)
	}
	s.send(ctx, Notification{
		Type:        NotificationTripCancelled,
		RecipientID: trip.CustomerID,
		Title:       "Trip Cancelled",
		Message:     msg,
		Data: map[string]interface{}{
			"trip_id":      trip.ID,
			"cancelled_by": cancelledBy,
			"charge":       trip.CancellationCharge,
		},
		CreatedAt: time.Now(),
	})
	if trip.DriverID != "" && trip.DriverID != cancelledBy {
		s.send(ctx, Notification{
			Type:        NotificationTripCancelled,
			RecipientID: trip.DriverID,
			Title:       "Trip Cancelled",
			Message:     "A trip assigned to you has been cancelled.",
			Data: map[string]interface{}{
				"trip_id": trip.ID,
			},
			CreatedAt: time.Now(),
		})
	}
}

// NotifyWithdrawalProcessed tells the driver a payout settled or failed.
func (s *NotificationService) NotifyWithdrawalProcessed(ctx context.Context, req *domain.WithdrawalRequest) {
	title, msg := "Withdrawal Completed", fmt.Sprintf("Your withdrawal of %.2f has been paid out.", req.Amount)
	if req.Status == domain.WithdrawalStatusFailed {
		title, msg = "Withdrawal Failed", fmt.Sprintf("Your withdrawal of %.2f failed. The amount is back in your balance.", req.Amount)
	}
	s.send(ctx, Notification{
		Type:        NotificationWithdrawalProcessed,
		RecipientID: req.DriverID,
		Title:       title,
		Message:     msg,
		Data: map[string]interface{}{
			"withdrawal_id": req.ID,
			"amount":        req.Amount,
			"status":        req.Status,
		},
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) send(_ context.Context, n Notification) {
	s.log.WithFields(logrus.Fields{
		"type":      n.Type,
		"recipient": n.RecipientID,
		"title":     n.Title,
	}).Info(n.Message)
}
