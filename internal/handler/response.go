package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/repository"
	"tripbroker/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidStopLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidVehicleClass),
		errors.Is(err, service.ErrInvalidServiceType),
		errors.Is(err, service.ErrInvalidPickupTime),
		errors.Is(err, service.ErrInvalidReturnTime),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidDistance),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidPeriod):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrTripAlreadyAssigned),
		errors.Is(err, service.ErrAlreadyRejected),
		errors.Is(err, service.ErrDriverBusy),
		errors.Is(err, service.ErrTripNotPending),
		errors.Is(err, service.ErrTripNotConfirmed),
		errors.Is(err, service.ErrTripNotInProgress),
		errors.Is(err, service.ErrTripFinal),
		errors.Is(err, service.ErrWithdrawalNotPending):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNotAssignedDriver),
		errors.Is(err, service.ErrNotTripOwner):
		return http.StatusForbidden

	// Rejected withdrawals carry the shortfall
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity

	// Operator misconfiguration
	case errors.Is(err, service.ErrFareConfig):
		return http.StatusInternalServerError

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
