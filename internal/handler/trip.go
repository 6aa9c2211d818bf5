package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/domain"
	"tripbroker/internal/middleware"
	"tripbroker/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService     *service.TripService
	dispatchService *service.DispatchService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, dispatchService *service.DispatchService) *TripHandler {
	return &TripHandler{
		tripService:     tripService,
		dispatchService: dispatchService,
	}
}

// GeoPointBody is a coordinate pair in request and response bodies.
type GeoPointBody struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (g GeoPointBody) toDomain() domain.GeoPoint {
	return domain.GeoPoint{Lat: g.Lat, Lng: g.Lng, Address: g.Address}
}

func geoPointBody(p domain.GeoPoint) GeoPointBody {
	return GeoPointBody{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
}

// PriceLine is one labelled amount in a fare breakdown.
type PriceLine struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// PricingBody is the money breakdown of a trip.
type PricingBody struct {
	BasePrice    float64     `json:"base_price"`
	ExtraCharges []PriceLine `json:"extra_charges,omitempty"`
	Discounts    []PriceLine `json:"discounts,omitempty"`
	Taxes        []PriceLine `json:"taxes,omitempty"`
	TotalAmount  float64     `json:"total_amount"`
}

func pricingBody(p domain.Pricing) PricingBody {
	lines := func(cs []domain.PriceComponent) []PriceLine {
		out := make([]PriceLine, 0, len(cs))
		for _, c := range cs {
			out = append(out, PriceLine{Label: c.Label, Amount: c.Amount})
		}
		return out
	}
	return PricingBody{
		BasePrice:    p.BasePrice,
		ExtraCharges: lines(p.ExtraCharges),
		Discounts:    lines(p.Discounts),
		Taxes:        lines(p.Taxes),
		TotalAmount:  p.TotalAmount,
	}
}

// TripDetailsBody is the execution data of a started trip.
type TripDetailsBody struct {
	StartTime         string             `json:"start_time,omitempty"`
	EndTime           string             `json:"end_time,omitempty"`
	StartLocation     GeoPointBody       `json:"start_location"`
	EndLocation       GeoPointBody       `json:"end_location"`
	ActualDistanceKm  float64            `json:"actual_distance_km"`
	ActualDurationMin float64            `json:"actual_duration_min"`
	DistanceSource    string             `json:"distance_source,omitempty"`
	OdometerStart     float64            `json:"odometer_start"`
	OdometerEnd       float64            `json:"odometer_end"`
	Route             []domain.RoutePoint `json:"route,omitempty"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID                   string           `json:"id"`
	CustomerID           string           `json:"customer_id"`
	DriverID             string           `json:"driver_id,omitempty"`
	VehicleClass         string           `json:"vehicle_class"`
	ServiceType          string           `json:"service_type"`
	Pickup               GeoPointBody     `json:"pickup"`
	Dropoff              GeoPointBody     `json:"dropoff"`
	Stops                []GeoPointBody   `json:"stops,omitempty"`
	PickupAt             string           `json:"pickup_at"`
	ReturnAt             string           `json:"return_at,omitempty"`
	EstimatedDistanceKm  float64          `json:"estimated_distance_km"`
	EstimatedDurationMin float64          `json:"estimated_duration_min"`
	Pricing              PricingBody      `json:"pricing"`
	Status               string           `json:"status"`
	AcceptedAt           string           `json:"accepted_at,omitempty"`
	CancelledAt          string           `json:"cancelled_at,omitempty"`
	CancelledBy          string           `json:"cancelled_by,omitempty"`
	CancelReason         string           `json:"cancel_reason,omitempty"`
	CancellationCharge   float64          `json:"cancellation_charge,omitempty"`
	Details              *TripDetailsBody `json:"details,omitempty"`
	CreatedAt            string           `json:"created_at"`
}

func tripResponse(t *domain.Trip) TripResponse {
	resp := TripResponse{
		ID:                   t.ID,
		CustomerID:           t.CustomerID,
		DriverID:             t.DriverID,
		VehicleClass:         string(t.VehicleClass),
		ServiceType:          string(t.ServiceType),
		Pickup:               geoPointBody(t.Pickup),
		Dropoff:              geoPointBody(t.Dropoff),
		PickupAt:             t.PickupAt.Format(time.RFC3339),
		EstimatedDistanceKm:  t.EstimatedDistanceKm,
		EstimatedDurationMin: t.EstimatedDurationMin,
		Pricing:              pricingBody(t.Pricing),
		Status:               string(t.Status),
		CancelledBy:          t.CancelledBy,
		CancelReason:         t.CancelReason,
		CancellationCharge:   t.CancellationCharge,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
	}
	for _, s := range t.Stops {
		resp.Stops = append(resp.Stops, geoPointBody(s))
	}
	if !t.ReturnAt.IsZero() {
		resp.ReturnAt = t.ReturnAt.Format(time.RFC3339)
	}
	if !t.AcceptedAt.IsZero() {
		resp.AcceptedAt = t.AcceptedAt.Format(time.RFC3339)
	}
	if !t.CancelledAt.IsZero() {
		resp.CancelledAt = t.CancelledAt.Format(time.RFC3339)
	}
	if t.Details != nil {
		d := &TripDetailsBody{
			StartLocation:     geoPointBody(t.Details.StartLocation),
			EndLocation:       geoPointBody(t.Details.EndLocation),
			ActualDistanceKm:  t.Details.ActualDistanceKm,
			ActualDurationMin: t.Details.ActualDurationMin,
			DistanceSource:    string(t.Details.DistanceSource),
			OdometerStart:     t.Details.OdometerStart,
			OdometerEnd:       t.Details.OdometerEnd,
			Route:             t.Details.Route,
		}
		if !t.Details.StartTime.IsZero() {
			d.StartTime = t.Details.StartTime.Format(time.RFC3339)
		}
		if !t.Details.EndTime.IsZero() {
			d.EndTime = t.Details.EndTime.Format(time.RFC3339)
		}
		resp.Details = d
	}
	return resp
}

// CreateTripRequest is the HTTP request body for booking a trip.
type CreateTripRequest struct {
	Pickup       GeoPointBody   `json:"pickup"`
	Dropoff      GeoPointBody   `json:"dropoff"`
	Stops        []GeoPointBody `json:"stops,omitempty"`
	VehicleClass string         `json:"vehicle_class"`
	ServiceType  string         `json:"service_type"`
	PickupAt     time.Time      `json:"pickup_at"`
	ReturnAt     time.Time      `json:"return_at,omitempty"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	stops := make([]domain.GeoPoint, 0, len(req.Stops))
	for _, s := range req.Stops {
		stops = append(stops, s.toDomain())
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		CustomerID:   actor.ID,
		Pickup:       req.Pickup.toDomain(),
		Dropoff:      req.Dropoff.toDomain(),
		Stops:        stops,
		VehicleClass: domain.VehicleClass(req.VehicleClass),
		ServiceType:  domain.ServiceType(req.ServiceType),
		PickupAt:     req.PickupAt,
		ReturnAt:     req.ReturnAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// ListTrips handles GET /v1/trips
// Customers see their own trips; admins see everyone's.
func (h *TripHandler) ListTrips(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var (
		trips []*domain.Trip
		err   error
	)
	if actor.Role == domain.RoleAdmin {
		trips, err = h.tripService.ListTrips(c.Request.Context(), limit)
	} else {
		trips, err = h.tripService.ListCustomerTrips(c.Request.Context(), actor.ID, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, tripResponse(t))
	}
	respondJSON(c, http.StatusOK, gin.H{"trips": out, "count": len(out)})
}

// StartTripRequest is the HTTP request body for starting a trip.
type StartTripRequest struct {
	StartLocation GeoPointBody `json:"start_location"`
	OdometerStart float64      `json:"odometer_start,omitempty"`
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.StartTrip(c.Request.Context(), service.StartTripRequest{
		TripID:        c.Param("id"),
		DriverID:      actor.ID,
		StartLocation: req.StartLocation.toDomain(),
		OdometerStart: req.OdometerStart,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// CompleteTripRequest is the HTTP request body for completing a trip.
type CompleteTripRequest struct {
	EndLocation        GeoPointBody `json:"end_location"`
	OdometerEnd        float64      `json:"odometer_end,omitempty"`
	ReportedDistanceKm float64      `json:"reported_distance_km,omitempty"`
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req CompleteTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CompleteTrip(c.Request.Context(), service.CompleteTripRequest{
		TripID:             c.Param("id"),
		DriverID:           actor.ID,
		EndLocation:        req.EndLocation.toDomain(),
		OdometerEnd:        req.OdometerEnd,
		ReportedDistanceKm: req.ReportedDistanceKm,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// CancelTripRequest is the HTTP request body for cancelling a trip.
type CancelTripRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	// Body is optional on cancel.
	var req CancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CancelTrip(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// RefundTrip handles POST /v1/trips/:id/refund (admin only)
func (h *TripHandler) RefundTrip(c *gin.Context) {
	trip, err := h.tripService.RefundTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// RejectionBody is one declined offer in a trip's rejection history.
type RejectionBody struct {
	DriverID   string `json:"driver_id"`
	Reason     string `json:"reason,omitempty"`
	RejectedAt string `json:"rejected_at"`
}

// RejectionsResponse lists the drivers who declined a trip.
type RejectionsResponse struct {
	TripID     string          `json:"trip_id"`
	Rejections []RejectionBody `json:"rejections"`
}

// ListRejections handles GET /v1/trips/:id/rejections (admin only)
func (h *TripHandler) ListRejections(c *gin.Context) {
	tripID := c.Param("id")
	rejections, err := h.dispatchService.Rejections(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RejectionBody, 0, len(rejections))
	for _, r := range rejections {
		out = append(out, RejectionBody{
			DriverID:   r.DriverID,
			Reason:     r.Reason,
			RejectedAt: r.RejectedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, RejectionsResponse{TripID: tripID, Rejections: out})
}
