package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/domain"
	"tripbroker/internal/middleware"
	"tripbroker/internal/service"
)

// DriverHandler handles HTTP requests for drivers and the offer protocol.
type DriverHandler struct {
	driverService   *service.DriverService
	dispatchService *service.DispatchService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, dispatchService *service.DispatchService) *DriverHandler {
	return &DriverHandler{
		driverService:   driverService,
		dispatchService: dispatchService,
	}
}

// authorizeDriver checks that the caller is the driver named in the path or
// an admin. Returns the path driver ID.
func authorizeDriver(c *gin.Context) (string, bool) {
	driverID := c.Param("id")
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return "", false
	}
	if actor.Role != domain.RoleAdmin && actor.ID != driverID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not your driver account"})
		return "", false
	}
	return driverID, true
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	VehicleClass string `json:"vehicle_class" binding:"required"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleClass  string  `json:"vehicle_class"`
	IsAvailable   bool    `json:"is_available"`
	CurrentTripID string  `json:"current_trip_id,omitempty"`
	TotalTrips    int64   `json:"total_trips"`
	TotalEarnings float64 `json:"total_earnings"`
}

func driverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		VehicleClass:  string(d.VehicleClass),
		IsAvailable:   d.IsAvailable,
		CurrentTripID: d.CurrentTripID,
		TotalTrips:    d.TotalTrips,
		TotalEarnings: d.TotalEarnings,
	}
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleClass: domain.VehicleClass(req.VehicleClass),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, driverResponse(driver))
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, driverResponse(driver))
}

// UpdateLocationRequest is the HTTP request body for a location ping.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UpdateLocation handles PUT /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), service.UpdateLocationRequest{
		DriverID: driverID,
		Lat:      req.Lat,
		Lng:      req.Lng,
	}); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// NearbyDriverResponse is the HTTP representation of a positioned driver.
type NearbyDriverResponse struct {
	Driver DriverResponse `json:"driver"`
	Lat    float64        `json:"lat"`
	Lng    float64        `json:"lng"`
}

// NearbyDrivers handles GET /v1/drivers/nearby
func (h *DriverHandler) NearbyDrivers(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lng"})
		return
	}
	radiusKm, _ := strconv.ParseFloat(c.Query("radius_km"), 64)

	nearby, err := h.driverService.NearbyDrivers(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]NearbyDriverResponse, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, NearbyDriverResponse{
			Driver: driverResponse(n.Driver),
			Lat:    n.Lat,
			Lng:    n.Lng,
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"drivers": out, "count": len(out)})
}

// ListOffers handles GET /v1/drivers/:id/offers
func (h *DriverHandler) ListOffers(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	trips, err := h.dispatchService.ListOffers(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, tripResponse(t))
	}
	respondJSON(c, http.StatusOK, gin.H{"offers": out, "count": len(out)})
}

// AcceptOffer handles POST /v1/drivers/:id/offers/:tripId/accept
func (h *DriverHandler) AcceptOffer(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	trip, err := h.dispatchService.AcceptOffer(c.Request.Context(), c.Param("tripId"), driverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// RejectOfferRequest is the HTTP request body for rejecting an offer.
type RejectOfferRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RejectOffer handles POST /v1/drivers/:id/offers/:tripId/reject
func (h *DriverHandler) RejectOffer(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	var req RejectOfferRequest
	_ = c.ShouldBindJSON(&req) // body optional

	if err := h.dispatchService.RejectOffer(c.Request.Context(), c.Param("tripId"), driverID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "rejected"})
}
