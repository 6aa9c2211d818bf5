package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/domain"
	"tripbroker/internal/service"
)

// QuoteHandler handles HTTP requests for fare quotes.
type QuoteHandler struct {
	tripService *service.TripService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(tripService *service.TripService) *QuoteHandler {
	return &QuoteHandler{tripService: tripService}
}

// QuoteRequest is the HTTP request body for pricing a prospective trip.
type QuoteRequest struct {
	Pickup       GeoPointBody   `json:"pickup"`
	Dropoff      GeoPointBody   `json:"dropoff"`
	Stops        []GeoPointBody `json:"stops,omitempty"`
	VehicleClass string         `json:"vehicle_class"`
	ServiceType  string         `json:"service_type"`
	PickupAt     time.Time      `json:"pickup_at"`
}

// QuoteResponse is the HTTP response for a fare quote.
type QuoteResponse struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMin     float64 `json:"duration_min"`
	BaseFare        float64 `json:"base_fare"`
	DistanceCharges float64 `json:"distance_charges"`
	TimeCharges     float64 `json:"time_charges"`
	Taxes           float64 `json:"taxes"`
	TotalFare       float64 `json:"total_fare"`
	Degraded        bool    `json:"degraded"`
}

// GetQuote handles POST /v1/quotes
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	stops := make([]domain.GeoPoint, 0, len(req.Stops))
	for _, s := range req.Stops {
		stops = append(stops, s.toDomain())
	}

	quote, err := h.tripService.GetQuote(c.Request.Context(), service.QuoteRequest{
		Pickup:       req.Pickup.toDomain(),
		Dropoff:      req.Dropoff.toDomain(),
		Stops:        stops,
		VehicleClass: domain.VehicleClass(req.VehicleClass),
		ServiceType:  domain.ServiceType(req.ServiceType),
		PickupAt:     req.PickupAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		DistanceKm:      quote.DistanceKm,
		DurationMin:     quote.DurationMin,
		BaseFare:        quote.Fare.BaseFare,
		DistanceCharges: quote.Fare.DistanceCharges,
		TimeCharges:     quote.Fare.TimeCharges,
		Taxes:           quote.Fare.Taxes,
		TotalFare:       quote.Fare.TotalFare,
		Degraded:        quote.Degraded,
	})
}
