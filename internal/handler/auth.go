package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/domain"
	"tripbroker/internal/middleware"
	"tripbroker/internal/service"
)

const tokenTTL = 24 * time.Hour

// AuthHandler issues access tokens. Possession of a registered account ID
// stands in for a real credential check; an identity provider sits in front
// of this service in production.
type AuthHandler struct {
	secret          string
	customerService *service.CustomerService
	driverService   *service.DriverService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(secret string, customerService *service.CustomerService, driverService *service.DriverService) *AuthHandler {
	return &AuthHandler{
		secret:          secret,
		customerService: customerService,
		driverService:   driverService,
	}
}

// TokenRequest is the HTTP request body for issuing a token.
type TokenRequest struct {
	ID   string `json:"id" binding:"required"`
	Role string `json:"role" binding:"required"`
}

// TokenResponse is the HTTP response carrying an access token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// IssueToken handles POST /v1/auth/token
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	role := domain.Role(req.Role)
	switch role {
	case domain.RoleCustomer:
		if _, err := h.customerService.GetCustomer(c.Request.Context(), req.ID); err != nil {
			respondError(c, err)
			return
		}
	case domain.RoleDriver:
		if _, err := h.driverService.GetDriver(c.Request.Context(), req.ID); err != nil {
			respondError(c, err)
			return
		}
	case domain.RoleAdmin:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown role"})
		return
	}

	token, err := middleware.GenerateToken(h.secret, domain.Actor{ID: req.ID, Role: role}, tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to sign token"})
		return
	}
	respondJSON(c, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(tokenTTL.Seconds()),
	})
}
