package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/domain"
	"tripbroker/internal/service"
)

// EarningsHandler handles HTTP requests for driver settlement.
type EarningsHandler struct {
	ledger *service.EarningsLedger
}

// NewEarningsHandler creates a new EarningsHandler.
func NewEarningsHandler(ledger *service.EarningsLedger) *EarningsHandler {
	return &EarningsHandler{ledger: ledger}
}

// BalanceResponse is the HTTP representation of a settlement position.
type BalanceResponse struct {
	DriverID        string  `json:"driver_id"`
	PendingBalance  float64 `json:"pending_balance"`
	WithdrawnAmount float64 `json:"withdrawn_amount"`
}

// GetBalance handles GET /v1/drivers/:id/balance
func (h *EarningsHandler) GetBalance(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, BalanceResponse{
		DriverID:        balance.DriverID,
		PendingBalance:  balance.PendingBalance,
		WithdrawnAmount: balance.WithdrawnAmount,
	})
}

// EarningsResponse is the HTTP representation of an earnings summary.
type EarningsResponse struct {
	DriverID   string  `json:"driver_id"`
	Period     string  `json:"period"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to"`
	TripCount  int64   `json:"trip_count"`
	Gross      float64 `json:"gross"`
	Commission float64 `json:"commission"`
	Net        float64 `json:"net"`
}

// GetEarnings handles GET /v1/drivers/:id/earnings?period=today|week|month|total
func (h *EarningsHandler) GetEarnings(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	period := domain.EarningsPeriod(c.DefaultQuery("period", string(domain.EarningsPeriodToday)))
	summary, err := h.ledger.Earnings(c.Request.Context(), driverID, period)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := EarningsResponse{
		DriverID:   summary.DriverID,
		Period:     string(summary.Period),
		To:         summary.To.Format(time.RFC3339),
		TripCount:  summary.TripCount,
		Gross:      summary.Gross,
		Commission: summary.Commission,
		Net:        summary.Net,
	}
	if !summary.From.IsZero() {
		resp.From = summary.From.Format(time.RFC3339)
	}
	respondJSON(c, http.StatusOK, resp)
}

// LedgerEntryBody is one row of a driver's settlement ledger.
type LedgerEntryBody struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	TripID       string  `json:"trip_id,omitempty"`
	WithdrawalID string  `json:"withdrawal_id,omitempty"`
	Gross        float64 `json:"gross,omitempty"`
	Commission   float64 `json:"commission,omitempty"`
	Net          float64 `json:"net,omitempty"`
	Amount       float64 `json:"amount"`
	CreatedAt    string  `json:"created_at"`
}

// ListTransactions handles GET /v1/drivers/:id/transactions
func (h *EarningsHandler) ListTransactions(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.ledger.ListTransactions(c.Request.Context(), driverID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]LedgerEntryBody, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryBody{
			ID:           e.ID,
			Type:         string(e.Type),
			TripID:       e.TripID,
			WithdrawalID: e.WithdrawalID,
			Gross:        e.Gross,
			Commission:   e.Commission,
			Net:          e.Net,
			Amount:       e.Amount,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"transactions": out, "count": len(out)})
}

// WithdrawalRequestBody is the HTTP request body for a withdrawal.
type WithdrawalRequestBody struct {
	Amount float64 `json:"amount" binding:"required"`
}

// WithdrawalResponse is the HTTP representation of a withdrawal request.
type WithdrawalResponse struct {
	ID          string  `json:"id"`
	DriverID    string  `json:"driver_id"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	RequestedAt string  `json:"requested_at"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

func withdrawalResponse(w *domain.WithdrawalRequest) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:          w.ID,
		DriverID:    w.DriverID,
		Amount:      w.Amount,
		Status:      string(w.Status),
		RequestedAt: w.RequestedAt.Format(time.RFC3339),
	}
	if !w.ProcessedAt.IsZero() {
		resp.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// RequestWithdrawal handles POST /v1/drivers/:id/withdrawals
func (h *EarningsHandler) RequestWithdrawal(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	var req WithdrawalRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	withdrawal, err := h.ledger.RequestWithdrawal(c.Request.Context(), driverID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, withdrawalResponse(withdrawal))
}

// ListWithdrawals handles GET /v1/drivers/:id/withdrawals
func (h *EarningsHandler) ListWithdrawals(c *gin.Context) {
	driverID, ok := authorizeDriver(c)
	if !ok {
		return
	}

	withdrawals, err := h.ledger.ListWithdrawals(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]WithdrawalResponse, 0, len(withdrawals))
	for _, w := range withdrawals {
		out = append(out, withdrawalResponse(w))
	}
	respondJSON(c, http.StatusOK, gin.H{"withdrawals": out, "count": len(out)})
}

// CompleteWithdrawal handles POST /v1/withdrawals/:id/complete (admin only)
func (h *EarningsHandler) CompleteWithdrawal(c *gin.Context) {
	withdrawal, err := h.ledger.CompleteWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, withdrawalResponse(withdrawal))
}

// FailWithdrawal handles POST /v1/withdrawals/:id/fail (admin only)
func (h *EarningsHandler) FailWithdrawal(c *gin.Context) {
	withdrawal, err := h.ledger.FailWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, withdrawalResponse(withdrawal))
}
