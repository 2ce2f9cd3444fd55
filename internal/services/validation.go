package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Stable machine-readable code
	Balance *BalanceView      `json:"balance,omitempty"` // Authoritative balance after the failure
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string, len(fieldErrs))
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	} else if validationErr != nil {
		errorResp.Details = map[string]string{"request": validationErr.Error()}
	}
	writeJSON(w, statusCode, errorResp)
}

type errorMapping struct {
	target error
	code   string
	status int
}

var settlementErrors = []errorMapping{
	{ErrInsufficientBalance, "insufficient_balance", http.StatusPaymentRequired},
	{ErrRefundExceedsAvailable, "refund_exceeds_available", http.StatusConflict},
	{ErrSessionActive, "session_active", http.StatusConflict},
	{ErrSessionTerminal, "session_terminal", http.StatusConflict},
	{ErrIdempotencyMismatch, "idempotency_mismatch", http.StatusUnprocessableEntity},
	{ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
	{ErrAmountMismatch, "amount_mismatch", http.StatusUnprocessableEntity},
	{ErrPayoutHold, "payout_hold", http.StatusLocked},
	{ErrBelowThreshold, "below_threshold", http.StatusUnprocessableEntity},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrAccountArchived, "account_archived", http.StatusGone},
	{ErrRefundNotAllowed, "refund_not_allowed", http.StatusUnprocessableEntity},
	{ErrNoPayoutDestination, "no_payout_destination", http.StatusUnprocessableEntity},
	{ErrAccountNotEmpty, "account_not_empty", http.StatusConflict},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrGatewayUnavailable, "gateway_unavailable", http.StatusServiceUnavailable},
	{ErrConcurrentModification, "retry_later", http.StatusServiceUnavailable},
	{ErrInvariantViolation, "invariant_violation", http.StatusConflict},
}

// ErrorCode returns the stable code and HTTP status for a settlement error.
// Unknown errors map to internal_error and 500.
func ErrorCode(err error) (string, int) {
	for _, m := range settlementErrors {
		if errors.Is(err, m.target) {
			return m.code, m.status
		}
	}
	return "internal_error", http.StatusInternalServerError
}

// SendSettlementError writes err using the settlement error taxonomy. Internal
// errors are logged and replaced by a generic message.
func SendSettlementError(w http.ResponseWriter, err error) {
	SendSettlementErrorWithBalance(w, err, nil)
}

// SendSettlementErrorWithBalance also reports the caller's current balance so
// the client never has to guess state after a failed settlement.
func SendSettlementErrorWithBalance(w http.ResponseWriter, err error, balance *BalanceView) {
	code, status := ErrorCode(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		log.Printf("[HTTP] Internal error: %v", err)
		message = "internal error"
		balance = nil
	case errors.Is(err, ErrConcurrentModification):
		// Ledger retries are already exhausted.
		log.Printf("[HTTP] Contention after retries: %v", err)
		message = "temporarily unavailable, retry later"
		balance = nil
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Balance: balance})
}

// SendJSON writes a success payload.
func SendJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}
