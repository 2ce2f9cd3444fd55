package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/soulseer/settlement/internal/middleware"
	"github.com/soulseer/settlement/internal/services"
)

const maxBodyBytes = 1_048_576

// decodeRequest reads exactly one JSON object into dst and validates it.
// On failure the error response has already been written.
func decodeRequest(w http.ResponseWriter, r *http.Request, validator *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// callerID returns the authenticated account or writes 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := middleware.AccountIDFrom(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return "", false
	}
	return accountID, true
}

// balanceReader is the part of the ledger the error path needs.
type balanceReader interface {
	GetAuthoritativeBalance(ctx context.Context, accountID string) (*services.BalanceView, error)
}

// sendFailure writes a settlement error. User-correctable failures carry the
// caller's authoritative balance.
func sendFailure(ctx context.Context, w http.ResponseWriter, ledger balanceReader, accountID string, err error) {
	if accountID == "" || !services.IsUserError(err) || errors.Is(err, services.ErrNotFound) {
		services.SendSettlementError(w, err)
		return
	}
	balance, balErr := ledger.GetAuthoritativeBalance(ctx, accountID)
	if balErr != nil {
		balance = nil
	}
	services.SendSettlementErrorWithBalance(w, err, balance)
}
