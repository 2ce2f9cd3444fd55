package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/services"
	"github.com/soulseer/settlement/internal/store"
)

type BalanceHandler struct {
	ledger        *services.LedgerService
	deposits      *services.DepositService
	webhookSecret string
	pageSize      int
	validator     *services.ValidationHelper
}

func NewBalanceHandler(ledger *services.LedgerService, deposits *services.DepositService, webhookSecret string, pageSize int) *BalanceHandler {
	return &BalanceHandler{
		ledger:        ledger,
		deposits:      deposits,
		webhookSecret: webhookSecret,
		pageSize:      pageSize,
		validator:     services.NewValidationHelper(),
	}
}

type CreateDepositRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type HistoryResponse struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"nextCursor,omitempty"`
}

// GetBalance returns the caller's balance snapshot
// @Summary Get balance
// @Description Balance, reserved and available amounts plus lifetime earnings totals.
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.BalanceView
// @Failure 404 {object} services.ErrorResponse
// @Router /balance [get]
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, balance)
}

// History returns one page of the caller's ledger
// @Summary Ledger history
// @Description Entries ordered by creation time. Pass nextCursor back as cursor to continue.
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Param cursor query string false "Opaque cursor from the previous page"
// @Param limit query int false "Page size (max 500)"
// @Param kind query string false "Comma-separated entry kinds"
// @Param status query string false "Comma-separated entry statuses"
// @Param from query string false "RFC3339 lower bound (inclusive)"
// @Param to query string false "RFC3339 upper bound (exclusive)"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /ledger-history [get]
func (h *BalanceHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	filter, limit, err := h.parseHistoryQuery(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid query", http.StatusBadRequest, err)
		return
	}

	entries, next, err := h.ledger.HistoryPage(r.Context(), accountID, filter, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	services.SendJSON(w, http.StatusOK, HistoryResponse{Entries: entries, NextCursor: next})
}

func (h *BalanceHandler) parseHistoryQuery(r *http.Request) (store.HistoryFilter, int, error) {
	q := r.URL.Query()
	var filter store.HistoryFilter

	limit := h.pageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, 0, fmt.Errorf("limit must be a positive integer")
		}
		limit = n
	}

	for _, k := range splitList(q.Get("kind")) {
		kind := models.EntryKind(k)
		if !kind.Valid() {
			return filter, 0, fmt.Errorf("unknown kind %q", k)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	for _, s := range splitList(q.Get("status")) {
		status := models.EntryStatus(s)
		switch status {
		case models.EntryPending, models.EntryCompleted, models.EntryFailed, models.EntryReversed:
		default:
			return filter, 0, fmt.Errorf("unknown status %q", s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		return filter, 0, fmt.Errorf("from: %w", err)
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		return filter, 0, fmt.Errorf("to: %w", err)
	}
	return filter, limit, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// CreateDeposit opens a gateway payment intent
// @Summary Create deposit
// @Description Opens a payment intent. The balance is credited when the gateway confirms the payment.
// @Tags Balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDepositRequest true "Deposit request"
// @Success 201 {object} services.DepositResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /balance/deposit [post]
func (h *BalanceHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateDepositRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.deposits.CreateDeposit(r.Context(), accountID, req.Amount)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, result)
}

// DepositWebhook receives onPaymentConfirmed from the payment gateway
// @Summary Deposit webhook
// @Description HMAC-SHA256 signed by the gateway in the X-Gateway-Signature header.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Gateway-Signature header string true "sha256=<hex>"
// @Param request body gateway.PaymentConfirmed true "Payment confirmation"
// @Success 200 {object} models.Deposit
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /balance/deposit-webhook [post]
func (h *BalanceHandler) DepositWebhook(w http.ResponseWriter, r *http.Request) {
	var event gateway.PaymentConfirmed
	if !readSignedWebhook(w, r, h.webhookSecret, h.validator, &event) {
		return
	}

	deposit, err := h.deposits.ConfirmDeposit(r.Context(), event)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deposit)
}

// readSignedWebhook verifies the gateway signature over the raw body before
// decoding it. Unknown fields are tolerated since the gateway may add them.
func readSignedWebhook(w http.ResponseWriter, r *http.Request, secret string, validator *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := gateway.VerifySignature(secret, body, r.Header.Get(gateway.SignatureHeader)); err != nil {
		log.Printf("[WEBHOOK] Rejected %s: %v", r.URL.Path, err)
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
