package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/services"
)

type PayoutHandler struct {
	service       *services.PayoutService
	ledger        *services.LedgerService
	webhookSecret string
	validator     *services.ValidationHelper
}

func NewPayoutHandler(service *services.PayoutService, ledger *services.LedgerService, webhookSecret string) *PayoutHandler {
	return &PayoutHandler{
		service:       service,
		ledger:        ledger,
		webhookSecret: webhookSecret,
		validator:     services.NewValidationHelper(),
	}
}

type PayoutRequestBody struct {
	// Amount in minor units; zero requests the whole available balance.
	Amount int64 `json:"amount" validate:"gte=0"`
}

type RunBatchRequest struct {
	// RunDate is YYYY-MM-DD; empty means today (UTC).
	RunDate string `json:"runDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RequestPayout reserves available balance for the next payout run
// @Summary Request payout
// @Tags Payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayoutRequestBody true "Payout request"
// @Success 201 {object} models.PayoutRequest
// @Failure 402 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 423 {object} services.ErrorResponse
// @Router /payout/request [post]
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req PayoutRequestBody
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), accountID, req.Amount)
	if err != nil {
		sendFailure(r.Context(), w, h.ledger, accountID, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, payout)
}

// ListPayouts returns the caller's recent payout requests
// @Summary List payouts
// @Tags Payouts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of requests (max 200)"
// @Success 200 {array} models.PayoutRequest
// @Router /payouts [get]
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payouts, err := h.service.ListPayouts(r.Context(), accountID, limit)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, payouts)
}

// TransferWebhook receives onTransferCompleted and onTransferFailed
// @Summary Transfer webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Gateway-Signature header string true "sha256=<hex>"
// @Param request body gateway.TransferEvent true "Transfer event"
// @Success 204
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payout/transfer-webhook [post]
func (h *PayoutHandler) TransferWebhook(w http.ResponseWriter, r *http.Request) {
	var event gateway.TransferEvent
	if !readSignedWebhook(w, r, h.webhookSecret, h.validator, &event) {
		return
	}

	if err := h.service.HandleTransferEvent(r.Context(), event); err != nil {
		services.SendSettlementError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunBatch triggers the payout run for a date
// @Summary Run payout batch
// @Description Idempotent per run date. Re-running a day creates no duplicate requests.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RunBatchRequest false "Run date"
// @Success 200 {object} services.BatchReport
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/payouts/run [post]
func (h *PayoutHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req RunBatchRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, h.validator, &req) {
		return
	}

	runDate := time.Now().UTC()
	if req.RunDate != "" {
		runDate, _ = time.Parse("2006-01-02", req.RunDate)
	}

	report, err := h.service.RunBatch(r.Context(), runDate)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, report)
}
