package handlers

import (
	"net/http"

	"github.com/soulseer/settlement/internal/services"
)

type RefundHandler struct {
	service   *services.RefundService
	validator *services.ValidationHelper
}

func NewRefundHandler(service *services.RefundService) *RefundHandler {
	return &RefundHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Refund reverses part or all of a payer debit
// @Summary Refund
// @Description Credits the original payer. The counterparty gives back its proportional share and the platform the rest. Cumulative refunds never exceed the original gross.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.RefundRequest true "Refund request"
// @Success 201 {object} services.RefundResult
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /refund [post]
func (h *RefundHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req services.RefundRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Refund(r.Context(), req)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, result)
}
