package handlers

import (
	"net/http"

	"github.com/soulseer/settlement/internal/services"
)

type GiftHandler struct {
	service   *services.GiftService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewGiftHandler(service *services.GiftService, ledger *services.LedgerService) *GiftHandler {
	return &GiftHandler{
		service:   service,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

type AddGiftRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

// Send settles a gift or tip
// @Summary Send gift or tip
// @Description Debits the sender and credits the recipient's share. Name a catalog giftId or send a free tip amount. Repeating an idempotencyKey returns the original result.
// @Tags Gifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.SendGiftRequest true "Gift request"
// @Success 201 {object} services.GiftResult
// @Success 200 {object} services.GiftResult "Replayed"
// @Failure 402 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /gift/send [post]
func (h *GiftHandler) Send(w http.ResponseWriter, r *http.Request) {
	senderID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req services.SendGiftRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	req.SenderAccountID = senderID

	result, err := h.service.SendGift(r.Context(), req)
	if err != nil {
		sendFailure(r.Context(), w, h.ledger, senderID, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	services.SendJSON(w, status, result)
}

// Catalog lists active virtual gifts
// @Summary Gift catalog
// @Tags Gifts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.VirtualGift
// @Router /gifts [get]
func (h *GiftHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.service.Catalog(r.Context())
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, gifts)
}

// AddGift registers a catalog item
// @Summary Add catalog gift
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AddGiftRequest true "Catalog gift"
// @Success 201 {object} models.VirtualGift
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/gifts [post]
func (h *GiftHandler) AddGift(w http.ResponseWriter, r *http.Request) {
	var req AddGiftRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	gift, err := h.service.AddGift(r.Context(), req.Name, req.Price)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, gift)
}
