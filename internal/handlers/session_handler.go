package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soulseer/settlement/internal/services"
)

type SessionHandler struct {
	service   *services.SessionService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewSessionHandler(service *services.SessionService, ledger *services.LedgerService) *SessionHandler {
	return &SessionHandler{
		service:   service,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

type EndSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	Force     bool   `json:"force"`
}

type CancelSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

// Start opens a billed session with a provider
// @Summary Start session
// @Description Opens a per-minute session. The client must afford at least one minute.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.StartSessionRequest true "Session start request"
// @Success 201 {object} models.Session
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /session/start [post]
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	clientID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req services.StartSessionRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}
	req.ClientAccountID = clientID

	session, err := h.service.Start(r.Context(), req)
	if err != nil {
		sendFailure(r.Context(), w, h.ledger, clientID, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, session)
}

// End settles a session
// @Summary End session
// @Description Charges ceil(elapsed minutes) x rate and splits it between provider and platform. With force=true the charge is capped at the client's available balance.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EndSessionRequest true "Session end request"
// @Success 200 {object} services.SessionResult
// @Failure 402 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /session/end [post]
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req EndSessionRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.End(r.Context(), req.SessionID, actorID, req.Force)
	if err != nil {
		sendFailure(r.Context(), w, h.ledger, actorID, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Cancel ends a session early, charging at most the client's available balance
// @Summary Cancel session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CancelSessionRequest true "Session cancel request"
// @Success 200 {object} services.SessionResult
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /session/cancel [post]
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CancelSessionRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.Cancel(r.Context(), req.SessionID, actorID)
	if err != nil {
		sendFailure(r.Context(), w, h.ledger, actorID, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Get returns a session to one of its parties
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /session/{sessionId} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, ok := callerID(w, r)
	if !ok {
		return
	}

	session, err := h.service.Get(r.Context(), chi.URLParam(r, "sessionId"), actorID)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, session)
}
