package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soulseer/settlement/internal/services"
)

type AccountHandler struct {
	accounts  *services.AccountService
	auditor   *services.BalanceAuditor
	validator *services.ValidationHelper
}

func NewAccountHandler(accounts *services.AccountService, auditor *services.BalanceAuditor) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		auditor:   auditor,
		validator: services.NewValidationHelper(),
	}
}

// Create opens an account on registration
// @Summary Create account
// @Description Called by the identity layer on registration. Idempotent: an existing account is returned with 200.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateAccountRequest true "Account"
// @Success 201 {object} models.Account
// @Success 200 {object} models.Account "Already exists"
// @Router /admin/accounts [post]
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAccountRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	account, created, err := h.accounts.CreateAccount(r.Context(), req)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	services.SendJSON(w, status, account)
}

// UpdateProfile changes the caller's payout destination and session rates
// @Summary Update account profile
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.UpdateProfileRequest true "Profile fields to change"
// @Success 200 {object} models.Account
// @Failure 410 {object} services.ErrorResponse
// @Router /accounts/me [patch]
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	account, err := h.accounts.UpdateProfile(r.Context(), accountID, req)
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, account)
}

// Archive soft-deletes an empty account
// @Summary Archive account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/accounts/{accountId}/archive [post]
func (h *AccountHandler) Archive(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Archive(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, account)
}

// ReleaseHold lifts a payout hold once the account reconciles again
// @Summary Release payout hold
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/accounts/{accountId}/release-hold [post]
func (h *AccountHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	account, err := h.auditor.ReleaseHold(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, account)
}

// RunAudit reconciles every balance against its ledger
// @Summary Run balance audit
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.AuditReport
// @Router /admin/audit/run [post]
func (h *AccountHandler) RunAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.Reconcile(r.Context())
	if err != nil {
		services.SendSettlementError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, report)
}
