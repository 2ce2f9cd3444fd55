package handlers

import (
	"github.com/go-chi/chi/v5"

	mW "github.com/soulseer/settlement/internal/middleware"
)

// API groups the handlers mounted under /api/v1.
type API struct {
	Sessions *SessionHandler
	Gifts    *GiftHandler
	Balance  *BalanceHandler
	Payouts  *PayoutHandler
	Refunds  *RefundHandler
	Accounts *AccountHandler
}

// Mount registers the settlement surface on r.
func (a *API) Mount(r chi.Router) {
	// Gateway webhooks authenticate by signature, not bearer token.
	r.Post("/balance/deposit-webhook", a.Balance.DepositWebhook)
	r.Post("/payout/transfer-webhook", a.Payouts.TransferWebhook)

	r.Group(func(r chi.Router) {
		r.Use(mW.AuthMiddleware)

		r.Post("/session/start", a.Sessions.Start)
		r.Post("/session/end", a.Sessions.End)
		r.Post("/session/cancel", a.Sessions.Cancel)
		r.Get("/session/{sessionId}", a.Sessions.Get)

		r.Get("/gifts", a.Gifts.Catalog)
		r.Post("/gift/send", a.Gifts.Send)

		r.Get("/balance", a.Balance.GetBalance)
		r.Post("/balance/deposit", a.Balance.CreateDeposit)
		r.Get("/ledger-history", a.Balance.History)

		r.Post("/payout/request", a.Payouts.RequestPayout)
		r.Get("/payouts", a.Payouts.ListPayouts)

		r.Patch("/accounts/me", a.Accounts.UpdateProfile)

		r.Group(func(r chi.Router) {
			r.Use(mW.RequireAdmin)

			r.Post("/refund", a.Refunds.Refund)
			r.Post("/admin/gifts", a.Gifts.AddGift)
			r.Post("/admin/accounts", a.Accounts.Create)
			r.Post("/admin/accounts/{accountId}/archive", a.Accounts.Archive)
			r.Post("/admin/accounts/{accountId}/release-hold", a.Accounts.ReleaseHold)
			r.Post("/admin/audit/run", a.Accounts.RunAudit)
			r.Post("/admin/payouts/run", a.Payouts.RunBatch)
		})
	})
}
