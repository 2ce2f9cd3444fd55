package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

// corruptBalance writes a balance without a ledger entry.
func corruptBalance(t *testing.T, e *testEngine, accountID string, balance int64) {
	t.Helper()
	err := e.store.RunInTx(context.Background(), func(tx store.Tx) error {
		accounts, err := tx.LockAccounts(context.Background(), accountID)
		if err != nil {
			return err
		}
		account := accounts[accountID]
		account.Balance = balance
		return tx.UpdateAccount(context.Background(), account)
	})
	require.NoError(t, err)
}

func TestBalanceAuditor_DetectsAndHolds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 3000)
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 1000)
	corruptBalance(t, e, "reader", 3500)

	report, err := e.auditor.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, Violation{AccountID: "reader", Balance: 3500, LedgerTotal: 3000}, report.Violations[0])
	assert.Equal(t, models.AccountPayoutHold, e.account(t, "reader").Status)
	assert.Equal(t, models.AccountActive, e.account(t, "client").Status)

	t.Run("hold is not released while the mismatch persists", func(t *testing.T) {
		_, err := e.auditor.ReleaseHold(ctx, "reader")
		assert.ErrorIs(t, err, ErrInvariantViolation)
		assert.Equal(t, models.AccountPayoutHold, e.account(t, "reader").Status)
	})

	t.Run("release after correction", func(t *testing.T) {
		corruptBalance(t, e, "reader", 3000)
		account, err := e.auditor.ReleaseHold(ctx, "reader")
		require.NoError(t, err)
		assert.Equal(t, models.AccountActive, account.Status)
	})
}

func TestBalanceAuditor_CleanLedger(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 10000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)
	sendTip(t, e, "fan", "reader", 1234, "k1")
	sendTip(t, e, "fan", "reader", 999, "k2")

	violation, err := e.auditor.CheckAccount(ctx, "reader")
	require.NoError(t, err)
	assert.Nil(t, violation)
	e.requireReconciled(t)
}
