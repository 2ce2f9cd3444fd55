package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
)

func seedAccount(t *testing.T, st *MemoryStore, id string, balance int64) {
	t.Helper()
	err := st.RunInTx(context.Background(), func(tx Tx) error {
		_, err := tx.CreateAccount(context.Background(), &models.Account{ID: id, Balance: balance, Status: models.AccountActive})
		return err
	})
	require.NoError(t, err)
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, st, "a", 100)

	boom := errors.New("boom")
	err := st.RunInTx(ctx, func(tx Tx) error {
		accounts, err := tx.LockAccounts(ctx, "a")
		require.NoError(t, err)
		accounts["a"].Balance = 0
		require.NoError(t, tx.UpdateAccount(ctx, accounts["a"]))
		require.NoError(t, tx.InsertEntry(ctx, &models.LedgerEntry{ID: "le_1", AccountID: "a", Status: models.EntryCompleted}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	account, err := st.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)
	assert.Equal(t, 0, account.Version)
	_, err = st.GetEntry(ctx, "le_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RowLocksSerialize(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, st, "a", 100)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.RunInTx(ctx, func(tx Tx) error {
			if _, err := tx.LockAccounts(ctx, "a"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := st.RunInTx(waitCtx, func(tx Tx) error {
		_, err := tx.LockAccounts(waitCtx, "a")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	err = st.RunInTx(ctx, func(tx Tx) error {
		_, err := tx.LockAccounts(ctx, "a")
		return err
	})
	assert.NoError(t, err)
}

func TestMemoryStore_VersionCheck(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, st, "a", 100)

	err := st.RunInTx(ctx, func(tx Tx) error {
		return tx.UpdateAccount(ctx, &models.Account{ID: "a", Balance: 50, Version: 3})
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	err = st.RunInTx(ctx, func(tx Tx) error {
		return tx.UpdateAccount(ctx, &models.Account{ID: "a", Balance: -1, Version: 0})
	})
	assert.Error(t, err)
}

func TestMemoryStore_OneActiveSessionPerPair(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	insert := func(id string) error {
		return st.RunInTx(ctx, func(tx Tx) error {
			return tx.InsertSession(ctx, &models.Session{ID: id, ClientAccountID: "c", ProviderAccountID: "p", Status: models.SessionActive})
		})
	}
	require.NoError(t, insert("ses_1"))
	assert.ErrorIs(t, insert("ses_2"), ErrConflict)

	err := st.RunInTx(ctx, func(tx Tx) error {
		s, err := tx.LockSession(ctx, "ses_1")
		if err != nil {
			return err
		}
		s.Status = models.SessionCompleted
		return tx.UpdateSession(ctx, s)
	})
	require.NoError(t, err)
	assert.NoError(t, insert("ses_3"))
}

func TestMemoryStore_RunKeyUniqueness(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	runKey := "2025-03-15"

	insert := func(id string) error {
		return st.RunInTx(ctx, func(tx Tx) error {
			return tx.InsertPayout(ctx, &models.PayoutRequest{ID: id, ProviderAccountID: "p", Amount: 1500, Status: models.PayoutPending, RunKey: &runKey})
		})
	}
	require.NoError(t, insert("po_1"))
	assert.ErrorIs(t, insert("po_2"), ErrConflict)

	payouts, err := st.ListPayoutsByStatus(ctx, []models.PayoutStatus{models.PayoutPending}, 10)
	require.NoError(t, err)
	assert.Len(t, payouts, 1)
}

func TestMemoryStore_ListEntriesKeyset(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := st.RunInTx(ctx, func(tx Tx) error {
		for i, id := range []string{"le_c", "le_a", "le_b", "le_d"} {
			created := base
			if i == 3 {
				created = base.Add(time.Second)
			}
			kind := models.KindDeposit
			if id == "le_b" {
				kind = models.KindRefund
			}
			if err := tx.InsertEntry(ctx, &models.LedgerEntry{ID: id, AccountID: "a", Kind: kind, Status: models.EntryCompleted, CreatedAt: created}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	page, err := st.ListEntries(ctx, "a", HistoryFilter{}, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "le_a", page[0].ID)
	assert.Equal(t, "le_b", page[1].ID)

	page, err = st.ListEntries(ctx, "a", HistoryFilter{}, &Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "le_c", page[0].ID)
	assert.Equal(t, "le_d", page[1].ID)

	page, err = st.ListEntries(ctx, "a", HistoryFilter{Kinds: []models.EntryKind{models.KindRefund}}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "le_b", page[0].ID)
}
