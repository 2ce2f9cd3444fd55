package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

func TestLedgerService_Apply(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "alice"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "bob"}, 0)

	t.Run("debit and credit commit together", func(t *testing.T) {
		entries, err := e.ledger.Apply(ctx,
			Posting{AccountID: "alice", Kind: models.KindAdjustment, Direction: models.Debit, GrossAmount: 400, NetAmount: 400},
			Posting{AccountID: "bob", Kind: models.KindAdjustment, Direction: models.Credit, GrossAmount: 400, NetAmount: 400},
		)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, entry := range entries {
			assert.Equal(t, models.EntryCompleted, entry.Status)
			assert.NotNil(t, entry.CompletedAt)
		}
		assert.Equal(t, int64(600), e.balance(t, "alice"))
		assert.Equal(t, int64(400), e.balance(t, "bob"))
	})

	t.Run("overdraft persists nothing", func(t *testing.T) {
		_, err := e.ledger.Apply(ctx,
			Posting{AccountID: "bob", Kind: models.KindAdjustment, Direction: models.Credit, GrossAmount: 700, NetAmount: 700},
			Posting{AccountID: "alice", Kind: models.KindAdjustment, Direction: models.Debit, GrossAmount: 700, NetAmount: 700},
		)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, int64(600), e.balance(t, "alice"))
		assert.Equal(t, int64(400), e.balance(t, "bob"))
		assert.Len(t, e.entries(t, "bob", store.HistoryFilter{}), 1)
	})

	t.Run("split mismatch is an invariant violation", func(t *testing.T) {
		_, err := e.ledger.Apply(ctx, Posting{
			AccountID: "bob", Kind: models.KindGiftEarning, Direction: models.Credit,
			GrossAmount: 100, PlatformFee: 30, NetAmount: 69,
		})
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := e.ledger.Apply(ctx, Posting{AccountID: "bob", Kind: models.KindAdjustment, Direction: models.Credit, GrossAmount: -1, NetAmount: -1})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := e.ledger.Apply(ctx, Posting{AccountID: "carol", Kind: models.KindAdjustment, Direction: models.Credit, GrossAmount: 1, NetAmount: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})
	e.requireReconciled(t)
}

func TestLedgerService_RunRetriesConflicts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	attempts := 0
	err := e.ledger.Run(ctx, func(b *Batch) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("row changed: %w", store.ErrConcurrentModification)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = e.ledger.Run(ctx, func(b *Batch) error {
		attempts++
		return ErrConcurrentModification
	})
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 5, attempts)

	attempts = 0
	err = e.ledger.Run(ctx, func(b *Batch) error {
		attempts++
		return ErrInsufficientBalance
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 1, attempts)
}

func TestLedgerService_History(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 0)

	for i := 0; i < 230; i++ {
		e.clock.Advance(time.Second)
		_, err := e.ledger.Apply(ctx, Posting{AccountID: "fan", Kind: models.KindDeposit, Direction: models.Credit, GrossAmount: 10, NetAmount: 10})
		require.NoError(t, err)
	}

	t.Run("lazy sequence is ordered and restartable", func(t *testing.T) {
		history := e.ledger.History(ctx, "fan", store.HistoryFilter{})
		for pass := 0; pass < 2; pass++ {
			count := 0
			var last time.Time
			for entry, err := range history {
				require.NoError(t, err)
				assert.False(t, entry.CreatedAt.Before(last))
				last = entry.CreatedAt
				count++
			}
			assert.Equal(t, 230, count)
		}
	})

	t.Run("early break stops paging", func(t *testing.T) {
		count := 0
		for range e.ledger.History(ctx, "fan", store.HistoryFilter{}) {
			count++
			if count == 5 {
				break
			}
		}
		assert.Equal(t, 5, count)
	})

	t.Run("cursor pages", func(t *testing.T) {
		seen := make(map[string]bool)
		cursor := ""
		pages := 0
		for {
			page, next, err := e.ledger.HistoryPage(ctx, "fan", store.HistoryFilter{}, cursor, 100)
			require.NoError(t, err)
			for _, entry := range page {
				assert.False(t, seen[entry.ID])
				seen[entry.ID] = true
			}
			pages++
			if next == "" {
				break
			}
			cursor = next
		}
		assert.Equal(t, 3, pages)
		assert.Len(t, seen, 230)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		_, _, err := e.ledger.HistoryPage(ctx, "fan", store.HistoryFilter{}, "%%%", 10)
		assert.Error(t, err)
	})
}

func TestCursorRoundTrip(t *testing.T) {
	c := store.Cursor{CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC), ID: "le_abc"}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	empty, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestLedgerService_CommitWritesThroughCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 1000)

	redisClient, mock := redismock.NewClientMock()
	e.ledger.cache = NewBalanceCache(redisClient, time.Minute)

	committed := *e.account(t, "reader")
	committed.Balance += 500
	committed.Version++
	data, err := json.Marshal(committed)
	require.NoError(t, err)

	mock.ExpectEval(setIfNewer, []string{"balance:reader"}, string(data), committed.Version, int64(60000)).SetVal(int64(1))
	_, err = e.ledger.Apply(ctx, Posting{
		AccountID:       "reader",
		Kind:            models.KindDeposit,
		Direction:       models.Credit,
		GrossAmount:     500,
		NetAmount:       500,
		RelatedEntityID: "dep_cache",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	t.Run("error path reads the committed row", func(t *testing.T) {
		stale := committed
		stale.Balance = 1000
		stale.Version--
		staleData, err := json.Marshal(stale)
		require.NoError(t, err)

		mock.ExpectGet("balance:reader").SetVal(string(staleData))
		cached, err := e.ledger.GetBalance(ctx, "reader")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), cached.Balance)

		view, err := e.ledger.GetAuthoritativeBalance(ctx, "reader")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), view.Balance)
		assert.Equal(t, committed.Version, view.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_GetBalance(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 10000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", PayoutDestination: "acct_1"}, 0)
	gift := sendTip(t, e, "fan", "reader", 5000, "g1")
	_, err := e.refunds.Refund(ctx, RefundRequest{OriginalEntryID: gift.Entry.ID, Amount: 1000, Reason: "r"})
	require.NoError(t, err)
	_, err = e.payouts.RequestPayout(ctx, "reader", 2000)
	require.NoError(t, err)

	view, err := e.ledger.GetBalance(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(2800), view.Balance)
	assert.Equal(t, int64(2000), view.Reserved)
	assert.Equal(t, int64(800), view.Available)
	assert.Equal(t, int64(3500), view.TotalEarned)
	assert.Equal(t, int64(700), view.TotalRefunded)
	assert.Equal(t, int64(0), view.TotalPaidOut)

	_, err = e.ledger.GetBalance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
