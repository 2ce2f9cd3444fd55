package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

func TestGiftService_SendTip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 10000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	result, err := e.gifts.SendGift(ctx, SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		Amount:             5000,
		Context:            "stream-42",
		IdempotencyKey:     "tip-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, models.KindGiftPurchase, result.Entry.Kind)
	assert.Equal(t, models.CategoryTip, result.Entry.Category)
	assert.Equal(t, Split{GrossAmount: 5000, PlatformFee: 1500, NetAmount: 3500}, result.Split)

	assert.Equal(t, int64(5000), e.balance(t, "fan"))
	assert.Equal(t, int64(3500), e.balance(t, "reader"))
	assert.Equal(t, int64(1500), e.balance(t, platformID))
	e.requireReconciled(t)
}

func TestGiftService_IdempotencyKey(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 10000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	req := SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		Amount:             700,
		IdempotencyKey:     "retry-me",
	}

	t.Run("sequential retry replays", func(t *testing.T) {
		first, err := e.gifts.SendGift(ctx, req)
		require.NoError(t, err)
		second, err := e.gifts.SendGift(ctx, req)
		require.NoError(t, err)

		assert.True(t, second.Replayed)
		assert.Equal(t, first.Entry.ID, second.Entry.ID)
		assert.Equal(t, first.GiftEventID, second.GiftEventID)
		assert.Equal(t, first.Split, second.Split)
		assert.Equal(t, int64(9300), e.balance(t, "fan"))
	})

	t.Run("key reused for another request", func(t *testing.T) {
		other := req
		other.Amount = 900
		_, err := e.gifts.SendGift(ctx, other)
		assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	})

	t.Run("concurrent duplicates debit once", func(t *testing.T) {
		dup := req
		dup.IdempotencyKey = "burst"

		var wg sync.WaitGroup
		results := make([]*GiftResult, 8)
		errs := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = e.gifts.SendGift(ctx, dup)
			}(i)
		}
		wg.Wait()

		for i := range results {
			require.NoError(t, errs[i])
			assert.Equal(t, results[0].Entry.ID, results[i].Entry.ID)
		}
		debits := e.entries(t, "fan", store.HistoryFilter{
			Kinds:    []models.EntryKind{models.KindGiftPurchase},
			Statuses: []models.EntryStatus{models.EntryCompleted},
		})
		assert.Len(t, debits, 2)
		assert.Equal(t, int64(8600), e.balance(t, "fan"))
	})
	e.requireReconciled(t)
}

func TestGiftService_CatalogGift(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	rose, err := e.gifts.AddGift(ctx, "Rose", 250)
	require.NoError(t, err)

	catalog, err := e.gifts.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 1)

	result, err := e.gifts.SendGift(ctx, SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		GiftID:             rose.ID,
		IdempotencyKey:     "rose-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryGift, result.Entry.Category)
	assert.Equal(t, Split{GrossAmount: 250, PlatformFee: 75, NetAmount: 175}, result.Split)

	_, err = e.gifts.SendGift(ctx, SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		GiftID:             rose.ID,
		Amount:             100,
		IdempotencyKey:     "rose-2",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestGiftService_InsufficientBalanceRecordsFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 300)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	_, err := e.gifts.SendGift(ctx, SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		Amount:             500,
		IdempotencyKey:     "too-much",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(300), e.balance(t, "fan"))
	assert.Equal(t, int64(0), e.balance(t, "reader"))

	failed := e.entries(t, "fan", store.HistoryFilter{Statuses: []models.EntryStatus{models.EntryFailed}})
	require.Len(t, failed, 1)
	assert.Equal(t, models.KindGiftPurchase, failed[0].Kind)
	e.requireReconciled(t)
}

func TestGiftService_RejectsSelfGift(t *testing.T) {
	e := newTestEngine(t)
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 300)

	_, err := e.gifts.SendGift(context.Background(), SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "fan",
		Amount:             100,
		IdempotencyKey:     "self",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

// repricedCatalog serves a changed catalog entry for every gift lookup.
type repricedCatalog struct {
	store.Store
	price  int64
	active bool
	reads  int
}

func (c *repricedCatalog) GetGift(ctx context.Context, id string) (*models.VirtualGift, error) {
	c.reads++
	gift, err := c.Store.GetGift(ctx, id)
	if err != nil {
		return nil, err
	}
	gift.Price = c.price
	gift.Active = c.active
	return gift, nil
}

func TestGiftService_ReplayIgnoresCatalogChanges(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "fan"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	rose, err := e.gifts.AddGift(ctx, "Rose", 250)
	require.NoError(t, err)
	req := SendGiftRequest{
		SenderAccountID:    "fan",
		RecipientAccountID: "reader",
		GiftID:             rose.ID,
		IdempotencyKey:     "rose-replay",
	}
	first, err := e.gifts.SendGift(ctx, req)
	require.NoError(t, err)

	t.Run("retired gift still replays", func(t *testing.T) {
		catalog := &repricedCatalog{Store: e.store, price: 250, active: false}
		e.gifts.store = catalog

		second, err := e.gifts.SendGift(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Entry.ID, second.Entry.ID)
		assert.Equal(t, 0, catalog.reads)

		fresh := req
		fresh.IdempotencyKey = "rose-new"
		_, err = e.gifts.SendGift(ctx, fresh)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("repriced gift still replays", func(t *testing.T) {
		e.gifts.store = &repricedCatalog{Store: e.store, price: 400, active: true}

		second, err := e.gifts.SendGift(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, Split{GrossAmount: 250, PlatformFee: 75, NetAmount: 175}, second.Split)
	})

	assert.Equal(t, int64(750), e.balance(t, "fan"))
	e.requireReconciled(t)
}
