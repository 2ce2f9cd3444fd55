package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
)

func TestBalanceCache(t *testing.T) {
	ctx := context.Background()
	redisClient, mock := redismock.NewClientMock()
	cache := NewBalanceCache(redisClient, 30*time.Second)

	account := &models.Account{ID: "reader", Balance: 1200, Reserved: 200, Version: 4, Status: models.AccountActive}
	data, err := json.Marshal(account)
	require.NoError(t, err)

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("balance:reader").RedisNil()
		_, ok := cache.Get(ctx, "reader")
		assert.False(t, ok)
	})

	t.Run("set and hit", func(t *testing.T) {
		mock.ExpectEval(setIfNewer, []string{"balance:reader"}, string(data), 4, int64(30000)).SetVal(int64(1))
		cache.Set(ctx, account)

		mock.ExpectGet("balance:reader").SetVal(string(data))
		got, ok := cache.Get(ctx, "reader")
		require.True(t, ok)
		assert.Equal(t, int64(1000), got.Available())
	})

	t.Run("every snapshot is version guarded", func(t *testing.T) {
		client := &models.Account{ID: "client", Balance: 300, Version: 9, Status: models.AccountActive}
		clientData, err := json.Marshal(client)
		require.NoError(t, err)

		mock.ExpectEval(setIfNewer, []string{"balance:reader"}, string(data), 4, int64(30000)).SetVal(int64(0))
		mock.ExpectEval(setIfNewer, []string{"balance:client"}, string(clientData), 9, int64(30000)).SetVal(int64(1))
		cache.Set(ctx, account, client)
	})

	t.Run("redis error is a miss", func(t *testing.T) {
		mock.ExpectGet("balance:reader").SetErr(errors.New("connection refused"))
		_, ok := cache.Get(ctx, "reader")
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceCache_NilClient(t *testing.T) {
	var cache *BalanceCache
	_, ok := cache.Get(context.Background(), "x")
	assert.False(t, ok)
	cache.Set(context.Background(), &models.Account{ID: "x"})
	NewBalanceCache(nil, time.Minute).Set(context.Background(), &models.Account{ID: "x"})
}

func TestIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	redisClient, mock := redismock.NewClientMock()
	cache := NewIdempotencyCache(redisClient, time.Hour)

	mock.ExpectGet("idem:gift/send:fan:k1").RedisNil()
	_, _, ok := cache.Lookup(ctx, "fan", giftScope, "k1")
	assert.False(t, ok)

	mock.ExpectSet("idem:gift/send:fan:k1", `{"requestHash":"abc","entryId":"le_1"}`, time.Hour).SetVal("OK")
	cache.Remember(ctx, "fan", giftScope, "k1", "abc", "le_1")

	mock.ExpectGet("idem:gift/send:fan:k1").SetVal(`{"requestHash":"abc","entryId":"le_1"}`)
	hash, entryID, ok := cache.Lookup(ctx, "fan", giftScope, "k1")
	require.True(t, ok)
	assert.Equal(t, "abc", hash)
	assert.Equal(t, "le_1", entryID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	redisClient, mock := redismock.NewClientMock()
	lock := NewRunLock(redisClient, time.Minute)

	mock.ExpectSetNX("lock:payout:run:2025-03-15", "owner-a", time.Minute).SetVal(true)
	acquired, err := lock.Acquire(ctx, "payout:run:2025-03-15", "owner-a")
	require.NoError(t, err)
	assert.True(t, acquired)

	mock.ExpectSetNX("lock:payout:run:2025-03-15", "owner-b", time.Minute).SetVal(false)
	acquired, err = lock.Acquire(ctx, "payout:run:2025-03-15", "owner-b")
	require.NoError(t, err)
	assert.False(t, acquired)

	mock.ExpectDel("lock:payout:run:2025-03-15").SetVal(1)
	lock.Release(ctx, "payout:run:2025-03-15")

	assert.NoError(t, mock.ExpectationsWereMet())

	acquired, err = NewRunLock(nil, time.Minute).Acquire(ctx, "any", "me")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	redisClient, mock := redismock.NewClientMock()
	publisher := NewEventPublisher(redisClient)

	at := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	entry := models.LedgerEntry{
		ID:              "le_1",
		AccountID:       "reader",
		Kind:            models.KindGiftEarning,
		Direction:       models.Credit,
		Status:          models.EntryCompleted,
		NetAmount:       350,
		RelatedEntityID: "gft_1",
		CreatedAt:       at,
	}
	data, err := json.Marshal(LedgerEvent{
		EntryID:         "le_1",
		AccountID:       "reader",
		Kind:            models.KindGiftEarning,
		Direction:       models.Credit,
		Status:          models.EntryCompleted,
		NetAmount:       350,
		RelatedEntityID: "gft_1",
		OccurredAt:      at,
	})
	require.NoError(t, err)

	mock.ExpectRPush(ledgerEventsQueue, string(data)).SetVal(1)
	publisher.Publish(ctx, []models.LedgerEntry{entry})
	assert.NoError(t, mock.ExpectationsWereMet())

	publisher.Publish(ctx, nil)
	NewEventPublisher(nil).Publish(ctx, []models.LedgerEntry{entry})
}
