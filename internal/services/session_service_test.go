package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

func TestSessionService_EndSettlesSplit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 10000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", ChatRate: 200}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{
		ClientAccountID:   "client",
		ProviderAccountID: "reader",
		SessionType:       models.SessionChat,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200), session.RatePerMinute)
	assert.Equal(t, models.SessionActive, session.Status)

	e.clock.Advance(7*time.Minute + 30*time.Second)

	result, err := e.sessions.End(ctx, session.ID, "client", false)
	require.NoError(t, err)
	assert.False(t, result.AlreadySettled)
	assert.Equal(t, models.SessionCompleted, result.Session.Status)
	assert.Equal(t, int64(8), result.Session.DurationMinutes)
	assert.Equal(t, Split{GrossAmount: 1600, PlatformFee: 480, NetAmount: 1120}, result.Charge)

	assert.Equal(t, int64(8400), e.balance(t, "client"))
	assert.Equal(t, int64(1120), e.balance(t, "reader"))
	assert.Equal(t, int64(480), e.balance(t, platformID))

	related, err := e.store.EntriesByRelated(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, related, 3)
	for _, entry := range related {
		assert.Equal(t, entry.GrossAmount, entry.PlatformFee+entry.NetAmount)
		assert.Equal(t, models.EntryCompleted, entry.Status)
	}
	e.requireReconciled(t)
}

func TestSessionService_EndIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 5000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", CallRate: 300}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{
		ClientAccountID:   "client",
		ProviderAccountID: "reader",
		SessionType:       models.SessionCall,
	})
	require.NoError(t, err)
	e.clock.Advance(3 * time.Minute)

	first, err := e.sessions.End(ctx, session.ID, "client", false)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	second, err := e.sessions.End(ctx, session.ID, "reader", false)
	require.NoError(t, err)

	assert.True(t, second.AlreadySettled)
	assert.Equal(t, first.Charge, second.Charge)
	assert.Equal(t, first.ChargeEntryID, second.ChargeEntryID)
	assert.Equal(t, first.Session.TotalCharge, second.Session.TotalCharge)
	assert.Equal(t, int64(4100), e.balance(t, "client"))

	charges := e.entries(t, "client", store.HistoryFilter{Kinds: []models.EntryKind{models.KindSessionCharge}})
	assert.Len(t, charges, 1)
}

func TestSessionService_EndWithoutForceKeepsSessionActive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", VideoRate: 200}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{
		ClientAccountID:   "client",
		ProviderAccountID: "reader",
		SessionType:       models.SessionVideo,
	})
	require.NoError(t, err)
	e.clock.Advance(10 * time.Minute)

	_, err = e.sessions.End(ctx, session.ID, "client", false)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	current, err := e.sessions.Get(ctx, session.ID, "client")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, current.Status)
	assert.Equal(t, int64(1000), e.balance(t, "client"))

	result, err := e.sessions.End(ctx, session.ID, "client", true)
	require.NoError(t, err)
	assert.True(t, result.Session.ForceEnded)
	assert.Equal(t, int64(1000), result.Session.TotalCharge)
	assert.Equal(t, int64(0), e.balance(t, "client"))
	assert.Equal(t, int64(700), e.balance(t, "reader"))
	e.requireReconciled(t)
}

func TestSessionService_ConcurrentEndsSharingClient(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 1500)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader-a", ChatRate: 1000}, 0)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader-b", ChatRate: 1000}, 0)

	var ids []string
	for _, provider := range []string{"reader-a", "reader-b"} {
		session, err := e.sessions.Start(ctx, StartSessionRequest{
			ClientAccountID:   "client",
			ProviderAccountID: provider,
			SessionType:       models.SessionChat,
		})
		require.NoError(t, err)
		ids = append(ids, session.ID)
	}
	e.clock.Advance(45 * time.Second)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, sessionID := range ids {
		wg.Add(1)
		go func(i int, sessionID string) {
			defer wg.Done()
			_, errs[i] = e.sessions.End(ctx, sessionID, "client", false)
		}(i, sessionID)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, int64(500), e.balance(t, "client"))
	assert.Equal(t, int64(700), e.balance(t, "reader-a")+e.balance(t, "reader-b"))
	e.requireReconciled(t)
}

func TestSessionService_CancelWithoutElapsedTime(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 500)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", ChatRate: 200}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{
		ClientAccountID:   "client",
		ProviderAccountID: "reader",
		SessionType:       models.SessionChat,
	})
	require.NoError(t, err)

	result, err := e.sessions.Cancel(ctx, session.ID, "reader")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, result.Session.Status)
	assert.Equal(t, int64(0), result.Session.TotalCharge)
	assert.NotEmpty(t, result.ChargeEntryID)
	assert.Equal(t, int64(500), e.balance(t, "client"))
	assert.Equal(t, int64(0), e.balance(t, "reader"))
	assert.Equal(t, int64(0), e.balance(t, platformID))
}

func TestSessionService_PromotionalSessionHasNoFee(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 2000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader"}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{
		ClientAccountID:   "client",
		ProviderAccountID: "reader",
		SessionType:       models.SessionChat,
		RatePerMinute:     150,
		Promotional:       true,
	})
	require.NoError(t, err)
	e.clock.Advance(2 * time.Minute)

	result, err := e.sessions.End(ctx, session.ID, "client", false)
	require.NoError(t, err)
	assert.Equal(t, Split{GrossAmount: 300, PlatformFee: 0, NetAmount: 300}, result.Charge)
	assert.Equal(t, int64(300), e.balance(t, "reader"))
	assert.Equal(t, int64(0), e.balance(t, platformID))
}

func TestSessionService_StartRejections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 150)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", ChatRate: 100, CallRate: 500}, 0)

	_, err := e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "client", SessionType: models.SessionChat})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionCall})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionVideo})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionChat})
	require.NoError(t, err)
	_, err = e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionChat})
	assert.ErrorIs(t, err, ErrSessionActive)

	_, err = e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "ghost", SessionType: models.SessionChat, RatePerMinute: 100})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionService_OnlyPartiesMayEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", ChatRate: 100}, 0)

	session, err := e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionChat})
	require.NoError(t, err)

	_, err = e.sessions.End(ctx, session.ID, "stranger", false)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.sessions.Get(ctx, session.ID, "stranger")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSessionService_SweepExhausted(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.openAccount(t, CreateAccountRequest{AccountID: "client"}, 1000)
	e.openAccount(t, CreateAccountRequest{AccountID: "other"}, 5000)
	e.openAccount(t, CreateAccountRequest{AccountID: "reader", ChatRate: 200}, 0)

	exhausted, err := e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "client", ProviderAccountID: "reader", SessionType: models.SessionChat})
	require.NoError(t, err)
	healthy, err := e.sessions.Start(ctx, StartSessionRequest{ClientAccountID: "other", ProviderAccountID: "reader", SessionType: models.SessionChat})
	require.NoError(t, err)

	e.clock.Advance(6 * time.Minute)

	ended, err := e.sessions.SweepExhausted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)

	got, err := e.store.GetSession(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, got.Status)
	assert.True(t, got.ForceEnded)
	assert.Equal(t, int64(1000), got.TotalCharge)

	got, err = e.store.GetSession(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, got.Status)
	e.requireReconciled(t)
}
