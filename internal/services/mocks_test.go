package services

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/config"
	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateDeposit(ctx context.Context, accountID string, amount int64, currency string) (*gateway.DepositIntent, error) {
	args := m.Called(ctx, accountID, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.DepositIntent), args.Error(1)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Transfer), args.Error(1)
}

func (m *MockGateway) GetTransfer(ctx context.Context, transferRef string) (*gateway.Transfer, error) {
	args := m.Called(ctx, transferRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Transfer), args.Error(1)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const platformID = "platform"

func testSettlementConfig() *config.SettlementConfig {
	return &config.SettlementConfig{
		Currency:             "USD",
		PlatformAccountID:    platformID,
		SessionFeeBps:        3000,
		PromotionalFeeBps:    0,
		GiftFeeBps:           3000,
		TipFeeBps:            3000,
		ProductFeeBps:        3000,
		MinimumPayout:        1500,
		PayoutWorkers:        2,
		RetryAttempts:        5,
		RetryInitialInterval: time.Millisecond,
	}
}

// testEngine wires every service over a MemoryStore with a controllable clock.
type testEngine struct {
	store    *store.MemoryStore
	clock    *testClock
	gateway  *MockGateway
	ledger   *LedgerService
	accounts *AccountService
	sessions *SessionService
	gifts    *GiftService
	refunds  *RefundService
	payouts  *PayoutService
	deposits *DepositService
	auditor  *BalanceAuditor
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	cfg := testSettlementConfig()
	st := store.NewMemoryStore()
	clock := &testClock{now: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)}
	gw := new(MockGateway)
	auditLogger := audit.NewLoggerTo(log.New(io.Discard, "", 0))

	splitter, err := NewSplitCalculator(cfg.FeeBps())
	require.NoError(t, err)

	ledger := NewLedgerService(st, NewBalanceCache(nil, 0), NewEventPublisher(nil), cfg)
	ledger.now = clock.Now
	e := &testEngine{
		store:    st,
		clock:    clock,
		gateway:  gw,
		ledger:   ledger,
		accounts: NewAccountService(ledger),
		sessions: NewSessionService(ledger, st, splitter, auditLogger),
		gifts:    NewGiftService(ledger, st, splitter, NewIdempotencyCache(nil, 0), auditLogger),
		refunds:  NewRefundService(ledger, auditLogger),
		payouts:  NewPayoutService(ledger, st, gw, NewRunLock(nil, 0), auditLogger, cfg),
		deposits: NewDepositService(ledger, st, gw, NewQRService("https://pay.example/checkout"), auditLogger, cfg),
		auditor:  NewBalanceAuditor(ledger, st, auditLogger),
	}
	e.accounts.now = clock.Now
	e.sessions.now = clock.Now
	e.gifts.now = clock.Now
	e.payouts.now = clock.Now
	e.deposits.now = clock.Now

	require.NoError(t, e.accounts.EnsurePlatformAccount(context.Background()))
	return e
}

// openAccount creates an account and funds it with a completed deposit.
func (e *testEngine) openAccount(t *testing.T, req CreateAccountRequest, funds int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := e.accounts.CreateAccount(ctx, req)
	require.NoError(t, err)
	if funds == 0 {
		return
	}
	_, err = e.ledger.Apply(ctx, Posting{
		AccountID:       req.AccountID,
		Kind:            models.KindDeposit,
		Direction:       models.Credit,
		GrossAmount:     funds,
		NetAmount:       funds,
		RelatedEntityID: id.NewDepositID(),
	})
	require.NoError(t, err)
}

func (e *testEngine) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	account, err := e.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (e *testEngine) account(t *testing.T, accountID string) *models.Account {
	t.Helper()
	account, err := e.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account
}

func (e *testEngine) entries(t *testing.T, accountID string, filter store.HistoryFilter) []models.LedgerEntry {
	t.Helper()
	var out []models.LedgerEntry
	for entry, err := range e.ledger.History(context.Background(), accountID, filter) {
		require.NoError(t, err)
		out = append(out, entry)
	}
	return out
}

// requireReconciled asserts balance == completed credits - completed debits
// for every account.
func (e *testEngine) requireReconciled(t *testing.T) {
	t.Helper()
	report, err := e.auditor.Reconcile(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Violations)
}
