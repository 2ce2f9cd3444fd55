// Package store defines the typed repositories of the settlement engine and
// their Postgres and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/soulseer/settlement/internal/models"
)

var (
	ErrNotFound               = errors.New("store: not found")
	ErrConflict               = errors.New("store: conflict")
	ErrConcurrentModification = errors.New("store: concurrent modification")
)

// HistoryFilter narrows a ledger history listing. Zero values match everything.
type HistoryFilter struct {
	Kinds    []models.EntryKind
	Statuses []models.EntryStatus
	From     time.Time
	To       time.Time
}

// Cursor marks the last entry of a history page. Entries are ordered by
// (created_at, id), so the cursor is stable across inserts.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EarningsSummary aggregates an account's completed provider-side entries.
type EarningsSummary struct {
	TotalEarned   int64 `json:"totalEarned" db:"total_earned"`
	TotalRefunded int64 `json:"totalRefunded" db:"total_refunded"`
	TotalPaidOut  int64 `json:"totalPaidOut" db:"total_paid_out"`
}

// Store is the durable state of the engine. Reads outside RunInTx are
// snapshots and must never feed a balance decision.
type Store interface {
	// RunInTx executes fn in one serializable transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccountIDs(ctx context.Context, after string, limit int) ([]string, error)
	EarningsSummary(ctx context.Context, accountID string) (EarningsSummary, error)

	GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID string, filter HistoryFilter, after *Cursor, limit int) ([]models.LedgerEntry, error)
	EntriesByRelated(ctx context.Context, relatedID string) ([]models.LedgerEntry, error)

	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListActiveSessions(ctx context.Context, limit int) ([]models.Session, error)

	GetPayout(ctx context.Context, id string) (*models.PayoutRequest, error)
	GetPayoutByTransferRef(ctx context.Context, ref string) (*models.PayoutRequest, error)
	ListPayoutsByStatus(ctx context.Context, statuses []models.PayoutStatus, limit int) ([]models.PayoutRequest, error)
	ListPayoutsByAccount(ctx context.Context, accountID string, limit int) ([]models.PayoutRequest, error)
	// ListPayoutCandidates returns active accounts with a payout destination,
	// available balance of at least minAvailable, no request for runKey and no
	// payout completed during the UTC day starting at day.
	ListPayoutCandidates(ctx context.Context, minAvailable int64, runKey string, day time.Time, limit int) ([]models.Account, error)

	GetDeposit(ctx context.Context, gatewayRef string) (*models.Deposit, error)

	ListGifts(ctx context.Context, activeOnly bool) ([]models.VirtualGift, error)
	GetGift(ctx context.Context, id string) (*models.VirtualGift, error)
	CreateGift(ctx context.Context, gift *models.VirtualGift) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the write side of the store. Every Lock method takes a row lock that
// is held until the transaction ends.
type Tx interface {
	// LockAccounts locks the given accounts in ascending id order.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	// CreateAccount inserts the account unless it exists; created reports which.
	CreateAccount(ctx context.Context, account *models.Account) (created bool, err error)
	// UpdateAccount writes a locked account and bumps its version. A version
	// mismatch yields ErrConcurrentModification.
	UpdateAccount(ctx context.Context, account *models.Account) error

	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetEntry(ctx context.Context, id string) (*models.LedgerEntry, error)
	EntriesByRelated(ctx context.Context, relatedID string) ([]models.LedgerEntry, error)
	// SumRefunded totals completed refund credits issued against an original entry.
	SumRefunded(ctx context.Context, originalEntryID string) (int64, error)
	// SumCompleted totals the net amounts of an account's completed entries.
	SumCompleted(ctx context.Context, accountID string) (credits, debits int64, err error)

	LockSession(ctx context.Context, id string) (*models.Session, error)
	// InsertSession fails with ErrConflict when the pair already has an active session.
	InsertSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error

	// InsertPayout fails with ErrConflict when the provider already has a request for the run key.
	InsertPayout(ctx context.Context, payout *models.PayoutRequest) error
	LockPayout(ctx context.Context, id string) (*models.PayoutRequest, error)
	UpdatePayout(ctx context.Context, payout *models.PayoutRequest) error

	InsertDeposit(ctx context.Context, deposit *models.Deposit) error
	LockDeposit(ctx context.Context, gatewayRef string) (*models.Deposit, error)
	UpdateDeposit(ctx context.Context, deposit *models.Deposit) error

	// GetIdempotency locks and returns the record, or ErrNotFound.
	GetIdempotency(ctx context.Context, accountID, scope, key string) (*models.IdempotencyRecord, error)
	// InsertIdempotency fails with ErrConflict when the key is taken.
	InsertIdempotency(ctx context.Context, record *models.IdempotencyRecord) error
}
