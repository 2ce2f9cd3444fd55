package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/soulseer/settlement/internal/config"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

// Posting is a proposed ledger entry. ApplyTx turns postings into completed
// entries and moves the balances they name.
type Posting struct {
	ID                    string
	AccountID             string
	CounterpartyAccountID string
	Kind                  models.EntryKind
	Direction             models.Direction
	Category              models.Category
	GrossAmount           int64
	PlatformFee           int64
	NetAmount             int64
	RelatedEntityID       string
	OriginalEntryID       string
	ExternalReference     string
	Memo                  string
}

func (p Posting) validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("posting %s: missing account", p.Kind)
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("posting: unknown kind %q", p.Kind)
	}
	if p.Direction != models.Credit && p.Direction != models.Debit {
		return fmt.Errorf("posting %s: unknown direction %q", p.Kind, p.Direction)
	}
	if p.GrossAmount < 0 || p.PlatformFee < 0 || p.NetAmount < 0 {
		return fmt.Errorf("%w: negative amount in %s posting", ErrInvalidAmount, p.Kind)
	}
	if p.PlatformFee+p.NetAmount != p.GrossAmount {
		return fmt.Errorf("%w: %s posting fee %d + net %d != gross %d",
			ErrInvariantViolation, p.Kind, p.PlatformFee, p.NetAmount, p.GrossAmount)
	}
	return nil
}

func (p Posting) entry(status models.EntryStatus, now time.Time) models.LedgerEntry {
	entryID := p.ID
	if entryID == "" {
		entryID = id.NewEntryID()
	}
	e := models.LedgerEntry{
		ID:                    entryID,
		AccountID:             p.AccountID,
		CounterpartyAccountID: optional(p.CounterpartyAccountID),
		Kind:                  p.Kind,
		Direction:             p.Direction,
		Category:              p.Category,
		GrossAmount:           p.GrossAmount,
		PlatformFee:           p.PlatformFee,
		NetAmount:             p.NetAmount,
		RelatedEntityID:       p.RelatedEntityID,
		OriginalEntryID:       optional(p.OriginalEntryID),
		Status:                status,
		ExternalReference:     optional(p.ExternalReference),
		Memo:                  p.Memo,
		CreatedAt:             now,
	}
	if status == models.EntryCompleted {
		e.CompletedAt = &now
	}
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// LedgerService is the apply-entry operation of the ledger: every balance
// change in the engine goes through a Batch it hands out.
type LedgerService struct {
	store             store.Store
	cache             *BalanceCache
	events            *EventPublisher
	platformAccountID string
	retryAttempts     uint
	retryInterval     time.Duration
	now               func() time.Time
}

func NewLedgerService(st store.Store, cache *BalanceCache, events *EventPublisher, cfg *config.SettlementConfig) *LedgerService {
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	return &LedgerService{
		store:             st,
		cache:             cache,
		events:            events,
		platformAccountID: cfg.PlatformAccountID,
		retryAttempts:     attempts,
		retryInterval:     cfg.RetryInitialInterval,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// PlatformAccountID is the account credited with platform fees.
func (s *LedgerService) PlatformAccountID() string {
	return s.platformAccountID
}

// Batch is one attempt of an atomic settlement. It is only valid inside the
// function passed to Run.
type Batch struct {
	Tx      store.Tx
	ledger  *LedgerService
	entries []models.LedgerEntry
	touched map[string]models.Account
}

// Run executes fn in a single serializable transaction. Concurrent
// modification conflicts roll the attempt back and retry it with exponential
// backoff; every other error is returned as is. Side effects outside the
// store happen only after commit.
func (s *LedgerService) Run(ctx context.Context, fn func(b *Batch) error) error {
	var committed *Batch
	operation := func() (struct{}, error) {
		b := &Batch{ledger: s, touched: make(map[string]models.Account)}
		err := s.store.RunInTx(ctx, func(tx store.Tx) error {
			b.Tx = tx
			return fn(b)
		})
		if err == nil {
			committed = b
			return struct{}{}, nil
		}
		err = translateStoreError(err)
		if IsRetryable(err) {
			log.Printf("[LEDGER] Concurrent modification, retrying: %v", err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	if s.retryInterval > 0 {
		policy.InitialInterval = s.retryInterval
	}
	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(policy), backoff.WithMaxTries(s.retryAttempts)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}
		return err
	}

	touched := make([]*models.Account, 0, len(committed.touched))
	for _, account := range committed.touched {
		touched = append(touched, &account)
	}
	s.cache.Set(ctx, touched...)
	s.events.Publish(ctx, committed.entries)
	return nil
}

// Apply commits postings atomically in their own transaction.
func (s *LedgerService) Apply(ctx context.Context, postings ...Posting) ([]models.LedgerEntry, error) {
	var committed []models.LedgerEntry
	err := s.Run(ctx, func(b *Batch) error {
		var err error
		committed, err = b.Apply(ctx, postings...)
		return err
	})
	return committed, err
}

// Lock takes row locks on the accounts in ascending id order. Callers lock
// every account a settlement touches up front, before any other account lock.
func (b *Batch) Lock(ctx context.Context, accountIDs ...string) (map[string]*models.Account, error) {
	accounts, err := b.Tx.LockAccounts(ctx, accountIDs...)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return accounts, nil
}

// UpdateAccount writes a locked account outside of an entry, e.g. a reservation change.
func (b *Batch) UpdateAccount(ctx context.Context, account *models.Account) error {
	if err := b.Tx.UpdateAccount(ctx, account); err != nil {
		return translateStoreError(err)
	}
	b.touched[account.ID] = *account
	return nil
}

// Apply validates postings, re-reads the locked balances and persists the
// postings as completed entries together with the new balances. A debit may
// only consume the available balance; otherwise nothing is written and
// ErrInsufficientBalance is returned.
func (b *Batch) Apply(ctx context.Context, postings ...Posting) ([]models.LedgerEntry, error) {
	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		if err := p.validate(); err != nil {
			return nil, err
		}
		ids = append(ids, p.AccountID)
	}

	accounts, err := b.Lock(ctx, ids...)
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]int64, len(accounts))
	for _, p := range postings {
		account := accounts[p.AccountID]
		if account.Status == models.AccountArchived {
			return nil, fmt.Errorf("%w: %s", ErrAccountArchived, account.ID)
		}
		if p.Direction == models.Debit {
			deltas[p.AccountID] -= p.NetAmount
			if account.Available()+deltas[p.AccountID] < 0 {
				return nil, fmt.Errorf("%w: account %s available %d, %s needs %d",
					ErrInsufficientBalance, account.ID, account.Available(), p.Kind, p.NetAmount)
			}
		} else {
			deltas[p.AccountID] += p.NetAmount
		}
	}

	now := b.ledger.now()
	entries := make([]models.LedgerEntry, 0, len(postings))
	for _, p := range postings {
		entry := p.entry(models.EntryCompleted, now)
		if err := b.Tx.InsertEntry(ctx, &entry); err != nil {
			return nil, translateStoreError(fmt.Errorf("insert %s entry: %w", p.Kind, err))
		}
		entries = append(entries, entry)
	}

	for accountID, delta := range deltas {
		if delta == 0 {
			continue
		}
		account := accounts[accountID]
		account.Balance += delta
		if err := b.UpdateAccount(ctx, account); err != nil {
			return nil, err
		}
	}

	b.entries = append(b.entries, entries...)
	return entries, nil
}

// Record persists a non-completed entry inside the batch. Pending and failed
// entries never move a balance.
func (b *Batch) Record(ctx context.Context, status models.EntryStatus, p Posting) (models.LedgerEntry, error) {
	if status == models.EntryCompleted {
		return models.LedgerEntry{}, fmt.Errorf("record: completed entries must go through Apply")
	}
	if err := p.validate(); err != nil {
		return models.LedgerEntry{}, err
	}
	entry := p.entry(status, b.ledger.now())
	if err := b.Tx.InsertEntry(ctx, &entry); err != nil {
		return models.LedgerEntry{}, translateStoreError(err)
	}
	b.entries = append(b.entries, entry)
	return entry, nil
}

// RecordFailed persists postings as failed entries for audit. Balances are
// not touched.
func (s *LedgerService) RecordFailed(ctx context.Context, reason string, postings ...Posting) {
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.now()
		for _, p := range postings {
			entry := p.entry(models.EntryFailed, now)
			entry.ID = id.NewEntryID()
			entry.Memo = strings.TrimSpace(entry.Memo + " " + reason)
			if err := tx.InsertEntry(ctx, &entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[LEDGER] Failed to record failed entries (%s): %v", reason, err)
	}
}

// SettlementPostings builds the payer debit, the payee earning and the
// platform fee credit of one settlement. The fee posting is omitted when the
// fee is zero so that fee-free settlements do not lock the platform account.
func (s *LedgerService) SettlementPostings(debitKind models.EntryKind, payer, payee string, split Split, category models.Category, relatedID, memo string) []Posting {
	postings := []Posting{
		{
			ID:                    id.NewEntryID(),
			AccountID:             payer,
			CounterpartyAccountID: payee,
			Kind:                  debitKind,
			Direction:             models.Debit,
			Category:              category,
			GrossAmount:           split.GrossAmount,
			NetAmount:             split.GrossAmount,
			RelatedEntityID:       relatedID,
			Memo:                  memo,
		},
		{
			ID:                    id.NewEntryID(),
			AccountID:             payee,
			CounterpartyAccountID: payer,
			Kind:                  debitKind.EarningKind(),
			Direction:             models.Credit,
			Category:              category,
			GrossAmount:           split.GrossAmount,
			PlatformFee:           split.PlatformFee,
			NetAmount:             split.NetAmount,
			RelatedEntityID:       relatedID,
			Memo:                  memo,
		},
	}
	if split.PlatformFee > 0 {
		postings = append(postings, Posting{
			ID:                    id.NewEntryID(),
			AccountID:             s.platformAccountID,
			CounterpartyAccountID: payer,
			Kind:                  models.KindPlatformFee,
			Direction:             models.Credit,
			Category:              category,
			GrossAmount:           split.PlatformFee,
			NetAmount:             split.PlatformFee,
			RelatedEntityID:       relatedID,
			Memo:                  memo,
		})
	}
	return postings
}

// SettlementAccounts lists the accounts SettlementPostings will touch.
func (s *LedgerService) SettlementAccounts(payer, payee string, split Split) []string {
	if split.PlatformFee > 0 {
		return []string{payer, payee, s.platformAccountID}
	}
	return []string{payer, payee}
}

// BalanceView is the authoritative balance snapshot returned to callers.
type BalanceView struct {
	AccountID     string               `json:"accountId"`
	Balance       int64                `json:"balance"`
	Reserved      int64                `json:"reserved"`
	Available     int64                `json:"available"`
	Status        models.AccountStatus `json:"status"`
	TotalEarned   int64                `json:"totalEarned"`
	TotalRefunded int64                `json:"totalRefunded"`
	TotalPaidOut  int64                `json:"totalPaidOut"`
	Version       int                  `json:"version"`
}

// GetBalance returns the current balance snapshot of an account, served from
// the cache when possible.
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (*BalanceView, error) {
	account, ok := s.cache.Get(ctx, accountID)
	if !ok {
		var err error
		account, err = s.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, translateStoreError(err)
		}
		s.cache.Set(ctx, account)
	}
	return s.balanceView(ctx, account)
}

// GetAuthoritativeBalance reads the committed row, bypassing the cache. Error
// responses use it so a client never sees a stale balance after a failure.
func (s *LedgerService) GetAuthoritativeBalance(ctx context.Context, accountID string) (*BalanceView, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return s.balanceView(ctx, account)
}

func (s *LedgerService) balanceView(ctx context.Context, account *models.Account) (*BalanceView, error) {
	summary, err := s.store.EarningsSummary(ctx, account.ID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return &BalanceView{
		AccountID:     account.ID,
		Balance:       account.Balance,
		Reserved:      account.Reserved,
		Available:     account.Available(),
		Status:        account.Status,
		TotalEarned:   summary.TotalEarned,
		TotalRefunded: summary.TotalRefunded,
		TotalPaidOut:  summary.TotalPaidOut,
		Version:       account.Version,
	}, nil
}

const defaultHistoryPage = 100

// History returns the account's entries ordered by creation time. The
// sequence is lazy, finite and restartable: each range over it starts again
// from the beginning and fetches pages on demand.
func (s *LedgerService) History(ctx context.Context, accountID string, filter store.HistoryFilter) iter.Seq2[models.LedgerEntry, error] {
	return func(yield func(models.LedgerEntry, error) bool) {
		var cursor *store.Cursor
		for {
			page, err := s.store.ListEntries(ctx, accountID, filter, cursor, defaultHistoryPage)
			if err != nil {
				yield(models.LedgerEntry{}, translateStoreError(err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < defaultHistoryPage {
				return
			}
			last := page[len(page)-1]
			cursor = &store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// HistoryPage returns one page of history and an opaque cursor for the next
// page, empty when the history is exhausted.
func (s *LedgerService) HistoryPage(ctx context.Context, accountID string, filter store.HistoryFilter, cursor string, limit int) ([]models.LedgerEntry, string, error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryPage
	}
	entries, err := s.store.ListEntries(ctx, accountID, filter, after, limit)
	if err != nil {
		return nil, "", translateStoreError(err)
	}
	next := ""
	if len(entries) == limit {
		last := entries[len(entries)-1]
		next = EncodeCursor(store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

func EncodeCursor(c store.Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (*store.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	ts, entryID, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return &store.Cursor{CreatedAt: createdAt, ID: entryID}, nil
}
