package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

// SessionService owns the lifecycle of timed sessions: none -> active ->
// completed | cancelled. A session reaches a terminal state only in the same
// transaction that commits its settlement.
type SessionService struct {
	ledger   *LedgerService
	store    store.Store
	splitter *SplitCalculator
	audit    *audit.Logger
	now      func() time.Time
}

func NewSessionService(ledger *LedgerService, st store.Store, splitter *SplitCalculator, auditLogger *audit.Logger) *SessionService {
	return &SessionService{
		ledger:   ledger,
		store:    st,
		splitter: splitter,
		audit:    auditLogger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type StartSessionRequest struct {
	ClientAccountID   string             `json:"-"`
	ProviderAccountID string             `json:"providerAccountId" validate:"required,max=64"`
	SessionType       models.SessionType `json:"sessionType" validate:"required,oneof=chat call video"`
	RatePerMinute     int64              `json:"ratePerMinute" validate:"gte=0"`
	Promotional       bool               `json:"promotional"`
}

type SessionResult struct {
	Session        *models.Session `json:"session"`
	Charge         Split           `json:"charge"`
	ChargeEntryID  string          `json:"chargeEntryId,omitempty"`
	AlreadySettled bool            `json:"alreadySettled"`
}

// Start opens a session when the client can afford at least one minute.
// At most one active session exists per (client, provider) pair.
func (s *SessionService) Start(ctx context.Context, req StartSessionRequest) (*models.Session, error) {
	if req.ClientAccountID == req.ProviderAccountID {
		return nil, fmt.Errorf("%w: client and provider must differ", ErrForbidden)
	}

	var session *models.Session
	err := s.ledger.Run(ctx, func(b *Batch) error {
		accounts, err := b.Lock(ctx, req.ClientAccountID, req.ProviderAccountID)
		if err != nil {
			return err
		}
		client, provider := accounts[req.ClientAccountID], accounts[req.ProviderAccountID]
		if client.Status == models.AccountArchived || provider.Status == models.AccountArchived {
			return ErrAccountArchived
		}

		rate := req.RatePerMinute
		if rate == 0 {
			rate = provider.RateFor(req.SessionType)
		}
		if rate <= 0 {
			return fmt.Errorf("%w: provider has no %s rate", ErrInvalidAmount, req.SessionType)
		}
		if client.Available() < rate {
			return fmt.Errorf("%w: one minute costs %d, available %d", ErrInsufficientBalance, rate, client.Available())
		}

		now := s.now()
		session = &models.Session{
			ID:                id.NewSessionID(),
			ClientAccountID:   req.ClientAccountID,
			ProviderAccountID: req.ProviderAccountID,
			SessionType:       req.SessionType,
			RatePerMinute:     rate,
			Promotional:       req.Promotional,
			Status:            models.SessionActive,
			StartedAt:         now,
			UpdatedAt:         now,
		}
		if err := b.Tx.InsertSession(ctx, session); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrSessionActive
			}
			return translateStoreError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SESSION] Started %s: client=%s provider=%s rate=%d/min", session.ID, session.ClientAccountID, session.ProviderAccountID, session.RatePerMinute)
	return session, nil
}

type endMode struct {
	status models.SessionStatus
	// capAtBalance charges at most the client's available balance instead of
	// failing with ErrInsufficientBalance.
	capAtBalance bool
	// onlyIfExhausted leaves the session active unless its accrued charge has
	// reached the client's available balance.
	onlyIfExhausted bool
}

// End settles and completes a session. Ending a terminal session returns the
// original result without charging again. Without force, a charge above the
// client's available balance fails and the session stays active; with force
// the charge is capped at the available balance.
func (s *SessionService) End(ctx context.Context, sessionID, actorID string, force bool) (*SessionResult, error) {
	return s.settle(ctx, sessionID, actorID, endMode{status: models.SessionCompleted, capAtBalance: force})
}

// Cancel settles elapsed time up to now and cancels the session. The charge
// is always capped at the client's available balance.
func (s *SessionService) Cancel(ctx context.Context, sessionID, actorID string) (*SessionResult, error) {
	return s.settle(ctx, sessionID, actorID, endMode{status: models.SessionCancelled, capAtBalance: true})
}

func (s *SessionService) settle(ctx context.Context, sessionID, actorID string, mode endMode) (*SessionResult, error) {
	var result *SessionResult
	err := s.ledger.Run(ctx, func(b *Batch) error {
		result = nil
		session, err := b.Tx.LockSession(ctx, sessionID)
		if err != nil {
			return translateStoreError(err)
		}
		if actorID != "" && actorID != session.ClientAccountID && actorID != session.ProviderAccountID {
			return ErrForbidden
		}
		if session.Status.Terminal() {
			result, err = s.existingResult(ctx, b.Tx, session)
			return err
		}

		accounts, err := b.Lock(ctx, session.ClientAccountID, session.ProviderAccountID, s.ledger.PlatformAccountID())
		if err != nil {
			return err
		}
		client := accounts[session.ClientAccountID]

		endedAt := s.now()
		minutes := models.BillableMinutes(session.StartedAt, endedAt)
		charge := minutes * session.RatePerMinute
		available := client.Available()

		if mode.onlyIfExhausted && charge < available {
			return nil
		}
		forceEnded := false
		if charge > available {
			if !mode.capAtBalance {
				return fmt.Errorf("%w: session charge %d, available %d", ErrInsufficientBalance, charge, available)
			}
			charge = available
			forceEnded = true
		}

		split, err := s.splitter.Split(charge, session.Category())
		if err != nil {
			return err
		}

		var postings []Posting
		if charge == 0 {
			postings = []Posting{{
				ID:                    id.NewEntryID(),
				AccountID:             session.ClientAccountID,
				CounterpartyAccountID: session.ProviderAccountID,
				Kind:                  models.KindSessionCharge,
				Direction:             models.Debit,
				Category:              session.Category(),
				RelatedEntityID:       session.ID,
				Memo:                  "zero-charge session",
			}}
		} else {
			postings = s.ledger.SettlementPostings(models.KindSessionCharge, session.ClientAccountID,
				session.ProviderAccountID, split, session.Category(), session.ID,
				fmt.Sprintf("%s session, %d min at %d", session.SessionType, minutes, session.RatePerMinute))
		}
		entries, err := b.Apply(ctx, postings...)
		if err != nil {
			return err
		}

		session.Status = mode.status
		session.EndedAt = &endedAt
		session.DurationMinutes = minutes
		session.TotalCharge = charge
		session.ForceEnded = forceEnded
		session.UpdatedAt = endedAt
		if err := b.Tx.UpdateSession(ctx, session); err != nil {
			return translateStoreError(err)
		}

		result = &SessionResult{Session: session, Charge: split, ChargeEntryID: entries[0].ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if !result.AlreadySettled {
		sess := result.Session
		s.audit.LogSettlement(string(models.KindSessionCharge), sess.ID, sess.ClientAccountID, sess.ProviderAccountID,
			result.Charge.GrossAmount, result.Charge.PlatformFee, result.Charge.NetAmount)
		log.Printf("[SESSION] %s %s: %d min, charge %s (fee %s, net %s), forced=%t",
			sess.Status, sess.ID, sess.DurationMinutes, models.FormatAmount(sess.TotalCharge),
			models.FormatAmount(result.Charge.PlatformFee), models.FormatAmount(result.Charge.NetAmount), sess.ForceEnded)
	}
	return result, nil
}

// existingResult rebuilds the settlement result of a terminal session from its entries.
func (s *SessionService) existingResult(ctx context.Context, tx store.Tx, session *models.Session) (*SessionResult, error) {
	entries, err := tx.EntriesByRelated(ctx, session.ID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	result := &SessionResult{
		Session:        session,
		Charge:         Split{GrossAmount: session.TotalCharge, NetAmount: session.TotalCharge},
		AlreadySettled: true,
	}
	for _, e := range entries {
		if e.Status != models.EntryCompleted {
			continue
		}
		switch e.Kind {
		case models.KindSessionCharge:
			result.ChargeEntryID = e.ID
		case models.KindSessionEarning:
			result.Charge = Split{GrossAmount: e.GrossAmount, PlatformFee: e.PlatformFee, NetAmount: e.NetAmount}
		}
	}
	return result, nil
}

// Get returns a session visible to one of its parties.
func (s *SessionService) Get(ctx context.Context, sessionID, actorID string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if actorID != session.ClientAccountID && actorID != session.ProviderAccountID {
		return nil, ErrForbidden
	}
	return session, nil
}

// SweepExhausted force-ends active sessions whose accrued charge has reached
// the client's available balance. It returns the number of sessions ended.
func (s *SessionService) SweepExhausted(ctx context.Context) (int, error) {
	sessions, err := s.store.ListActiveSessions(ctx, 500)
	if err != nil {
		return 0, translateStoreError(err)
	}

	ended := 0
	now := s.now()
	for _, session := range sessions {
		client, err := s.store.GetAccount(ctx, session.ClientAccountID)
		if err != nil {
			log.Printf("[WATCHDOG] Cannot read client %s for session %s: %v", session.ClientAccountID, session.ID, err)
			continue
		}
		// Snapshot pre-check; settle re-checks under the row lock.
		if models.BillableMinutes(session.StartedAt, now)*session.RatePerMinute < client.Available() {
			continue
		}
		result, err := s.settle(ctx, session.ID, "", endMode{
			status:          models.SessionCompleted,
			capAtBalance:    true,
			onlyIfExhausted: true,
		})
		if err != nil {
			log.Printf("[WATCHDOG] Failed to force-end session %s: %v", session.ID, err)
			continue
		}
		if result != nil && !result.AlreadySettled {
			ended++
		}
	}
	return ended, nil
}
