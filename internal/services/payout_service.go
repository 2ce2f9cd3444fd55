package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/config"
	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
	"github.com/soulseer/settlement/internal/worker"
)

var errAlreadyScheduled = errors.New("payout already scheduled for run")

// PayoutService sweeps provider balances into external transfers. Funds are
// reserved when a request is created and only debited once the gateway
// confirms the transfer.
type PayoutService struct {
	ledger   *LedgerService
	store    store.Store
	gateway  gateway.Client
	runLock  *RunLock
	audit    *audit.Logger
	minimum  int64
	workers  int
	currency string
	owner    string
	now      func() time.Time
}

func NewPayoutService(ledger *LedgerService, st store.Store, gw gateway.Client, runLock *RunLock, auditLogger *audit.Logger, cfg *config.SettlementConfig) *PayoutService {
	return &PayoutService{
		ledger:   ledger,
		store:    st,
		gateway:  gw,
		runLock:  runLock,
		audit:    auditLogger,
		minimum:  cfg.MinimumPayout,
		workers:  cfg.PayoutWorkers,
		currency: cfg.Currency,
		owner:    uuid.New().String(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunKey identifies the daily batch a scheduled request belongs to.
func RunKey(runDate time.Time) string {
	return runDate.UTC().Format("2006-01-02")
}

// RequestPayout reserves amount (the whole available balance when zero) for
// an on-demand payout. The request is picked up by the next batch run.
func (s *PayoutService) RequestPayout(ctx context.Context, accountID string, amount int64) (*models.PayoutRequest, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: negative payout", ErrInvalidAmount)
	}
	var payout *models.PayoutRequest
	err := s.ledger.Run(ctx, func(b *Batch) error {
		var err error
		payout, err = s.reserve(ctx, b, accountID, amount, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit.LogPayout(payout.ID, accountID, payout.Amount, string(models.PayoutPending), "requested")
	log.Printf("[PAYOUT] Requested %s for %s: %s", payout.ID, accountID, models.FormatAmount(payout.Amount))
	return payout, nil
}

// reserve moves amount of the locked account's available balance into its
// reservation and inserts a pending request with a pending payout_request entry.
func (s *PayoutService) reserve(ctx context.Context, b *Batch, accountID string, amount int64, runKey *string) (*models.PayoutRequest, error) {
	accounts, err := b.Lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account := accounts[accountID]
	switch account.Status {
	case models.AccountPayoutHold:
		return nil, ErrPayoutHold
	case models.AccountArchived:
		return nil, ErrAccountArchived
	}
	if account.PayoutDestination == "" {
		return nil, ErrNoPayoutDestination
	}
	if amount == 0 {
		amount = account.Available()
	}
	if amount < s.minimum {
		return nil, fmt.Errorf("%w: %s < %s", ErrBelowThreshold, models.FormatAmount(amount), models.FormatAmount(s.minimum))
	}
	if account.Available() < amount {
		return nil, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientBalance, account.Available(), amount)
	}

	now := s.now()
	payout := &models.PayoutRequest{
		ID:                id.NewPayoutID(),
		ProviderAccountID: accountID,
		Amount:            amount,
		Status:            models.PayoutPending,
		RunKey:            runKey,
		Destination:       account.PayoutDestination,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := b.Tx.InsertPayout(ctx, payout); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errAlreadyScheduled
		}
		return nil, translateStoreError(err)
	}

	account.Reserved += amount
	if err := b.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	_, err = b.Record(ctx, models.EntryPending, Posting{
		AccountID:       accountID,
		Kind:            models.KindPayoutRequest,
		Direction:       models.Debit,
		GrossAmount:     amount,
		NetAmount:       amount,
		RelatedEntityID: payout.ID,
		Memo:            "payout to " + payout.Destination,
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

type BatchReport struct {
	RunKey     string `json:"runKey"`
	Skipped    bool   `json:"skipped"`
	Created    int    `json:"created"`
	Resumed    int    `json:"resumed"`
	Completed  int64  `json:"completed"`
	Processing int64  `json:"processing"`
	Deferred   int64  `json:"deferred"`
	Held       int64  `json:"held"`
	Failed     int64  `json:"failed"`
}

type payoutOutcome int

const (
	outcomeNone payoutOutcome = iota
	outcomeCompleted
	outcomeProcessing
	outcomeDeferred
	outcomeHeld
	outcomeFailed
)

// RunBatch processes the payout run for runDate. Open requests from earlier
// runs are resumed first, then every eligible provider without a request for
// this run key gets one. Running the same day twice creates nothing new for
// providers already handled.
func (s *PayoutService) RunBatch(ctx context.Context, runDate time.Time) (*BatchReport, error) {
	report := &BatchReport{RunKey: RunKey(runDate)}
	lockName := "payout:run:" + report.RunKey

	acquired, err := s.runLock.Acquire(ctx, lockName, s.owner)
	if err != nil {
		log.Printf("[PAYOUT] Run lock unavailable, relying on run-key uniqueness: %v", err)
	} else if !acquired {
		log.Printf("[PAYOUT] Run %s already in progress elsewhere", report.RunKey)
		report.Skipped = true
		return report, nil
	} else {
		defer s.runLock.Release(context.WithoutCancel(ctx), lockName)
	}

	open, err := s.store.ListPayoutsByStatus(ctx, []models.PayoutStatus{models.PayoutPending, models.PayoutProcessing}, 10000)
	if err != nil {
		return nil, translateStoreError(err)
	}
	queue := make([]string, 0, len(open))
	for _, p := range open {
		queue = append(queue, p.ID)
	}
	report.Resumed = len(open)

	candidates, err := s.store.ListPayoutCandidates(ctx, s.minimum, report.RunKey, runDate, 10000)
	if err != nil {
		return nil, translateStoreError(err)
	}
	runKey := report.RunKey
	for _, account := range candidates {
		var payout *models.PayoutRequest
		err := s.ledger.Run(ctx, func(b *Batch) error {
			var err error
			payout, err = s.reserve(ctx, b, account.ID, 0, &runKey)
			return err
		})
		switch {
		case err == nil:
			queue = append(queue, payout.ID)
			report.Created++
			s.audit.LogPayout(payout.ID, account.ID, payout.Amount, string(models.PayoutPending), "scheduled "+runKey)
		case errors.Is(err, errAlreadyScheduled), errors.Is(err, ErrBelowThreshold),
			errors.Is(err, ErrPayoutHold), errors.Is(err, ErrNoPayoutDestination):
			log.Printf("[PAYOUT] Skipping %s for run %s: %v", account.ID, runKey, err)
		default:
			log.Printf("[PAYOUT] Failed to schedule %s for run %s: %v", account.ID, runKey, err)
		}
	}

	pool := worker.NewPool(len(queue), func(ctx context.Context, job worker.Job[string]) error {
		outcome, err := s.process(ctx, job.Payload)
		switch outcome {
		case outcomeCompleted:
			atomic.AddInt64(&report.Completed, 1)
		case outcomeProcessing:
			atomic.AddInt64(&report.Processing, 1)
		case outcomeDeferred:
			atomic.AddInt64(&report.Deferred, 1)
		case outcomeHeld:
			atomic.AddInt64(&report.Held, 1)
		case outcomeFailed:
			atomic.AddInt64(&report.Failed, 1)
		}
		return err
	})
	pool.Start(ctx, s.workers)
	for _, payoutID := range queue {
		if !pool.Submit(ctx, worker.Job[string]{Key: payoutID, Payload: payoutID}) {
			break
		}
	}
	pool.Shutdown()

	log.Printf("[PAYOUT] Run %s: created=%d resumed=%d completed=%d processing=%d deferred=%d held=%d failed=%d",
		report.RunKey, report.Created, report.Resumed, report.Completed, report.Processing, report.Deferred, report.Held, report.Failed)
	return report, nil
}

// process drives one request through the gateway. The request id is the
// gateway idempotency key, so resuming a request that was processing when the
// process stopped cannot create a second transfer.
func (s *PayoutService) process(ctx context.Context, payoutID string) (payoutOutcome, error) {
	var payout *models.PayoutRequest
	held := false
	err := s.ledger.Run(ctx, func(b *Batch) error {
		held = false
		p, err := b.Tx.LockPayout(ctx, payoutID)
		if err != nil {
			return translateStoreError(err)
		}
		payout = p
		// A transfer already accepted by the gateway can only be observed.
		// Anything not yet submitted waits while the account is held.
		if p.Status == models.PayoutPending ||
			(p.Status == models.PayoutProcessing && p.ExternalTransferReference == nil) {
			accounts, err := b.Lock(ctx, p.ProviderAccountID)
			if err != nil {
				return err
			}
			if accounts[p.ProviderAccountID].Status == models.AccountPayoutHold {
				held = true
				return nil
			}
		}
		if p.Status == models.PayoutPending {
			p.Status = models.PayoutProcessing
			p.Attempts++
			p.UpdatedAt = s.now()
			return translateStoreError(b.Tx.UpdatePayout(ctx, p))
		}
		return nil
	})
	if err != nil {
		return outcomeNone, err
	}
	if held {
		log.Printf("[PAYOUT] Holding %s: account %s is on payout hold", payout.ID, payout.ProviderAccountID)
		return outcomeHeld, nil
	}
	if payout.Status != models.PayoutProcessing {
		return outcomeNone, nil
	}

	var transfer *gateway.Transfer
	if payout.ExternalTransferReference != nil {
		transfer, err = s.gateway.GetTransfer(ctx, *payout.ExternalTransferReference)
	} else {
		transfer, err = s.gateway.CreateTransfer(ctx, gateway.TransferRequest{
			IdempotencyKey: payout.ID,
			AccountID:      payout.ProviderAccountID,
			Destination:    payout.Destination,
			Amount:         payout.Amount,
			Currency:       s.currency,
		})
	}

	switch {
	case errors.Is(err, gateway.ErrRejected):
		if err := s.fail(ctx, payout.ID, err.Error()); err != nil {
			return outcomeNone, err
		}
		return outcomeFailed, nil
	case err != nil:
		s.audit.LogError(payout.ID, payout.ProviderAccountID, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
		if err := s.deferPayout(ctx, payout.ID); err != nil {
			return outcomeNone, err
		}
		return outcomeDeferred, nil
	}

	switch transfer.Status {
	case gateway.TransferCompleted:
		if err := s.complete(ctx, payout.ID, transfer.TransferRef); err != nil {
			return outcomeNone, err
		}
		return outcomeCompleted, nil
	case gateway.TransferFailed:
		if err := s.fail(ctx, payout.ID, "transfer failed: "+transfer.Reason); err != nil {
			return outcomeNone, err
		}
		return outcomeFailed, nil
	}

	err = s.ledger.Run(ctx, func(b *Batch) error {
		p, err := b.Tx.LockPayout(ctx, payout.ID)
		if err != nil {
			return translateStoreError(err)
		}
		if p.Status != models.PayoutProcessing || p.ExternalTransferReference != nil {
			return nil
		}
		p.ExternalTransferReference = &transfer.TransferRef
		p.UpdatedAt = s.now()
		return translateStoreError(b.Tx.UpdatePayout(ctx, p))
	})
	if err != nil {
		return outcomeNone, err
	}
	return outcomeProcessing, nil
}

// deferPayout returns a processing request to pending after a transient gateway
// failure so that the next run retries it.
func (s *PayoutService) deferPayout(ctx context.Context, payoutID string) error {
	return s.ledger.Run(ctx, func(b *Batch) error {
		p, err := b.Tx.LockPayout(ctx, payoutID)
		if err != nil {
			return translateStoreError(err)
		}
		if p.Status != models.PayoutProcessing {
			return nil
		}
		p.Status = models.PayoutPending
		p.UpdatedAt = s.now()
		return translateStoreError(b.Tx.UpdatePayout(ctx, p))
	})
}

// complete releases the reservation and debits the transferred amount.
// Completing an already completed request is a no-op.
func (s *PayoutService) complete(ctx context.Context, payoutID, transferRef string) error {
	var completed *models.PayoutRequest
	err := s.ledger.Run(ctx, func(b *Batch) error {
		completed = nil
		p, err := b.Tx.LockPayout(ctx, payoutID)
		if err != nil {
			return translateStoreError(err)
		}
		switch p.Status {
		case models.PayoutCompleted:
			return nil
		case models.PayoutFailed:
			return fmt.Errorf("%w: payout %s confirmed after it failed", ErrInvariantViolation, p.ID)
		}

		accounts, err := b.Lock(ctx, p.ProviderAccountID)
		if err != nil {
			return err
		}
		account := accounts[p.ProviderAccountID]
		account.Reserved -= p.Amount
		if account.Reserved < 0 {
			return fmt.Errorf("%w: reservation of %s below zero", ErrInvariantViolation, account.ID)
		}
		if err := b.UpdateAccount(ctx, account); err != nil {
			return err
		}
		_, err = b.Apply(ctx, Posting{
			AccountID:         p.ProviderAccountID,
			Kind:              models.KindPayoutCompleted,
			Direction:         models.Debit,
			GrossAmount:       p.Amount,
			NetAmount:         p.Amount,
			RelatedEntityID:   p.ID,
			ExternalReference: transferRef,
			Memo:              "payout to " + p.Destination,
		})
		if err != nil {
			return err
		}

		now := s.now()
		p.Status = models.PayoutCompleted
		p.ExternalTransferReference = &transferRef
		p.UpdatedAt = now
		p.CompletedAt = &now
		if err := b.Tx.UpdatePayout(ctx, p); err != nil {
			return translateStoreError(err)
		}
		completed = p
		return nil
	})
	if err != nil {
		s.audit.LogError(payoutID, "", err)
		return err
	}
	if completed != nil {
		s.audit.LogPayout(completed.ID, completed.ProviderAccountID, completed.Amount, string(models.PayoutCompleted), transferRef)
		log.Printf("[PAYOUT] Completed %s: %s to %s", completed.ID, models.FormatAmount(completed.Amount), completed.Destination)
	}
	return nil
}

// fail releases the reservation without touching the balance.
func (s *PayoutService) fail(ctx context.Context, payoutID, reason string) error {
	var failed *models.PayoutRequest
	err := s.ledger.Run(ctx, func(b *Batch) error {
		failed = nil
		p, err := b.Tx.LockPayout(ctx, payoutID)
		if err != nil {
			return translateStoreError(err)
		}
		if !p.Status.Open() {
			return nil
		}
		accounts, err := b.Lock(ctx, p.ProviderAccountID)
		if err != nil {
			return err
		}
		account := accounts[p.ProviderAccountID]
		account.Reserved -= p.Amount
		if account.Reserved < 0 {
			return fmt.Errorf("%w: reservation of %s below zero", ErrInvariantViolation, account.ID)
		}
		if err := b.UpdateAccount(ctx, account); err != nil {
			return err
		}
		_, err = b.Record(ctx, models.EntryFailed, Posting{
			AccountID:       p.ProviderAccountID,
			Kind:            models.KindPayoutRequest,
			Direction:       models.Debit,
			GrossAmount:     p.Amount,
			NetAmount:       p.Amount,
			RelatedEntityID: p.ID,
			Memo:            reason,
		})
		if err != nil {
			return err
		}
		p.Status = models.PayoutFailed
		p.FailureReason = &reason
		p.UpdatedAt = s.now()
		if err := b.Tx.UpdatePayout(ctx, p); err != nil {
			return translateStoreError(err)
		}
		failed = p
		return nil
	})
	if err != nil {
		return err
	}
	if failed != nil {
		s.audit.LogPayout(failed.ID, failed.ProviderAccountID, failed.Amount, string(models.PayoutFailed), reason)
		log.Printf("[PAYOUT] Failed %s: %s", failed.ID, reason)
	}
	return nil
}

// HandleTransferEvent applies onTransferCompleted / onTransferFailed. A
// failure reported after completion (a returned transfer) credits the amount
// back with an adjustment entry.
func (s *PayoutService) HandleTransferEvent(ctx context.Context, event gateway.TransferEvent) error {
	payout, err := s.store.GetPayoutByTransferRef(ctx, event.TransferRef)
	if err != nil {
		return translateStoreError(err)
	}

	switch event.Status {
	case gateway.TransferCompleted:
		return s.complete(ctx, payout.ID, event.TransferRef)
	case gateway.TransferFailed:
		if payout.Status == models.PayoutCompleted {
			return s.returnCompleted(ctx, payout.ID, event.Reason)
		}
		return s.fail(ctx, payout.ID, "transfer failed: "+event.Reason)
	}
	return fmt.Errorf("%w: unknown transfer status %q", ErrInvalidAmount, event.Status)
}

func (s *PayoutService) returnCompleted(ctx context.Context, payoutID, reason string) error {
	var returned *models.PayoutRequest
	err := s.ledger.Run(ctx, func(b *Batch) error {
		returned = nil
		p, err := b.Tx.LockPayout(ctx, payoutID)
		if err != nil {
			return translateStoreError(err)
		}
		if p.Status != models.PayoutCompleted {
			return nil
		}
		if _, err := b.Lock(ctx, p.ProviderAccountID); err != nil {
			return err
		}
		_, err = b.Apply(ctx, Posting{
			AccountID:         p.ProviderAccountID,
			Kind:              models.KindAdjustment,
			Direction:         models.Credit,
			GrossAmount:       p.Amount,
			NetAmount:         p.Amount,
			RelatedEntityID:   p.ID,
			ExternalReference: derefOr(p.ExternalTransferReference, ""),
			Memo:              "returned transfer: " + reason,
		})
		if err != nil {
			return err
		}
		msg := "returned after completion: " + reason
		p.Status = models.PayoutFailed
		p.FailureReason = &msg
		p.UpdatedAt = s.now()
		if err := b.Tx.UpdatePayout(ctx, p); err != nil {
			return translateStoreError(err)
		}
		returned = p
		return nil
	})
	if err != nil {
		return err
	}
	if returned != nil {
		s.audit.LogPayout(returned.ID, returned.ProviderAccountID, returned.Amount, "RETURNED", reason)
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// ListPayouts returns an account's most recent payout requests.
func (s *PayoutService) ListPayouts(ctx context.Context, accountID string, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	payouts, err := s.store.ListPayoutsByAccount(ctx, accountID, limit)
	return payouts, translateStoreError(err)
}
