package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soulseer/settlement/internal/models"
)

// AccountService manages account lifecycle: active -> archived. Balances are
// never written here.
type AccountService struct {
	ledger *LedgerService
	now    func() time.Time
}

func NewAccountService(ledger *LedgerService) *AccountService {
	return &AccountService{ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

type CreateAccountRequest struct {
	AccountID         string `json:"accountId" validate:"required,max=64"`
	PayoutDestination string `json:"payoutDestination,omitempty" validate:"max=128"`
	ChatRate          int64  `json:"chatRate" validate:"gte=0"`
	CallRate          int64  `json:"callRate" validate:"gte=0"`
	VideoRate         int64  `json:"videoRate" validate:"gte=0"`
}

type UpdateProfileRequest struct {
	PayoutDestination *string `json:"payoutDestination,omitempty" validate:"omitempty,max=128"`
	ChatRate          *int64  `json:"chatRate,omitempty" validate:"omitempty,gte=0"`
	CallRate          *int64  `json:"callRate,omitempty" validate:"omitempty,gte=0"`
	VideoRate         *int64  `json:"videoRate,omitempty" validate:"omitempty,gte=0"`
}

// CreateAccount is called on registration. It is idempotent: an existing
// account is returned unchanged with created=false.
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, bool, error) {
	var account *models.Account
	var created bool
	err := s.ledger.Run(ctx, func(b *Batch) error {
		now := s.now()
		candidate := &models.Account{
			ID:                req.AccountID,
			Status:            models.AccountActive,
			PayoutDestination: req.PayoutDestination,
			ChatRate:          req.ChatRate,
			CallRate:          req.CallRate,
			VideoRate:         req.VideoRate,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		var err error
		created, err = b.Tx.CreateAccount(ctx, candidate)
		if err != nil {
			return translateStoreError(err)
		}
		accounts, err := b.Lock(ctx, req.AccountID)
		if err != nil {
			return err
		}
		account = accounts[req.AccountID]
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Printf("[ACCOUNT] Created %s", account.ID)
	}
	return account, created, nil
}

// UpdateProfile changes the payout destination and per-minute rates.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, req UpdateProfileRequest) (*models.Account, error) {
	var account *models.Account
	err := s.ledger.Run(ctx, func(b *Batch) error {
		accounts, err := b.Lock(ctx, accountID)
		if err != nil {
			return err
		}
		account = accounts[accountID]
		if account.Status == models.AccountArchived {
			return ErrAccountArchived
		}
		if req.PayoutDestination != nil {
			account.PayoutDestination = *req.PayoutDestination
		}
		if req.ChatRate != nil {
			account.ChatRate = *req.ChatRate
		}
		if req.CallRate != nil {
			account.CallRate = *req.CallRate
		}
		if req.VideoRate != nil {
			account.VideoRate = *req.VideoRate
		}
		return b.UpdateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Archive moves an empty account to its terminal archived state.
func (s *AccountService) Archive(ctx context.Context, accountID string) (*models.Account, error) {
	var account *models.Account
	err := s.ledger.Run(ctx, func(b *Batch) error {
		accounts, err := b.Lock(ctx, accountID)
		if err != nil {
			return err
		}
		account = accounts[accountID]
		if account.Status == models.AccountArchived {
			return nil
		}
		if account.Balance != 0 || account.Reserved != 0 {
			return fmt.Errorf("%w: balance %d, reserved %d", ErrAccountNotEmpty, account.Balance, account.Reserved)
		}
		account.Status = models.AccountArchived
		return b.UpdateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[ACCOUNT] Archived %s", accountID)
	return account, nil
}

// EnsurePlatformAccount creates the fee account on startup.
func (s *AccountService) EnsurePlatformAccount(ctx context.Context) error {
	_, _, err := s.CreateAccount(ctx, CreateAccountRequest{AccountID: s.ledger.PlatformAccountID()})
	return err
}
