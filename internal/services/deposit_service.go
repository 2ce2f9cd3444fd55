package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/config"
	"github.com/soulseer/settlement/internal/gateway"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

// DepositService creates gateway payment intents and credits them once the
// gateway confirms the payment.
type DepositService struct {
	ledger   *LedgerService
	store    store.Store
	gateway  gateway.Client
	qr       *QRService
	audit    *audit.Logger
	currency string
	now      func() time.Time
}

func NewDepositService(ledger *LedgerService, st store.Store, gw gateway.Client, qr *QRService, auditLogger *audit.Logger, cfg *config.SettlementConfig) *DepositService {
	return &DepositService{
		ledger:   ledger,
		store:    st,
		gateway:  gw,
		qr:       qr,
		audit:    auditLogger,
		currency: cfg.Currency,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type DepositResult struct {
	Deposit      *models.Deposit `json:"deposit"`
	ClientSecret string          `json:"clientSecret"`
	CheckoutURL  string          `json:"checkoutUrl"`
	QRCode       string          `json:"qrCode,omitempty"`
}

// CreateDeposit opens a payment intent at the gateway and records it as a
// pending deposit. No money moves until ConfirmDeposit.
func (s *DepositService) CreateDeposit(ctx context.Context, accountID string, amount int64) (*DepositResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if account.Status == models.AccountArchived {
		return nil, ErrAccountArchived
	}

	intent, err := s.gateway.CreateDeposit(ctx, accountID, amount, s.currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	deposit := &models.Deposit{
		ID:         id.NewDepositID(),
		AccountID:  accountID,
		Amount:     amount,
		GatewayRef: intent.GatewayRef,
		Status:     models.DepositPending,
		CreatedAt:  s.now(),
	}
	err = s.ledger.Run(ctx, func(b *Batch) error {
		return translateStoreError(b.Tx.InsertDeposit(ctx, deposit))
	})
	if err != nil {
		return nil, err
	}

	checkoutURL := intent.CheckoutURL
	if checkoutURL == "" {
		checkoutURL = s.qr.CheckoutURL(intent.GatewayRef)
	}
	qrImage, err := s.qr.RenderPNG(checkoutURL)
	if err != nil {
		log.Printf("[DEPOSIT] QR rendering failed for %s: %v", deposit.ID, err)
	}

	log.Printf("[DEPOSIT] Intent %s for %s: %s (%s)", deposit.ID, accountID, models.FormatAmount(amount), intent.GatewayRef)
	return &DepositResult{
		Deposit:      deposit,
		ClientSecret: intent.ClientSecret,
		CheckoutURL:  checkoutURL,
		QRCode:       qrImage,
	}, nil
}

// ConfirmDeposit handles onPaymentConfirmed. Each gateway reference credits
// the account at most once; repeated webhooks return the settled deposit.
func (s *DepositService) ConfirmDeposit(ctx context.Context, event gateway.PaymentConfirmed) (*models.Deposit, error) {
	amount, err := models.ParseAmount(event.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	var deposit *models.Deposit
	credited := false
	err = s.ledger.Run(ctx, func(b *Batch) error {
		credited = false
		d, err := b.Tx.LockDeposit(ctx, event.GatewayRef)
		if err != nil {
			return translateStoreError(err)
		}
		deposit = d
		if d.Status != models.DepositPending {
			return nil
		}

		now := s.now()
		if event.Status == "failed" {
			d.Status = models.DepositFailed
			d.CompletedAt = &now
			return translateStoreError(b.Tx.UpdateDeposit(ctx, d))
		}
		if amount != d.Amount {
			return fmt.Errorf("%w: expected %s, gateway confirmed %s",
				ErrAmountMismatch, models.FormatAmount(d.Amount), models.FormatAmount(amount))
		}

		if _, err := b.Lock(ctx, d.AccountID); err != nil {
			return err
		}
		entries, err := b.Apply(ctx, Posting{
			AccountID:         d.AccountID,
			Kind:              models.KindDeposit,
			Direction:         models.Credit,
			GrossAmount:       d.Amount,
			NetAmount:         d.Amount,
			RelatedEntityID:   d.ID,
			ExternalReference: d.GatewayRef,
			Memo:              "gateway deposit",
		})
		if err != nil {
			return err
		}
		d.Status = models.DepositCompleted
		d.EntryID = &entries[0].ID
		d.CompletedAt = &now
		credited = true
		return translateStoreError(b.Tx.UpdateDeposit(ctx, d))
	})
	if err != nil {
		s.audit.LogError(event.GatewayRef, "", err)
		return nil, err
	}

	if credited {
		s.audit.LogOperation(deposit.ID, deposit.AccountID, "DEPOSIT", fmt.Sprintf("%s via %s", models.FormatAmount(deposit.Amount), deposit.GatewayRef))
		log.Printf("[DEPOSIT] Credited %s to %s", models.FormatAmount(deposit.Amount), deposit.AccountID)
	}
	return deposit, nil
}
