package services

import (
	"context"
	"fmt"
	"log"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

// BalanceAuditor reconciles every stored balance with the ledger:
// balance == sum(completed credits) - sum(completed debits). A mismatch puts
// the account on payout hold until an operator releases it.
type BalanceAuditor struct {
	ledger *LedgerService
	store  store.Store
	audit  *audit.Logger
}

func NewBalanceAuditor(ledger *LedgerService, st store.Store, auditLogger *audit.Logger) *BalanceAuditor {
	return &BalanceAuditor{ledger: ledger, store: st, audit: auditLogger}
}

type Violation struct {
	AccountID   string `json:"accountId"`
	Balance     int64  `json:"balance"`
	LedgerTotal int64  `json:"ledgerTotal"`
}

type AuditReport struct {
	Checked    int         `json:"checked"`
	Violations []Violation `json:"violations"`
}

// Reconcile checks all accounts page by page.
func (a *BalanceAuditor) Reconcile(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{Violations: []Violation{}}
	after := ""
	for {
		ids, err := a.store.ListAccountIDs(ctx, after, 200)
		if err != nil {
			return report, translateStoreError(err)
		}
		for _, accountID := range ids {
			violation, err := a.CheckAccount(ctx, accountID)
			if err != nil {
				log.Printf("[AUDITOR] Check of %s failed: %v", accountID, err)
				continue
			}
			report.Checked++
			if violation != nil {
				report.Violations = append(report.Violations, *violation)
			}
		}
		if len(ids) < 200 {
			break
		}
		after = ids[len(ids)-1]
	}
	log.Printf("[AUDITOR] Checked %d accounts, %d violations", report.Checked, len(report.Violations))
	return report, nil
}

// CheckAccount compares one account under its row lock.
func (a *BalanceAuditor) CheckAccount(ctx context.Context, accountID string) (*Violation, error) {
	var violation *Violation
	held := false
	err := a.ledger.Run(ctx, func(b *Batch) error {
		violation, held = nil, false
		accounts, err := b.Lock(ctx, accountID)
		if err != nil {
			return err
		}
		account := accounts[accountID]
		total, err := ledgerTotal(ctx, b.Tx, accountID)
		if err != nil {
			return err
		}
		if total == account.Balance {
			return nil
		}
		violation = &Violation{AccountID: accountID, Balance: account.Balance, LedgerTotal: total}
		if account.Status == models.AccountActive {
			account.Status = models.AccountPayoutHold
			held = true
			return b.UpdateAccount(ctx, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if violation != nil {
		a.audit.LogInvariantViolation(accountID, violation.Balance, violation.LedgerTotal)
		if held {
			log.Printf("[AUDITOR] %v: %s balance %d, ledger %d; payouts halted", ErrInvariantViolation, accountID, violation.Balance, violation.LedgerTotal)
		}
	}
	return violation, nil
}

// ReleaseHold lifts a payout hold once the account reconciles again.
func (a *BalanceAuditor) ReleaseHold(ctx context.Context, accountID string) (*models.Account, error) {
	var released *models.Account
	err := a.ledger.Run(ctx, func(b *Batch) error {
		accounts, err := b.Lock(ctx, accountID)
		if err != nil {
			return err
		}
		account := accounts[accountID]
		if account.Status != models.AccountPayoutHold {
			released = account
			return nil
		}
		total, err := ledgerTotal(ctx, b.Tx, accountID)
		if err != nil {
			return err
		}
		if total != account.Balance {
			return fmt.Errorf("%w: %s balance %d, ledger %d", ErrInvariantViolation, accountID, account.Balance, total)
		}
		account.Status = models.AccountActive
		released = account
		return b.UpdateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	a.audit.LogOperation(accountID, accountID, "PAYOUT_HOLD_RELEASED", "balance reconciled")
	return released, nil
}

func ledgerTotal(ctx context.Context, tx store.Tx, accountID string) (int64, error) {
	credits, debits, err := tx.SumCompleted(ctx, accountID)
	if err != nil {
		return 0, translateStoreError(err)
	}
	return credits - debits, nil
}
