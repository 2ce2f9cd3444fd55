package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
)

// RefundService reverses payer debits, clawing back the counterparty's share
// in proportion to the original split.
type RefundService struct {
	ledger *LedgerService
	audit  *audit.Logger
}

func NewRefundService(ledger *LedgerService, auditLogger *audit.Logger) *RefundService {
	return &RefundService{ledger: ledger, audit: auditLogger}
}

type RefundRequest struct {
	OriginalEntryID string `json:"originalEntryId" validate:"required,max=64"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Reason          string `json:"reason" validate:"required,max=256"`
}

type RefundResult struct {
	RefundID            string             `json:"refundId"`
	Entry               models.LedgerEntry `json:"entry"`
	CounterpartyDebit   int64              `json:"counterpartyDebit"`
	PlatformFeeReversed int64              `json:"platformFeeReversed"`
	RemainingRefundable int64              `json:"remainingRefundable"`
}

// Refund credits the original payer with amount. Cumulative refunds never
// exceed the original gross. The counterparty is debited
// amount * net/gross of the original earning, computed on cumulative totals so
// that repeated partial refunds do not drift; the platform returns the rest.
// When the counterparty's available balance cannot cover its share the refund
// fails with ErrRefundExceedsAvailable and is left for manual reconciliation.
func (s *RefundService) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrInvalidAmount)
	}

	var result *RefundResult
	var attempted []Posting
	var counterpartyID string
	err := s.ledger.Run(ctx, func(b *Batch) error {
		result, attempted, counterpartyID = nil, nil, ""
		original, err := b.Tx.GetEntry(ctx, req.OriginalEntryID)
		if err != nil {
			return translateStoreError(err)
		}
		if !original.Kind.Refundable() || original.Direction != models.Debit || original.Status != models.EntryCompleted {
			return fmt.Errorf("%w: %s entry %s", ErrRefundNotAllowed, original.Kind, original.ID)
		}

		related, err := b.Tx.EntriesByRelated(ctx, original.RelatedEntityID)
		if err != nil {
			return translateStoreError(err)
		}
		var earning *models.LedgerEntry
		for i := range related {
			e := related[i]
			if e.Kind == original.Kind.EarningKind() && e.Status == models.EntryCompleted &&
				e.CounterpartyAccountID != nil && *e.CounterpartyAccountID == original.AccountID {
				earning = &e
				break
			}
		}

		lockIDs := []string{original.AccountID, s.ledger.PlatformAccountID()}
		if earning != nil {
			counterpartyID = earning.AccountID
			lockIDs = append(lockIDs, counterpartyID)
		}
		accounts, err := b.Lock(ctx, lockIDs...)
		if err != nil {
			return err
		}

		refunded, err := b.Tx.SumRefunded(ctx, original.ID)
		if err != nil {
			return translateStoreError(err)
		}
		if refunded+req.Amount > original.GrossAmount {
			return fmt.Errorf("%w: %d already refunded of %d, cannot refund %d more",
				ErrInvalidAmount, refunded, original.GrossAmount, req.Amount)
		}

		var share int64
		if earning != nil {
			share = EarningShare(refunded+req.Amount, earning.NetAmount, earning.GrossAmount) -
				EarningShare(refunded, earning.NetAmount, earning.GrossAmount)
		}
		feeShare := req.Amount - share

		refundID := id.NewRefundID()
		attempted = []Posting{{
			ID:                    id.NewEntryID(),
			AccountID:             original.AccountID,
			CounterpartyAccountID: counterpartyID,
			Kind:                  models.KindRefund,
			Direction:             models.Credit,
			Category:              original.Category,
			GrossAmount:           req.Amount,
			NetAmount:             req.Amount,
			RelatedEntityID:       refundID,
			OriginalEntryID:       original.ID,
			Memo:                  req.Reason,
		}}
		if share > 0 {
			attempted = append(attempted, Posting{
				ID:                    id.NewEntryID(),
				AccountID:             counterpartyID,
				CounterpartyAccountID: original.AccountID,
				Kind:                  models.KindRefund,
				Direction:             models.Debit,
				Category:              original.Category,
				GrossAmount:           share,
				NetAmount:             share,
				RelatedEntityID:       refundID,
				OriginalEntryID:       earning.ID,
				Memo:                  req.Reason,
			})
			if accounts[counterpartyID].Available() < share {
				return fmt.Errorf("%w: counterparty %s available %d, share %d",
					ErrRefundExceedsAvailable, counterpartyID, accounts[counterpartyID].Available(), share)
			}
		}
		if feeShare > 0 {
			attempted = append(attempted, Posting{
				ID:                    id.NewEntryID(),
				AccountID:             s.ledger.PlatformAccountID(),
				CounterpartyAccountID: original.AccountID,
				Kind:                  models.KindPlatformFee,
				Direction:             models.Debit,
				Category:              original.Category,
				GrossAmount:           feeShare,
				NetAmount:             feeShare,
				RelatedEntityID:       refundID,
				OriginalEntryID:       original.ID,
				Memo:                  "fee reversal: " + req.Reason,
			})
		}

		entries, err := b.Apply(ctx, attempted...)
		if err != nil {
			return err
		}
		result = &RefundResult{
			RefundID:            refundID,
			Entry:               entries[0],
			CounterpartyDebit:   share,
			PlatformFeeReversed: feeShare,
			RemainingRefundable: original.GrossAmount - refunded - req.Amount,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRefundExceedsAvailable) {
			s.ledger.RecordFailed(ctx, "refund exceeds available", attempted...)
			s.audit.LogRefund("", req.OriginalEntryID, counterpartyID, req.Amount, "MANUAL_REVIEW", err.Error())
			log.Printf("[REFUND] Flagged for manual reconciliation: %v", err)
		}
		return nil, err
	}

	s.audit.LogRefund(result.RefundID, req.OriginalEntryID, result.Entry.AccountID, req.Amount, "COMPLETED", req.Reason)
	log.Printf("[REFUND] %s against %s: %s (counterparty %s, fee %s)", result.RefundID, req.OriginalEntryID,
		models.FormatAmount(req.Amount), models.FormatAmount(result.CounterpartyDebit), models.FormatAmount(result.PlatformFeeReversed))
	return result, nil
}
