package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/soulseer/settlement/internal/audit"
	"github.com/soulseer/settlement/internal/id"
	"github.com/soulseer/settlement/internal/models"
	"github.com/soulseer/settlement/internal/store"
)

const giftScope = "gift/send"

// GiftService settles instantaneous transfers: catalog gifts and free-amount
// tips sent during a broadcast.
type GiftService struct {
	ledger   *LedgerService
	store    store.Store
	splitter *SplitCalculator
	idem     *IdempotencyCache
	audit    *audit.Logger
	now      func() time.Time
}

func NewGiftService(ledger *LedgerService, st store.Store, splitter *SplitCalculator, idem *IdempotencyCache, auditLogger *audit.Logger) *GiftService {
	return &GiftService{
		ledger:   ledger,
		store:    st,
		splitter: splitter,
		idem:     idem,
		audit:    auditLogger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SendGiftRequest struct {
	SenderAccountID    string `json:"-"`
	RecipientAccountID string `json:"recipientAccountId" validate:"required,max=64"`
	GiftID             string `json:"giftId,omitempty" validate:"max=64"`
	Amount             int64  `json:"amount" validate:"gte=0"`
	Context            string `json:"context,omitempty" validate:"max=128"`
	IdempotencyKey     string `json:"idempotencyKey" validate:"required,max=128"`
}

type GiftResult struct {
	GiftEventID string             `json:"giftEventId"`
	Entry       models.LedgerEntry `json:"entry"`
	Split       Split              `json:"split"`
	Replayed    bool               `json:"replayed"`
}

// hash identifies the request as the client sent it. Catalog gifts are keyed
// by gift id alone so a later price change cannot break a replay.
func (r SendGiftRequest) hash() string {
	amount := r.Amount
	if r.GiftID != "" {
		amount = 0
	}
	sum := sha256.Sum256([]byte(r.RecipientAccountID + "\x00" + r.GiftID + "\x00" +
		strconv.FormatInt(amount, 10) + "\x00" + r.Context))
	return hex.EncodeToString(sum[:])
}

// SendGift debits the sender, credits the recipient's share and the platform
// fee in one settlement. A repeated key returns the original result; a key
// reused for a different request fails with ErrIdempotencyMismatch.
func (s *GiftService) SendGift(ctx context.Context, req SendGiftRequest) (*GiftResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key required", ErrInvalidAmount)
	}
	if req.SenderAccountID == req.RecipientAccountID {
		return nil, fmt.Errorf("%w: cannot send a gift to yourself", ErrForbidden)
	}

	requestHash := req.hash()
	if result, err := s.lookup(ctx, req, requestHash); err != nil || result != nil {
		return result, err
	}

	amount, category, err := s.resolveAmount(ctx, req)
	if err != nil {
		return nil, err
	}

	split, err := s.splitter.Split(amount, category)
	if err != nil {
		return nil, err
	}

	var result *GiftResult
	var postings []Posting
	err = s.ledger.Run(ctx, func(b *Batch) error {
		result = nil
		record, err := b.Tx.GetIdempotency(ctx, req.SenderAccountID, giftScope, req.IdempotencyKey)
		switch {
		case err == nil:
			if record.RequestHash != requestHash {
				return ErrIdempotencyMismatch
			}
			entry, err := b.Tx.GetEntry(ctx, record.EntryID)
			if err != nil {
				return translateStoreError(err)
			}
			related, err := b.Tx.EntriesByRelated(ctx, entry.RelatedEntityID)
			if err != nil {
				return translateStoreError(err)
			}
			result = giftResult(*entry, related, true)
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return translateStoreError(err)
		}

		eventID := id.NewGiftID()
		postings = s.ledger.SettlementPostings(models.KindGiftPurchase, req.SenderAccountID, req.RecipientAccountID,
			split, category, eventID, req.Context)
		if _, err := b.Lock(ctx, s.ledger.SettlementAccounts(req.SenderAccountID, req.RecipientAccountID, split)...); err != nil {
			return err
		}
		entries, err := b.Apply(ctx, postings...)
		if err != nil {
			return err
		}

		err = b.Tx.InsertIdempotency(ctx, &models.IdempotencyRecord{
			Key:         req.IdempotencyKey,
			AccountID:   req.SenderAccountID,
			Scope:       giftScope,
			RequestHash: requestHash,
			EntryID:     entries[0].ID,
			CreatedAt:   s.now(),
		})
		if errors.Is(err, store.ErrConflict) {
			// Another request with this key committed first; retry to replay it.
			return ErrConcurrentModification
		}
		if err != nil {
			return translateStoreError(err)
		}
		result = &GiftResult{GiftEventID: eventID, Entry: entries[0], Split: split}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) && len(postings) > 0 {
			s.ledger.RecordFailed(ctx, "insufficient balance", postings[0])
		}
		return nil, err
	}

	s.idem.Remember(ctx, req.SenderAccountID, giftScope, req.IdempotencyKey, requestHash, result.Entry.ID)
	if !result.Replayed {
		s.audit.LogSettlement(string(models.KindGiftPurchase), result.GiftEventID, req.SenderAccountID,
			req.RecipientAccountID, split.GrossAmount, split.PlatformFee, split.NetAmount)
		log.Printf("[GIFT] %s %s -> %s: %s (%s)", result.GiftEventID, req.SenderAccountID, req.RecipientAccountID,
			models.FormatAmount(amount), category)
	}
	return result, nil
}

func (s *GiftService) resolveAmount(ctx context.Context, req SendGiftRequest) (int64, models.Category, error) {
	if req.GiftID == "" {
		if req.Amount <= 0 {
			return 0, "", fmt.Errorf("%w: tip amount must be positive", ErrInvalidAmount)
		}
		return req.Amount, models.CategoryTip, nil
	}

	gift, err := s.store.GetGift(ctx, req.GiftID)
	if err != nil {
		return 0, "", translateStoreError(err)
	}
	if !gift.Active {
		return 0, "", fmt.Errorf("%w: gift %s is not available", ErrNotFound, gift.ID)
	}
	if req.Amount != 0 && req.Amount != gift.Price {
		return 0, "", fmt.Errorf("%w: gift %s costs %d", ErrInvalidAmount, gift.ID, gift.Price)
	}
	return gift.Price, models.CategoryGift, nil
}

// lookup returns the settled result for a key already used by the sender, or
// nil when the key is new.
func (s *GiftService) lookup(ctx context.Context, req SendGiftRequest, requestHash string) (*GiftResult, error) {
	hash, entryID, ok := s.idem.Lookup(ctx, req.SenderAccountID, giftScope, req.IdempotencyKey)
	if !ok {
		var record *models.IdempotencyRecord
		err := s.ledger.Run(ctx, func(b *Batch) error {
			var err error
			record, err = b.Tx.GetIdempotency(ctx, req.SenderAccountID, giftScope, req.IdempotencyKey)
			return translateStoreError(err)
		})
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		hash, entryID = record.RequestHash, record.EntryID
	}
	if hash != requestHash {
		return nil, ErrIdempotencyMismatch
	}
	result, err := s.replay(ctx, entryID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if !ok {
		s.idem.Remember(ctx, req.SenderAccountID, giftScope, req.IdempotencyKey, hash, entryID)
	}
	return result, nil
}

func (s *GiftService) replay(ctx context.Context, entryID string) (*GiftResult, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	related, err := s.store.EntriesByRelated(ctx, entry.RelatedEntityID)
	if err != nil {
		return nil, err
	}
	return giftResult(*entry, related, true), nil
}

func giftResult(entry models.LedgerEntry, related []models.LedgerEntry, replayed bool) *GiftResult {
	result := &GiftResult{
		GiftEventID: entry.RelatedEntityID,
		Entry:       entry,
		Split:       Split{GrossAmount: entry.GrossAmount, NetAmount: entry.GrossAmount},
		Replayed:    replayed,
	}
	for _, e := range related {
		if e.Kind == models.KindGiftEarning && e.Status == models.EntryCompleted {
			result.Split = Split{GrossAmount: e.GrossAmount, PlatformFee: e.PlatformFee, NetAmount: e.NetAmount}
		}
	}
	return result
}

// Catalog lists the gifts that can currently be sent.
func (s *GiftService) Catalog(ctx context.Context) ([]models.VirtualGift, error) {
	gifts, err := s.store.ListGifts(ctx, true)
	return gifts, translateStoreError(err)
}

// AddGift registers a catalog item.
func (s *GiftService) AddGift(ctx context.Context, name string, price int64) (*models.VirtualGift, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: gift price must be positive", ErrInvalidAmount)
	}
	gift := &models.VirtualGift{ID: id.NewCatalogGiftID(), Name: name, Price: price, Active: true, CreatedAt: s.now()}
	if err := s.store.CreateGift(ctx, gift); err != nil {
		return nil, translateStoreError(err)
	}
	return gift, nil
}
