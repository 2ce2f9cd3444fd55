package models

import (
	"time"
)

// EntryKind is the closed set of monetary event kinds recorded in the ledger.
type EntryKind string

const (
	KindDeposit         EntryKind = "deposit"
	KindSessionCharge   EntryKind = "session_charge"
	KindSessionEarning  EntryKind = "session_earning"
	KindGiftPurchase    EntryKind = "gift_purchase"
	KindGiftEarning     EntryKind = "gift_earning"
	KindPayoutRequest   EntryKind = "payout_request"
	KindPayoutCompleted EntryKind = "payout_completed"
	KindRefund          EntryKind = "refund"
	KindPlatformFee     EntryKind = "platform_fee"
	KindAdjustment      EntryKind = "adjustment"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindDeposit, KindSessionCharge, KindSessionEarning, KindGiftPurchase, KindGiftEarning,
		KindPayoutRequest, KindPayoutCompleted, KindRefund, KindPlatformFee, KindAdjustment:
		return true
	}
	return false
}

// Refundable reports whether entries of this kind are payer debits a refund may reverse.
func (k EntryKind) Refundable() bool {
	return k == KindSessionCharge || k == KindGiftPurchase
}

// EarningKind returns the counterparty earning kind paired with a payer debit kind.
func (k EntryKind) EarningKind() EntryKind {
	switch k {
	case KindSessionCharge:
		return KindSessionEarning
	case KindGiftPurchase:
		return KindGiftEarning
	}
	return ""
}

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
	EntryReversed  EntryStatus = "reversed"
)

// Direction states whether an entry adds to or subtracts from its account balance.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// LedgerEntry is an immutable monetary event. Amounts are in the currency's minor unit.
type LedgerEntry struct {
	ID                    string      `json:"id" db:"id"`
	AccountID             string      `json:"accountId" db:"account_id"`
	CounterpartyAccountID *string     `json:"counterpartyAccountId,omitempty" db:"counterparty_account_id"`
	Kind                  EntryKind   `json:"kind" db:"kind"`
	Direction             Direction   `json:"direction" db:"direction"`
	Category              Category    `json:"category,omitempty" db:"category"`
	GrossAmount           int64       `json:"grossAmount" db:"gross_amount"`
	PlatformFee           int64       `json:"platformFee" db:"platform_fee"`
	NetAmount             int64       `json:"netAmount" db:"net_amount"`
	RelatedEntityID       string      `json:"relatedEntityId,omitempty" db:"related_entity_id"`
	OriginalEntryID       *string     `json:"originalEntryId,omitempty" db:"original_entry_id"`
	Status                EntryStatus `json:"status" db:"status"`
	ExternalReference     *string     `json:"externalReference,omitempty" db:"external_reference"`
	Memo                  string      `json:"memo,omitempty" db:"memo"`
	CreatedAt             time.Time   `json:"createdAt" db:"created_at"`
	CompletedAt           *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
}

// Signed returns the entry's effect on its account balance.
func (e LedgerEntry) Signed() int64 {
	if e.Direction == Debit {
		return -e.NetAmount
	}
	return e.NetAmount
}

type AccountStatus string

const (
	AccountActive     AccountStatus = "active"
	AccountPayoutHold AccountStatus = "payout_hold"
	AccountArchived   AccountStatus = "archived"
)

type Account struct {
	ID                string        `json:"id" db:"id"`
	Balance           int64         `json:"balance" db:"balance"`
	Reserved          int64         `json:"reserved" db:"reserved"` // held by open payout requests
	Version           int           `json:"version" db:"version"`   // for optimistic locking
	Status            AccountStatus `json:"status" db:"status"`
	PayoutDestination string        `json:"payoutDestination,omitempty" db:"payout_destination"`
	ChatRate          int64         `json:"chatRate" db:"chat_rate"`
	CallRate          int64         `json:"callRate" db:"call_rate"`
	VideoRate         int64         `json:"videoRate" db:"video_rate"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}

// Available is the balance not held by open payout requests.
func (a *Account) Available() int64 {
	return a.Balance - a.Reserved
}

// RateFor returns the provider's configured per-minute rate for a session type.
func (a *Account) RateFor(t SessionType) int64 {
	switch t {
	case SessionChat:
		return a.ChatRate
	case SessionCall:
		return a.CallRate
	case SessionVideo:
		return a.VideoRate
	}
	return 0
}
