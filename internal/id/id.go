// Package id generates prefixed, K-sortable identifiers for settlement entities
// in the form "prefix_suffix" (UUIDv7 based).
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an identifier.
type Prefix string

const (
	PrefixEntry   Prefix = "le"  // Ledger entry
	PrefixSession Prefix = "ses" // Timed session
	PrefixPayout  Prefix = "po"  // Payout request
	PrefixDeposit Prefix = "dep" // Deposit intent
	PrefixGift    Prefix = "gft" // Gift/tip event
	PrefixRefund  Prefix = "rf"  // Refund settlement
	PrefixCatalog Prefix = "vg"  // Virtual gift catalog item
)

// New generates a new identifier with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

func NewEntryID() string   { return New(PrefixEntry) }
func NewSessionID() string { return New(PrefixSession) }
func NewPayoutID() string  { return New(PrefixPayout) }
func NewDepositID() string { return New(PrefixDeposit) }
func NewGiftID() string    { return New(PrefixGift) }
func NewRefundID() string  { return New(PrefixRefund) }

func NewCatalogGiftID() string { return New(PrefixCatalog) }

// ParseWithPrefix validates that s is a well-formed identifier of the expected type.
func ParseWithPrefix(s string, expected Prefix) (string, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	if Prefix(tid.Prefix()) != expected {
		return "", fmt.Errorf("id: expected prefix %q, got %q", expected, tid.Prefix())
	}
	return tid.String(), nil
}
